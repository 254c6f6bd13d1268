package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SnowFuhrer/spiraltgbot/internal/metrics"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
)

// Command messages may start with either prefix.
const commandPrefixes = "/!"

const anonCallbackPrefix = "anoncb"

type botAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// anonGate verifies the identity a continuation button press claims.
type anonGate interface {
	Rights(ctx context.Context, chatID, userID int64) (privilege.AdminRights, bool, error)
	IsStaff(userID int64) bool
}

// LogSink receives loggable command summaries for the chat's log channel.
type LogSink interface {
	Log(ctx context.Context, chat *models.Chat, messageID int, entry string)
}

// Router owns command registrations, message watchers and callback
// handlers, and pushes every command through the middleware chain.
type Router struct {
	api           botAPI
	logger        *slog.Logger
	tracer        trace.Tracer
	botUsername   string
	deleteDenied  bool
	chain         []Middleware
	commands      map[string]*Registration
	watchers      []Watcher
	callbacks     map[string]CallbackFunc
	continuations *privilege.Continuations
	anonGate      anonGate
	logSink       LogSink
	onMigrate     func(ctx context.Context, oldChatID, newChatID int64)
	report        func(ctx context.Context, scope string, err error)
}

type RouterOptions struct {
	BotUsername          string
	DeleteDeniedCommands bool
	Chain                []Middleware
	Gate                 anonGate
	LogSink              LogSink
	OnMigrate            func(ctx context.Context, oldChatID, newChatID int64)
	Report               func(ctx context.Context, scope string, err error)
}

func NewRouter(api botAPI, logger *slog.Logger, opts RouterOptions) *Router {
	r := &Router{
		api:           api,
		logger:        logger,
		tracer:        otel.Tracer("dispatch"),
		botUsername:   strings.TrimPrefix(opts.BotUsername, "@"),
		deleteDenied:  opts.DeleteDeniedCommands,
		chain:         opts.Chain,
		commands:      make(map[string]*Registration),
		callbacks:     make(map[string]CallbackFunc),
		continuations: privilege.NewContinuations(10 * time.Minute),
		anonGate:      opts.Gate,
		logSink:       opts.LogSink,
		onMigrate:     opts.OnMigrate,
		report:        opts.Report,
	}
	r.callbacks[anonCallbackPrefix] = r.resumeAnonymous
	return r
}

// RegisterCommand panics on a duplicate name, which is a wiring bug.
func (r *Router) RegisterCommand(reg *Registration) {
	for _, name := range append([]string{reg.Name}, reg.Aliases...) {
		name = strings.ToLower(name)
		if _, exists := r.commands[name]; exists {
			panic(fmt.Sprintf("duplicate command registration: %s", name))
		}
		r.commands[name] = reg
	}
}

func (r *Router) RegisterWatcher(w Watcher) {
	r.watchers = append(r.watchers, w)
	sort.SliceStable(r.watchers, func(i, j int) bool {
		return r.watchers[i].Group < r.watchers[j].Group
	})
}

func (r *Router) RegisterCallback(prefix string, fn CallbackFunc) {
	if _, exists := r.callbacks[prefix]; exists {
		panic(fmt.Sprintf("duplicate callback registration: %s", prefix))
	}
	r.callbacks[prefix] = fn
}

// Lookup reports the registration handling a command token, if any.
// The blue-text cleaner uses it to spare real commands.
func (r *Router) Lookup(name string) (*Registration, bool) {
	reg, ok := r.commands[strings.ToLower(name)]
	return reg, ok
}

// Disableable lists the commands that can be switched off per chat.
func (r *Router) Disableable() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, reg := range r.commands {
		if !reg.Disableable {
			continue
		}
		if _, dup := seen[reg.Name]; dup {
			continue
		}
		seen[reg.Name] = struct{}{}
		names = append(names, reg.Name)
	}
	sort.Strings(names)
	return names
}

// HandleUpdate is the entry point wired into the transport.
func (r *Router) HandleUpdate(ctx context.Context, update *models.Update) {
	ctx, span := r.tracer.Start(ctx, "HandleUpdate")
	defer span.End()

	switch {
	case update.Message != nil:
		span.SetAttributes(attribute.String("update_type", "message"))
		r.handleMessage(ctx, update)
	case update.CallbackQuery != nil:
		span.SetAttributes(attribute.String("update_type", "callback_query"))
		r.handleCallback(ctx, update.CallbackQuery)
	}
}

func (r *Router) handleMessage(ctx context.Context, update *models.Update) {
	msg := update.Message
	start := time.Now()
	var handleErr error
	defer func() {
		metrics.ObserveUpdateProcessing("message", time.Since(start).Seconds(), handleErr)
	}()

	if msg.MigrateToChatID != 0 {
		if r.onMigrate != nil {
			r.onMigrate(ctx, msg.Chat.ID, msg.MigrateToChatID)
		}
		return
	}

	c := r.buildCtx(update)
	for i := range r.watchers {
		w := &r.watchers[i]
		if w.Group >= WatcherGroupCommands {
			break
		}
		if err := w.Fn(ctx, c); err != nil {
			handleErr = err
			r.reportErr(ctx, "watcher:"+w.Name, err)
		}
	}
	if c.Command != "" {
		if err := r.runCommand(ctx, c); err != nil {
			handleErr = err
		}
		return
	}
	// Late watchers only see non-command messages.
	for i := range r.watchers {
		w := &r.watchers[i]
		if w.Group < WatcherGroupCommands {
			continue
		}
		if err := w.Fn(ctx, c); err != nil {
			handleErr = err
			r.reportErr(ctx, "watcher:"+w.Name, err)
		}
	}
}

func (r *Router) buildCtx(update *models.Update) *Ctx {
	msg := update.Message
	c := &Ctx{
		Update: update,
		Msg:    msg,
		Chat:   &msg.Chat,
		Sender: msg.From,
	}
	if msg.SenderChat != nil && msg.SenderChat.ID == msg.Chat.ID {
		c.IsAnonymous = true
	}
	name, mention, args, ok := splitCommand(msg.Text)
	if !ok {
		return c
	}
	if mention != "" && !strings.EqualFold(mention, r.botUsername) {
		return c
	}
	c.Command = name
	c.Args = args
	return c
}

// splitCommand parses "/cmd@Bot arg1 arg2" into its parts. The token is
// lowercased; a false return means the text is not command-shaped.
func splitCommand(text string) (name, mention string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", "", nil, false
	}
	head := fields[0]
	if len(head) < 2 || !strings.ContainsRune(commandPrefixes, rune(head[0])) {
		return "", "", nil, false
	}
	head = head[1:]
	if at := strings.IndexByte(head, '@'); at >= 0 {
		mention = head[at+1:]
		head = head[:at]
	}
	if head == "" {
		return "", "", nil, false
	}
	return strings.ToLower(head), mention, fields[1:], true
}

func (r *Router) runCommand(ctx context.Context, c *Ctx) error {
	reg, ok := r.commands[c.Command]
	if !ok {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "runCommand",
		trace.WithAttributes(attribute.String("command", reg.Name)))
	defer span.End()

	if reg.GroupOnly && !c.IsGroup() {
		r.reply(ctx, c, texts.MsgGroupOnly)
		return nil
	}
	if c.IsAnonymous && reg.Req.Level > privilege.Member {
		r.parkAnonymous(ctx, c, reg)
		return nil
	}

	for _, mw := range r.chain {
		verdict, err := mw.Check(ctx, c, reg)
		if err != nil {
			r.reportErr(ctx, "middleware:"+mw.Name(), err)
			return err
		}
		if !verdict.Allowed {
			metrics.IncDenial(mw.Name())
			r.handleDenial(ctx, c, verdict)
			return nil
		}
	}

	metrics.IncCommand(reg.Name)
	entry, err := reg.Handler(ctx, c)
	if err != nil {
		r.reportErr(ctx, "command:"+reg.Name, err)
		return err
	}
	if entry != "" && r.logSink != nil {
		r.logSink.Log(ctx, c.Chat, c.Msg.ID, entry)
	}
	return nil
}

func (r *Router) handleDenial(ctx context.Context, c *Ctx, verdict *Verdict) {
	if verdict.DeleteMessage && r.deleteDenied && c.IsGroup() {
		if _, err := r.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    c.Chat.ID,
			MessageID: c.Msg.ID,
		}); err != nil {
			r.logger.Debug("failed to delete denied command", "chat_id", c.Chat.ID, "error", err)
		} else {
			metrics.IncDeletedMessages("denied_command")
		}
	}
	if verdict.Reason != "" && !verdict.Silent {
		r.reply(ctx, c, verdict.Reason)
	}
}

// parkAnonymous stashes the command and asks the anonymous sender to
// prove admin rights through a button only admins can redeem.
func (r *Router) parkAnonymous(ctx context.Context, c *Ctx, reg *Registration) {
	sent, err := r.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: c.Chat.ID,
		Text:   texts.MsgAnonProveIdentity,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "Click to prove admin", CallbackData: anonCallbackPrefix},
			}},
		},
	})
	if err != nil {
		r.reportErr(ctx, "anon:prompt", err)
		return
	}
	r.continuations.Park(c.Chat.ID, sent.ID, privilege.ResumeIntent{
		Command: c.Command,
		Args:    c.Args,
		Perm:    reg.Req.Perm,
	})
}

func (r *Router) resumeAnonymous(ctx context.Context, cb *CallbackCtx) error {
	q := cb.Query
	msg := q.Message.Message
	if msg == nil {
		return nil
	}
	intent, ok := r.continuations.Take(msg.Chat.ID, msg.ID)
	if !ok {
		r.answer(ctx, q.ID, texts.MsgNotThatWay)
		return nil
	}
	rights, isAdmin, err := r.anonGate.Rights(ctx, msg.Chat.ID, q.From.ID)
	if err != nil {
		return err
	}
	if !r.anonGate.IsStaff(q.From.ID) && (!isAdmin || !rights.Has(intent.Perm)) {
		// Put the intent back so a real admin can still redeem it.
		r.continuations.Park(msg.Chat.ID, msg.ID, intent)
		r.answer(ctx, q.ID, texts.MsgAnonNotAdmin)
		return nil
	}
	r.answer(ctx, q.ID, "")
	if _, err := r.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	}); err != nil {
		r.logger.Debug("failed to delete anon prompt", "chat_id", msg.Chat.ID, "error", err)
	}

	reg, ok := r.commands[intent.Command]
	if !ok {
		return nil
	}
	resumed := &Ctx{
		Msg:     msg,
		Chat:    &msg.Chat,
		Sender:  &q.From,
		Command: intent.Command,
		Args:    intent.Args,
	}
	metrics.IncCommand(reg.Name)
	entry, err := reg.Handler(ctx, resumed)
	if err != nil {
		r.reportErr(ctx, "command:"+reg.Name, err)
		return err
	}
	if entry != "" && r.logSink != nil {
		r.logSink.Log(ctx, resumed.Chat, msg.ID, entry)
	}
	return nil
}

func (r *Router) handleCallback(ctx context.Context, q *models.CallbackQuery) {
	start := time.Now()
	var handleErr error
	defer func() {
		metrics.ObserveUpdateProcessing("callback_query", time.Since(start).Seconds(), handleErr)
	}()

	ctx, span := r.tracer.Start(ctx, "handleCallback")
	defer span.End()

	parts := strings.Split(q.Data, "/")
	fn, ok := r.callbacks[parts[0]]
	if !ok {
		r.answer(ctx, q.ID, "")
		return
	}
	span.SetAttributes(attribute.String("callback", parts[0]))
	if err := fn(ctx, &CallbackCtx{Query: q, Parts: parts}); err != nil {
		handleErr = err
		r.reportErr(ctx, "callback:"+parts[0], err)
	}
}

func (r *Router) reply(ctx context.Context, c *Ctx, text string) {
	_, err := r.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: c.Chat.ID,
		Text:   text,
		ReplyParameters: &models.ReplyParameters{
			MessageID: c.Msg.ID,
		},
	})
	if err != nil {
		r.logger.Debug("failed to send reply", "chat_id", c.Chat.ID, "error", err)
	}
}

func (r *Router) answer(ctx context.Context, callbackID, text string) {
	_, err := r.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		r.logger.Debug("failed to answer callback", "error", err)
	}
}

func (r *Router) reportErr(ctx context.Context, scope string, err error) {
	r.logger.Error("update handling failed", "scope", scope, "error", err)
	if r.report != nil {
		r.report(ctx, scope, err)
	}
}
