package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/metrics"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
	"github.com/SnowFuhrer/spiraltgbot/internal/utils"
	"github.com/SnowFuhrer/spiraltgbot/internal/verify"
)

const (
	defaultWelcomeText = "Hey there {first}, and welcome to {chatname}!"
	defaultGoodbyeText = "Nice knowing ya!"
)

// joinGuard removes joiners before any greeting happens. The raid
// module implements it.
type joinGuard interface {
	OnJoin(ctx context.Context, chatID, userID int64) (bool, error)
}

// WelcomeModule greets joining members, says goodbye to leaving ones
// and hands new members to the verifier per the chat's mute mode.
type WelcomeModule struct {
	api      BotAPI
	repo     repository.WelcomeRepository
	verifier *verify.Service
	guard    joinGuard
	priv     privilegeChecker
	logger   *slog.Logger
}

func NewWelcomeModule(api BotAPI, repo repository.WelcomeRepository, verifier *verify.Service, guard joinGuard, priv privilegeChecker, logger *slog.Logger) *WelcomeModule {
	m := &WelcomeModule{api: api, repo: repo, verifier: verifier, guard: guard, priv: priv, logger: logger}
	verifier.SetGreeter(m)
	return m
}

func (m *WelcomeModule) Register(router *dispatch.Router) {
	router.RegisterWatcher(dispatch.Watcher{
		Name:  "membership",
		Group: dispatch.WatcherGroupService,
		Fn:    m.watch,
	})
	router.RegisterCallback(verify.CallbackPrefix, func(ctx context.Context, cb *dispatch.CallbackCtx) error {
		return m.verifier.OnCallback(ctx, cb.Query, cb.Parts)
	})

	adminReq := privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermChangeInfo}
	router.RegisterCommand(&dispatch.Registration{
		Name: "welcome", Req: adminReq, GroupOnly: true, Handler: m.welcome,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "setwelcome", Req: adminReq, GroupOnly: true, Handler: m.setWelcome,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "resetwelcome", Req: adminReq, GroupOnly: true, Handler: m.resetWelcome,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "goodbye", Req: adminReq, GroupOnly: true, Handler: m.goodbye,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "setgoodbye", Req: adminReq, GroupOnly: true, Handler: m.setGoodbye,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "resetgoodbye", Req: adminReq, GroupOnly: true, Handler: m.resetGoodbye,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "cleanwelcome", Req: adminReq, GroupOnly: true, Handler: m.cleanWelcome,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "cleanservice", Req: adminReq, GroupOnly: true, Handler: m.cleanService,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name:      "welcomemute",
		Req:       privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermRestrict},
		GroupOnly: true,
		Handler:   m.welcomeMute,
	})
}

func (m *WelcomeModule) watch(ctx context.Context, c *dispatch.Ctx) error {
	if !c.IsGroup() {
		return nil
	}
	if len(c.Msg.NewChatMembers) > 0 {
		return m.onJoins(ctx, c)
	}
	if c.Msg.LeftChatMember != nil {
		return m.onLeft(ctx, c)
	}
	return nil
}

func (m *WelcomeModule) onJoins(ctx context.Context, c *dispatch.Ctx) error {
	settings, err := m.repo.GetWelcome(c.Chat.ID)
	if err != nil {
		return err
	}
	if settings.CleanService {
		if _, err := m.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    c.Chat.ID,
			MessageID: c.Msg.ID,
		}); err != nil {
			m.logger.Debug("failed to delete join service message", "chat_id", c.Chat.ID, "error", err)
		} else {
			metrics.IncDeletedMessages("service")
		}
	}
	for i := range c.Msg.NewChatMembers {
		user := &c.Msg.NewChatMembers[i]
		removed, err := m.guard.OnJoin(ctx, c.Chat.ID, user.ID)
		if err != nil {
			m.logger.Error("join guard failed", "chat_id", c.Chat.ID, "user_id", user.ID, "error", err)
			continue
		}
		if removed {
			continue
		}
		var greeting string
		if settings.ShouldWelcome {
			text := settings.WelcomeText
			if text == "" {
				text = defaultWelcomeText
			}
			greeting = fillTemplate(text, c.Chat, user)
		}
		mode, err := m.effectiveMuteMode(ctx, c.Chat.ID, user.ID, settings.MuteMode)
		if err != nil {
			m.logger.Error("failed to resolve mute exemption", "chat_id", c.Chat.ID, "user_id", user.ID, "error", err)
			mode = verify.ModeOff
		}
		challenged, err := m.verifier.OnJoin(ctx, c.Chat, user, mode, greeting)
		if err != nil {
			m.logger.Error("verification failed on join", "chat_id", c.Chat.ID, "user_id", user.ID, "error", err)
		}
		if challenged {
			// The greeting waits until they verify.
			continue
		}
		if greeting != "" {
			m.deliver(ctx, c.Chat.ID, greeting)
		}
	}
	return nil
}

// effectiveMuteMode downgrades the chat's mute mode to off for
// joiners the bot must not restrict, and for chats where it cannot.
func (m *WelcomeModule) effectiveMuteMode(ctx context.Context, chatID, userID int64, mode string) (string, error) {
	if mode == verify.ModeOff {
		return mode, nil
	}
	protected, err := m.priv.BanProtected(ctx, chatID, userID)
	if err != nil {
		return verify.ModeOff, err
	}
	if protected {
		return verify.ModeOff, nil
	}
	canRestrict, err := m.priv.BotCan(ctx, chatID, privilege.PermRestrict)
	if err != nil {
		return verify.ModeOff, err
	}
	if !canRestrict {
		m.logger.Warn("welcome mute set but the bot cannot restrict", "chat_id", chatID)
		return verify.ModeOff, nil
	}
	return mode, nil
}

// DeliverWelcome posts a greeting that was held back while the joiner
// verified.
func (m *WelcomeModule) DeliverWelcome(ctx context.Context, chatID int64, text string) {
	m.deliver(ctx, chatID, text)
}

func (m *WelcomeModule) deliver(ctx context.Context, chatID int64, text string) {
	settings, err := m.repo.GetWelcome(chatID)
	if err != nil {
		m.logger.Error("failed to load welcome settings", "chat_id", chatID, "error", err)
		return
	}
	sent, err := m.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		m.logger.Debug("failed to send welcome", "chat_id", chatID, "error", err)
		return
	}
	if !settings.CleanWelcome {
		return
	}
	if settings.LastWelcomeID != 0 {
		if _, err := m.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    chatID,
			MessageID: settings.LastWelcomeID,
		}); err != nil {
			m.logger.Debug("failed to delete previous welcome", "chat_id", chatID, "error", err)
		} else {
			metrics.IncDeletedMessages("old_welcome")
		}
	}
	if err := m.repo.SetLastWelcomeID(chatID, sent.ID); err != nil {
		m.logger.Error("failed to store welcome message id", "chat_id", chatID, "error", err)
	}
}

func (m *WelcomeModule) onLeft(ctx context.Context, c *dispatch.Ctx) error {
	settings, err := m.repo.GetWelcome(c.Chat.ID)
	if err != nil {
		return err
	}
	if settings.CleanService {
		if _, err := m.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    c.Chat.ID,
			MessageID: c.Msg.ID,
		}); err != nil {
			m.logger.Debug("failed to delete leave service message", "chat_id", c.Chat.ID, "error", err)
		}
	}
	if !settings.ShouldGoodbye {
		return nil
	}
	text := settings.GoodbyeText
	if text == "" {
		text = defaultGoodbyeText
	}
	_, err = m.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    c.Chat.ID,
		Text:      fillTemplate(text, c.Chat, c.Msg.LeftChatMember),
		ParseMode: models.ParseModeHTML,
	})
	return err
}

// fillTemplate substitutes the {placeholders} admins can use in
// welcome and goodbye texts.
func fillTemplate(text string, chat *models.Chat, user *models.User) string {
	fullname := user.FirstName
	if user.LastName != "" {
		fullname += " " + user.LastName
	}
	username := "@" + user.Username
	if user.Username == "" {
		username = utils.MentionHTML(user.ID, user.FirstName)
	}
	replacer := strings.NewReplacer(
		"{first}", user.FirstName,
		"{last}", user.LastName,
		"{fullname}", fullname,
		"{username}", username,
		"{mention}", utils.MentionHTML(user.ID, user.FirstName),
		"{id}", strconv.FormatInt(user.ID, 10),
		"{chatname}", chat.Title,
	)
	return replacer.Replace(text)
}

func (m *WelcomeModule) welcome(ctx context.Context, c *dispatch.Ctx) (string, error) {
	settings, err := m.repo.GetWelcome(c.Chat.ID)
	if err != nil {
		return "", err
	}
	if len(c.Args) == 0 {
		text := settings.WelcomeText
		if text == "" {
			text = defaultWelcomeText
		}
		status := fmt.Sprintf(
			"I'm currently welcoming users: %t\nI'm deleting old welcomes: %t\nThe welcome mute mode is: %s\nThe welcome message is:\n\n%s",
			settings.ShouldWelcome, settings.CleanWelcome, settings.MuteMode, text,
		)
		return "", reply(ctx, m.api, c, status)
	}
	on, ok := parseOnOff(c.Args[0])
	if !ok {
		return "", reply(ctx, m.api, c, texts.MsgOnOffOnly)
	}
	if err := m.repo.SetShouldWelcome(c.Chat.ID, on); err != nil {
		return "", err
	}
	if on {
		return "", reply(ctx, m.api, c, texts.MsgWelcomeOn)
	}
	return "", reply(ctx, m.api, c, texts.MsgWelcomeOff)
}

// rest returns everything after the command token, preserving the
// original spacing as much as Fields allows.
func rest(c *dispatch.Ctx) string {
	idx := strings.IndexAny(c.Msg.Text, " \n")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(c.Msg.Text[idx+1:])
}

func (m *WelcomeModule) setWelcome(ctx context.Context, c *dispatch.Ctx) (string, error) {
	text := rest(c)
	if text == "" {
		return "", reply(ctx, m.api, c, "You need to give me a welcome message!")
	}
	if err := m.repo.SetWelcomeText(c.Chat.ID, text); err != nil {
		return "", err
	}
	if err := reply(ctx, m.api, c, "Successfully set custom welcome message!"); err != nil {
		return "", err
	}
	return logLine(c, "setwelcome", "Set a custom welcome message."), nil
}

func (m *WelcomeModule) resetWelcome(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if err := m.repo.SetWelcomeText(c.Chat.ID, ""); err != nil {
		return "", err
	}
	return "", reply(ctx, m.api, c, "Successfully reset welcome message to default!")
}

func (m *WelcomeModule) goodbye(ctx context.Context, c *dispatch.Ctx) (string, error) {
	settings, err := m.repo.GetWelcome(c.Chat.ID)
	if err != nil {
		return "", err
	}
	if len(c.Args) == 0 {
		text := settings.GoodbyeText
		if text == "" {
			text = defaultGoodbyeText
		}
		status := fmt.Sprintf("I'm currently saying goodbye: %t\nThe goodbye message is:\n\n%s", settings.ShouldGoodbye, text)
		return "", reply(ctx, m.api, c, status)
	}
	on, ok := parseOnOff(c.Args[0])
	if !ok {
		return "", reply(ctx, m.api, c, texts.MsgOnOffOnly)
	}
	if err := m.repo.SetShouldGoodbye(c.Chat.ID, on); err != nil {
		return "", err
	}
	if on {
		return "", reply(ctx, m.api, c, "Okay! I'll say goodbye when members leave.")
	}
	return "", reply(ctx, m.api, c, "I won't say goodbye to anyone.")
}

func (m *WelcomeModule) setGoodbye(ctx context.Context, c *dispatch.Ctx) (string, error) {
	text := rest(c)
	if text == "" {
		return "", reply(ctx, m.api, c, "You need to give me a goodbye message!")
	}
	if err := m.repo.SetGoodbyeText(c.Chat.ID, text); err != nil {
		return "", err
	}
	return "", reply(ctx, m.api, c, "Successfully set custom goodbye message!")
}

func (m *WelcomeModule) resetGoodbye(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if err := m.repo.SetGoodbyeText(c.Chat.ID, ""); err != nil {
		return "", err
	}
	return "", reply(ctx, m.api, c, "Successfully reset goodbye message to default!")
}

func (m *WelcomeModule) cleanWelcome(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgOnOffOnly)
	}
	on, ok := parseOnOff(c.Args[0])
	if !ok {
		return "", reply(ctx, m.api, c, texts.MsgOnOffOnly)
	}
	if err := m.repo.SetCleanWelcome(c.Chat.ID, on); err != nil {
		return "", err
	}
	if on {
		return "", reply(ctx, m.api, c, texts.MsgCleanWelcomeOn)
	}
	return "", reply(ctx, m.api, c, texts.MsgCleanWelcomeOff)
}

func (m *WelcomeModule) cleanService(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgOnOffOnly)
	}
	on, ok := parseOnOff(c.Args[0])
	if !ok {
		return "", reply(ctx, m.api, c, texts.MsgOnOffOnly)
	}
	if err := m.repo.SetCleanService(c.Chat.ID, on); err != nil {
		return "", err
	}
	if on {
		return "", reply(ctx, m.api, c, "I'll be deleting join and leave service messages from now on.")
	}
	return "", reply(ctx, m.api, c, "I'll leave service messages alone.")
}

func (m *WelcomeModule) welcomeMute(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgWelcomeMuteOpts)
	}
	mode := strings.ToLower(c.Args[0])
	switch mode {
	case "no", "off":
		mode = verify.ModeOff
	case verify.ModeSoft, verify.ModeStrong, verify.ModeCaptcha:
	default:
		return "", reply(ctx, m.api, c, texts.MsgWelcomeMuteOpts)
	}
	if err := m.repo.SetMuteMode(c.Chat.ID, mode); err != nil {
		return "", err
	}
	var confirmation string
	switch mode {
	case verify.ModeOff:
		confirmation = texts.MsgWelcomeMuteOff
	case verify.ModeSoft:
		confirmation = texts.MsgWelcomeMuteSoft
	default:
		confirmation = fmt.Sprintf(texts.MsgWelcomeMuteTight, int(verify.DefaultDeadline.Seconds()))
	}
	if err := reply(ctx, m.api, c, confirmation); err != nil {
		return "", err
	}
	return logLine(c, "welcomemute", "Set welcome mute mode to "+mode+"."), nil
}
