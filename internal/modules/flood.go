package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/flood"
	"github.com/SnowFuhrer/spiraltgbot/internal/metrics"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
	"github.com/SnowFuhrer/spiraltgbot/internal/utils"
)

const unmuteCallbackPrefix = "unmute_flood"

const (
	FloodModeBan   = "ban"
	FloodModeKick  = "kick"
	FloodModeMute  = "mute"
	FloodModeTBan  = "tban"
	FloodModeTMute = "tmute"
)

// FloodModule counts consecutive messages and punishes the sender who
// crosses the chat's limit.
type FloodModule struct {
	api      BotAPI
	repo     repository.FloodRepository
	approved repository.ApprovalRepository
	detector *flood.Detector
	gate     *privilege.Gate
	sink     dispatch.LogSink
	logger   *slog.Logger
}

func NewFloodModule(api BotAPI, repo repository.FloodRepository, approved repository.ApprovalRepository, gate *privilege.Gate, sink dispatch.LogSink, logger *slog.Logger) *FloodModule {
	return &FloodModule{
		api:      api,
		repo:     repo,
		approved: approved,
		detector: flood.NewDetector(),
		gate:     gate,
		sink:     sink,
		logger:   logger,
	}
}

func (m *FloodModule) Register(router *dispatch.Router) {
	router.RegisterWatcher(dispatch.Watcher{
		Name:  "flood",
		Group: dispatch.WatcherGroupFlood,
		Fn:    m.watch,
	})
	router.RegisterCallback(unmuteCallbackPrefix, m.unmuteCallback)
	router.RegisterCommand(&dispatch.Registration{
		Name:        "setflood",
		Req:         privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermRestrict},
		Disableable: true,
		GroupOnly:   true,
		Handler:     m.setFlood,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name:        "flood",
		Disableable: true,
		AdminOK:     true,
		GroupOnly:   true,
		Handler:     m.showFlood,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name:        "setfloodmode",
		Req:         privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermRestrict},
		Disableable: true,
		GroupOnly:   true,
		Handler:     m.setFloodMode,
	})
}

func (m *FloodModule) watch(ctx context.Context, c *dispatch.Ctx) error {
	if !c.IsGroup() || c.Sender == nil {
		return nil
	}
	settings, err := m.repo.GetFlood(c.Chat.ID)
	if err != nil {
		return err
	}
	if settings.Limit <= 0 {
		return nil
	}
	exempt, err := m.isExempt(ctx, c)
	if err != nil {
		return err
	}
	if exempt {
		m.detector.Reset(c.Chat.ID)
		return nil
	}
	if !m.detector.Observe(c.Chat.ID, c.Sender.ID, settings.Limit) {
		return nil
	}
	return m.punish(ctx, c, settings)
}

func (m *FloodModule) isExempt(ctx context.Context, c *dispatch.Ctx) (bool, error) {
	if c.IsAnonymous || c.Sender.IsBot {
		return true, nil
	}
	level, err := m.gate.Resolve(ctx, c.Chat.ID, c.Sender.ID)
	if err != nil {
		return false, err
	}
	if level > privilege.Member {
		return true, nil
	}
	return m.approved.IsApproved(c.Chat.ID, c.Sender.ID)
}

func (m *FloodModule) punish(ctx context.Context, c *dispatch.Ctx, settings *repository.FloodSettings) error {
	var (
		action string
		err    error
	)
	switch settings.Mode {
	case FloodModeKick:
		action = "kicked"
		err = m.kick(ctx, c.Chat.ID, c.Sender.ID)
	case FloodModeMute:
		action = "muted"
		err = m.mute(ctx, c, 0)
	case FloodModeTBan:
		d := m.actionValue(settings)
		action = "banned for " + utils.ReadableDuration(d)
		err = m.ban(ctx, c.Chat.ID, c.Sender.ID, d)
	case FloodModeTMute:
		d := m.actionValue(settings)
		action = "muted for " + utils.ReadableDuration(d)
		err = m.mute(ctx, c, d)
	default:
		action = "banned"
		err = m.ban(ctx, c.Chat.ID, c.Sender.ID, 0)
	}
	if err != nil {
		// Most likely the bot lost its restrict right. Disable
		// antiflood instead of failing on every message.
		m.logger.Warn("flood action failed, disabling antiflood", "chat_id", c.Chat.ID, "error", err)
		if setErr := m.repo.SetFloodLimit(c.Chat.ID, 0); setErr != nil {
			return setErr
		}
		m.logEvent(ctx, c, "Disabled antiflood automatically: the flood action could not be applied.")
		return reply(ctx, m.api, c, texts.MsgFloodDisabledAuto)
	}
	metrics.IncFloodAction(settings.Mode)

	mention := utils.MentionHTML(c.Sender.ID, c.Sender.FirstName)
	m.logEvent(ctx, c, fmt.Sprintf("<b>User</b>: %s\nCrossed the flood limit and was %s.", mention, action))
	text := fmt.Sprintf(texts.MsgFloodTriggered, mention+" has been "+action)
	params := &bot.SendMessageParams{
		ChatID:    c.Chat.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if settings.Mode == FloodModeMute || settings.Mode == FloodModeTMute {
		params.ReplyMarkup = &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{
					Text:         "Unmute (admins only)",
					CallbackData: fmt.Sprintf("%s/%d", unmuteCallbackPrefix, c.Sender.ID),
				},
			}},
		}
	}
	if _, sendErr := m.api.SendMessage(ctx, params); sendErr != nil {
		m.logger.Debug("failed to announce flood action", "chat_id", c.Chat.ID, "error", sendErr)
	}
	return nil
}

// logEvent forwards a watcher-side flood event to the chat's log
// channel. Command-side entries go through the router instead.
func (m *FloodModule) logEvent(ctx context.Context, c *dispatch.Ctx, detail string) {
	if m.sink == nil {
		return
	}
	m.sink.Log(ctx, c.Chat, c.Msg.ID, "#FLOOD\n"+detail)
}

func (m *FloodModule) actionValue(settings *repository.FloodSettings) time.Duration {
	d, err := utils.ParseShortDuration(settings.Value)
	if err != nil {
		return time.Hour
	}
	return d
}

func (m *FloodModule) ban(ctx context.Context, chatID, userID int64, d time.Duration) error {
	params := &bot.BanChatMemberParams{ChatID: chatID, UserID: userID}
	if d > 0 {
		params.UntilDate = int(time.Now().Add(d).Unix())
	}
	if _, err := m.api.BanChatMember(ctx, params); err != nil {
		return fmt.Errorf("failed to ban flooder: %w", err)
	}
	return nil
}

func (m *FloodModule) kick(ctx context.Context, chatID, userID int64) error {
	if err := m.ban(ctx, chatID, userID, 0); err != nil {
		return err
	}
	if _, err := m.api.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	}); err != nil {
		return fmt.Errorf("failed to lift kick ban: %w", err)
	}
	return nil
}

func (m *FloodModule) mute(ctx context.Context, c *dispatch.Ctx, d time.Duration) error {
	params := &bot.RestrictChatMemberParams{
		ChatID:      c.Chat.ID,
		UserID:      c.Sender.ID,
		Permissions: &models.ChatPermissions{},
	}
	if d > 0 {
		params.UntilDate = int(time.Now().Add(d).Unix())
	}
	if _, err := m.api.RestrictChatMember(ctx, params); err != nil {
		return fmt.Errorf("failed to mute flooder: %w", err)
	}
	return nil
}

// unmuteCallback lifts a flood mute, admins only.
func (m *FloodModule) unmuteCallback(ctx context.Context, cb *dispatch.CallbackCtx) error {
	q := cb.Query
	msg := q.Message.Message
	if msg == nil || len(cb.Parts) < 2 {
		return nil
	}
	userID, err := strconv.ParseInt(cb.Parts[1], 10, 64)
	if err != nil {
		return nil
	}
	rights, isAdmin, err := m.gate.Rights(ctx, msg.Chat.ID, q.From.ID)
	if err != nil {
		return err
	}
	if !m.gate.IsStaff(q.From.ID) && (!isAdmin || !rights.Has(privilege.PermRestrict)) {
		_, _ = m.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: q.ID,
			Text:            texts.MsgNotAdmin,
			ShowAlert:       true,
		})
		return nil
	}
	if _, err := m.api.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID:      msg.Chat.ID,
		UserID:      userID,
		Permissions: fullMemberPermissions(),
	}); err != nil {
		return fmt.Errorf("failed to unmute: %w", err)
	}
	_, _ = m.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID})
	_, err = m.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   fmt.Sprintf(texts.MsgFloodUnmuted, q.From.FirstName),
		ReplyParameters: &models.ReplyParameters{
			MessageID: msg.ID,
		},
	})
	return err
}

func fullMemberPermissions() *models.ChatPermissions {
	return &models.ChatPermissions{
		CanSendMessages:       true,
		CanSendAudios:         true,
		CanSendDocuments:      true,
		CanSendPhotos:         true,
		CanSendVideos:         true,
		CanSendVideoNotes:     true,
		CanSendVoiceNotes:     true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanInviteUsers:        true,
	}
}

func (m *FloodModule) setFlood(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgFloodLimitTooLow)
	}
	arg := strings.ToLower(c.Args[0])
	if arg == "off" || arg == "no" || arg == "0" {
		if err := m.repo.SetFloodLimit(c.Chat.ID, 0); err != nil {
			return "", err
		}
		if err := reply(ctx, m.api, c, texts.MsgFloodDisabled); err != nil {
			return "", err
		}
		return logLine(c, "setflood", "Disabled antiflood."), nil
	}
	limit, err := strconv.Atoi(arg)
	if err != nil || limit <= 3 {
		return "", reply(ctx, m.api, c, texts.MsgFloodLimitTooLow)
	}
	if err := m.repo.SetFloodLimit(c.Chat.ID, limit); err != nil {
		return "", err
	}
	if err := reply(ctx, m.api, c, fmt.Sprintf(texts.MsgFloodSet, limit)); err != nil {
		return "", err
	}
	return logLine(c, "setflood", fmt.Sprintf("Set antiflood limit to %d.", limit)), nil
}

func (m *FloodModule) showFlood(ctx context.Context, c *dispatch.Ctx) (string, error) {
	settings, err := m.repo.GetFlood(c.Chat.ID)
	if err != nil {
		return "", err
	}
	if settings.Limit <= 0 {
		return "", reply(ctx, m.api, c, texts.MsgFloodNotEnforcing)
	}
	return "", reply(ctx, m.api, c, fmt.Sprintf(texts.MsgFloodCurrent, settings.Limit))
}

func (m *FloodModule) setFloodMode(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgFloodModeUnknown)
	}
	mode := strings.ToLower(c.Args[0])
	value := ""
	switch mode {
	case FloodModeBan, FloodModeKick, FloodModeMute:
	case FloodModeTBan, FloodModeTMute:
		if len(c.Args) < 2 {
			return "", reply(ctx, m.api, c, texts.MsgFloodModeNeedTime)
		}
		if _, err := utils.ParseShortDuration(c.Args[1]); err != nil {
			return "", reply(ctx, m.api, c, texts.MsgFloodModeNeedTime)
		}
		value = c.Args[1]
	default:
		return "", reply(ctx, m.api, c, texts.MsgFloodModeUnknown)
	}
	if err := m.repo.SetFloodMode(c.Chat.ID, mode, value); err != nil {
		return "", err
	}
	described := mode
	if value != "" {
		d, _ := utils.ParseShortDuration(value)
		described = fmt.Sprintf("%s for %s", strings.TrimPrefix(mode, "t"), utils.ReadableDuration(d))
	}
	if err := reply(ctx, m.api, c, fmt.Sprintf(texts.MsgFloodModeSet, described)); err != nil {
		return "", err
	}
	return logLine(c, "setfloodmode", fmt.Sprintf("Set antiflood mode to %s.", described)), nil
}
