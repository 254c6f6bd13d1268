package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/raid"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
	"github.com/SnowFuhrer/spiraltgbot/internal/utils"
)

// RaidModule toggles raid mode and temp bans whoever joins while it is
// active.
type RaidModule struct {
	api     BotAPI
	manager *raid.Manager
	repo    repository.RaidRepository
	priv    privilegeChecker
	logger  *slog.Logger
}

func NewRaidModule(api BotAPI, manager *raid.Manager, repo repository.RaidRepository, priv privilegeChecker, logger *slog.Logger) *RaidModule {
	return &RaidModule{api: api, manager: manager, repo: repo, priv: priv, logger: logger}
}

func (m *RaidModule) Register(router *dispatch.Router) {
	router.RegisterCommand(&dispatch.Registration{
		Name:      "raid",
		Req:       privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermRestrict},
		GroupOnly: true,
		Handler:   m.raid,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name:      "raidtime",
		Req:       privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermRestrict},
		GroupOnly: true,
		Handler:   m.raidTime,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name:      "raidactiontime",
		Req:       privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermRestrict},
		GroupOnly: true,
		Handler:   m.raidActionTime,
	})
}

// OnJoin temp bans a joining user while raid mode is active. It
// reports whether the joiner was removed. Staff, whitelisted users
// and chat admins pass through untouched.
func (m *RaidModule) OnJoin(ctx context.Context, chatID, userID int64) (bool, error) {
	active, err := m.manager.IsActive(chatID)
	if err != nil {
		return false, err
	}
	if !active {
		return false, nil
	}
	protected, err := m.priv.BanProtected(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	if protected {
		return false, nil
	}
	canBan, err := m.priv.BotCan(ctx, chatID, privilege.PermRestrict)
	if err != nil {
		return false, err
	}
	if !canBan {
		m.logger.Warn("raid mode active but the bot cannot restrict", "chat_id", chatID)
		return false, nil
	}
	d, err := m.manager.ActionDuration(chatID)
	if err != nil {
		return false, err
	}
	if _, err := m.api.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID:    chatID,
		UserID:    userID,
		UntilDate: int(time.Now().Add(d).Unix()),
	}); err != nil {
		return false, fmt.Errorf("failed to temp ban raider: %w", err)
	}
	return true, nil
}

func (m *RaidModule) raid(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) > 0 {
		if on, ok := parseOnOff(c.Args[0]); ok && !on {
			return m.disable(ctx, c)
		}
		d, err := utils.ParseShortDuration(c.Args[0])
		if err != nil {
			return "", reply(ctx, m.api, c, texts.MsgRaidBadTime)
		}
		if err := raid.ValidateDuration(d); err != nil {
			return "", reply(ctx, m.api, c, texts.MsgRaidBounds)
		}
		if err := m.repo.SetRaidDuration(c.Chat.ID, d); err != nil {
			return "", err
		}
		return m.enable(ctx, c)
	}

	active, err := m.manager.IsActive(c.Chat.ID)
	if err != nil {
		return "", err
	}
	if active {
		return m.disable(ctx, c)
	}
	return m.enable(ctx, c)
}

func (m *RaidModule) enable(ctx context.Context, c *dispatch.Ctx) (string, error) {
	d, err := m.manager.Enable(ctx, c.Chat.ID)
	if err != nil {
		return "", err
	}
	readable := utils.ReadableDuration(d)
	if err := reply(ctx, m.api, c, fmt.Sprintf(texts.MsgRaidEnabled, readable)); err != nil {
		return "", err
	}
	return logLine(c, "raid", "Enabled raid mode for "+readable+"."), nil
}

func (m *RaidModule) disable(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if err := m.manager.Disable(ctx, c.Chat.ID); err != nil {
		return "", err
	}
	if err := reply(ctx, m.api, c, texts.MsgRaidDisabled); err != nil {
		return "", err
	}
	return logLine(c, "raid", "Disabled raid mode."), nil
}

func (m *RaidModule) raidTime(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		settings, err := m.repo.GetRaid(c.Chat.ID)
		if err != nil {
			return "", err
		}
		readable := utils.ReadableDuration(time.Duration(settings.RaidDurationSecs) * time.Second)
		return "", reply(ctx, m.api, c, fmt.Sprintf(texts.MsgRaidTimeCurrent, readable, readable))
	}
	d, err := m.parseBounded(c.Args[0])
	if err != nil {
		return "", m.replyBoundsErr(ctx, c, err)
	}
	if err := m.repo.SetRaidDuration(c.Chat.ID, d); err != nil {
		return "", err
	}
	readable := utils.ReadableDuration(d)
	if err := reply(ctx, m.api, c, fmt.Sprintf(texts.MsgRaidTimeCurrent, readable, readable)); err != nil {
		return "", err
	}
	return logLine(c, "raidtime", "Set raid mode duration to "+readable+"."), nil
}

func (m *RaidModule) raidActionTime(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		settings, err := m.repo.GetRaid(c.Chat.ID)
		if err != nil {
			return "", err
		}
		readable := utils.ReadableDuration(time.Duration(settings.ActionDurationSecs) * time.Second)
		return "", reply(ctx, m.api, c, fmt.Sprintf(texts.MsgRaidActionCurrent, readable, readable))
	}
	d, err := m.parseBounded(c.Args[0])
	if err != nil {
		return "", m.replyBoundsErr(ctx, c, err)
	}
	if err := m.repo.SetActionDuration(c.Chat.ID, d); err != nil {
		return "", err
	}
	readable := utils.ReadableDuration(d)
	if err := reply(ctx, m.api, c, fmt.Sprintf(texts.MsgRaidActionCurrent, readable, readable)); err != nil {
		return "", err
	}
	return logLine(c, "raidactiontime", "Set raid action time to "+readable+"."), nil
}

func (m *RaidModule) parseBounded(arg string) (time.Duration, error) {
	d, err := utils.ParseShortDuration(arg)
	if err != nil {
		return 0, err
	}
	if err := raid.ValidateDuration(d); err != nil {
		return 0, err
	}
	return d, nil
}

func (m *RaidModule) replyBoundsErr(ctx context.Context, c *dispatch.Ctx, err error) error {
	if errors.Is(err, raid.ErrOutOfBounds) {
		return reply(ctx, m.api, c, texts.MsgRaidBounds)
	}
	return reply(ctx, m.api, c, texts.MsgRaidBadTime)
}
