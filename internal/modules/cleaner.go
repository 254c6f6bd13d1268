package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/metrics"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
)

// CleanerModule deletes "blue text": slash-prefixed messages that no
// registered command handles. A per-chat and a global ignore list can
// spare tokens meant for other bots.
type CleanerModule struct {
	api    BotAPI
	repo   repository.CleanerRepository
	router *dispatch.Router
	priv   privilegeChecker
	logger *slog.Logger
}

func NewCleanerModule(api BotAPI, repo repository.CleanerRepository, priv privilegeChecker, logger *slog.Logger) *CleanerModule {
	return &CleanerModule{api: api, repo: repo, priv: priv, logger: logger}
}

func (m *CleanerModule) Register(router *dispatch.Router) {
	m.router = router
	router.RegisterWatcher(dispatch.Watcher{
		Name:  "bluetext",
		Group: dispatch.WatcherGroupCleaner,
		Fn:    m.watch,
	})

	adminReq := privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermDelete}
	router.RegisterCommand(&dispatch.Registration{
		Name: "cleanblue", Req: adminReq, GroupOnly: true, Handler: m.toggle,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "ignoreblue", Req: adminReq, GroupOnly: true,
		Handler: func(ctx context.Context, c *dispatch.Ctx) (string, error) {
			return m.ignore(ctx, c, c.Chat.ID)
		},
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "unignoreblue", Req: adminReq, GroupOnly: true,
		Handler: func(ctx context.Context, c *dispatch.Ctx) (string, error) {
			return m.unignore(ctx, c, c.Chat.ID)
		},
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "listblue", Req: privilege.Requirement{Level: privilege.ChatAdmin}, GroupOnly: true, Handler: m.list,
	})

	devReq := privilege.Requirement{Level: privilege.Developer}
	router.RegisterCommand(&dispatch.Registration{
		Name: "gignoreblue", Req: devReq,
		Handler: func(ctx context.Context, c *dispatch.Ctx) (string, error) {
			return m.ignore(ctx, c, repository.GlobalCleanerChatID)
		},
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "gunignoreblue", Req: devReq,
		Handler: func(ctx context.Context, c *dispatch.Ctx) (string, error) {
			return m.unignore(ctx, c, repository.GlobalCleanerChatID)
		},
	})
}

// watch runs before command matching, so it sees every message; real
// commands carry a non-empty Command and are spared.
func (m *CleanerModule) watch(ctx context.Context, c *dispatch.Ctx) error {
	if !c.IsGroup() || c.Command != "" {
		return nil
	}
	token, ok := blueToken(c.Msg.Text)
	if !ok {
		return nil
	}
	if _, registered := m.router.Lookup(token); registered {
		// Command-shaped but addressed to another bot by mention.
		return nil
	}
	settings, err := m.repo.GetCleaner(c.Chat.ID)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return nil
	}
	if contains(settings.Ignored, token) {
		return nil
	}
	global, err := m.repo.GetCleaner(repository.GlobalCleanerChatID)
	if err != nil {
		return err
	}
	if contains(global.Ignored, token) {
		return nil
	}
	canDelete, err := m.priv.BotCan(ctx, c.Chat.ID, privilege.PermDelete)
	if err != nil {
		return err
	}
	if !canDelete {
		m.logger.Debug("cleaner enabled but the bot cannot delete", "chat_id", c.Chat.ID)
		return nil
	}
	if _, err := m.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    c.Chat.ID,
		MessageID: c.Msg.ID,
	}); err != nil {
		m.logger.Debug("failed to delete blue text", "chat_id", c.Chat.ID, "error", err)
		return nil
	}
	metrics.IncDeletedMessages("bluetext")
	return nil
}

// blueToken extracts the leading slash token; only "/" counts, since
// "!" does not render as a link.
func blueToken(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	head := fields[0]
	if len(head) < 2 || head[0] != '/' {
		return "", false
	}
	head = head[1:]
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "" {
		return "", false
	}
	return strings.ToLower(head), true
}

func contains(list []string, token string) bool {
	for _, item := range list {
		if item == token {
			return true
		}
	}
	return false
}

func (m *CleanerModule) toggle(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgOnOffOnly)
	}
	on, ok := parseOnOff(c.Args[0])
	if !ok {
		return "", reply(ctx, m.api, c, texts.MsgOnOffOnly)
	}
	if err := m.repo.SetEnabled(c.Chat.ID, on); err != nil {
		return "", err
	}
	if on {
		return "", reply(ctx, m.api, c, texts.MsgBlueCleanOn)
	}
	return "", reply(ctx, m.api, c, texts.MsgBlueCleanOff)
}

func (m *CleanerModule) ignore(ctx context.Context, c *dispatch.Ctx, scope int64) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgBlueNothing)
	}
	token := normalize(c.Args[0])
	added, err := m.repo.AddIgnored(scope, token)
	if err != nil {
		return "", err
	}
	if !added {
		return "", reply(ctx, m.api, c, "That token is already ignored.")
	}
	return "", reply(ctx, m.api, c, fmt.Sprintf(texts.MsgBlueIgnored, token))
}

func (m *CleanerModule) unignore(ctx context.Context, c *dispatch.Ctx, scope int64) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgBlueNothing)
	}
	token := normalize(c.Args[0])
	removed, err := m.repo.RemoveIgnored(scope, token)
	if err != nil {
		return "", err
	}
	if !removed {
		return "", reply(ctx, m.api, c, texts.MsgNotThatWay)
	}
	return "", reply(ctx, m.api, c, fmt.Sprintf(texts.MsgBlueUnignored, token))
}

func (m *CleanerModule) list(ctx context.Context, c *dispatch.Ctx) (string, error) {
	settings, err := m.repo.GetCleaner(c.Chat.ID)
	if err != nil {
		return "", err
	}
	global, err := m.repo.GetCleaner(repository.GlobalCleanerChatID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Blue text cleanup is enabled: %t\n", settings.Enabled)
	if len(settings.Ignored) > 0 {
		fmt.Fprintf(&b, "Ignored here: %s\n", strings.Join(settings.Ignored, ", "))
	}
	if len(global.Ignored) > 0 {
		fmt.Fprintf(&b, "Ignored everywhere: %s\n", strings.Join(global.Ignored, ", "))
	}
	return "", reply(ctx, m.api, c, b.String())
}
