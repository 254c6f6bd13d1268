package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
)

// DisableModule lets chat admins switch toggleable commands off.
type DisableModule struct {
	api    BotAPI
	repo   repository.DisabledRepository
	router *dispatch.Router
}

func NewDisableModule(api BotAPI, repo repository.DisabledRepository) *DisableModule {
	return &DisableModule{api: api, repo: repo}
}

func (m *DisableModule) Register(router *dispatch.Router) {
	m.router = router
	adminReq := privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermChangeInfo}
	router.RegisterCommand(&dispatch.Registration{
		Name: "disable", Req: adminReq, GroupOnly: true, Handler: m.disable,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "enable", Req: adminReq, GroupOnly: true, Handler: m.enable,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "disabled", Req: privilege.Requirement{Level: privilege.ChatAdmin}, GroupOnly: true, Handler: m.listDisabled,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "cmds", Aliases: []string{"listcmds"}, Handler: m.listToggleable,
	})
}

// normalize strips the prefix people tend to include, "/disable /flood".
func normalize(arg string) string {
	return strings.ToLower(strings.TrimLeft(arg, "/!"))
}

func (m *DisableModule) disable(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgNothingToDisable)
	}
	name := normalize(c.Args[0])
	reg, known := m.router.Lookup(name)
	if !known || !reg.Disableable {
		return "", reply(ctx, m.api, c, texts.MsgCantDisable)
	}
	if err := m.repo.Disable(c.Chat.ID, reg.Name); err != nil {
		return "", err
	}
	if err := reply(ctx, m.api, c, fmt.Sprintf(texts.MsgDisabled, reg.Name)); err != nil {
		return "", err
	}
	return logLine(c, "disable", "Disabled the "+reg.Name+" command."), nil
}

func (m *DisableModule) enable(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if len(c.Args) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgNothingToEnable)
	}
	name := normalize(c.Args[0])
	reg, known := m.router.Lookup(name)
	if !known || !reg.Disableable {
		return "", reply(ctx, m.api, c, texts.MsgCantDisable)
	}
	off, err := m.repo.IsDisabled(c.Chat.ID, reg.Name)
	if err != nil {
		return "", err
	}
	if !off {
		return "", reply(ctx, m.api, c, texts.MsgNotDisabled)
	}
	if err := m.repo.Enable(c.Chat.ID, reg.Name); err != nil {
		return "", err
	}
	if err := reply(ctx, m.api, c, fmt.Sprintf(texts.MsgEnabled, reg.Name)); err != nil {
		return "", err
	}
	return logLine(c, "enable", "Enabled the "+reg.Name+" command."), nil
}

func (m *DisableModule) listDisabled(ctx context.Context, c *dispatch.Ctx) (string, error) {
	names, err := m.repo.ListDisabled(c.Chat.ID)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgNoDisabled)
	}
	return "", reply(ctx, m.api, c, fmt.Sprintf(texts.MsgDisabledList, " - "+strings.Join(names, "\n - ")))
}

func (m *DisableModule) listToggleable(ctx context.Context, c *dispatch.Ctx) (string, error) {
	names := m.router.Disableable()
	if len(names) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgNoToggleable)
	}
	return "", reply(ctx, m.api, c, fmt.Sprintf(texts.MsgToggleableList, " - "+strings.Join(names, "\n - ")))
}
