package modules

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
	"github.com/SnowFuhrer/spiraltgbot/internal/utils"
)

// ApproveModule exempts trusted members from automated admin actions.
type ApproveModule struct {
	api  BotAPI
	repo repository.ApprovalRepository
}

func NewApproveModule(api BotAPI, repo repository.ApprovalRepository) *ApproveModule {
	return &ApproveModule{api: api, repo: repo}
}

func (m *ApproveModule) Register(router *dispatch.Router) {
	adminReq := privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermRestrict}
	router.RegisterCommand(&dispatch.Registration{
		Name: "approve", Req: adminReq, GroupOnly: true, Handler: m.approve,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "unapprove", Req: adminReq, GroupOnly: true, Handler: m.unapprove,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "approved", Req: privilege.Requirement{Level: privilege.ChatAdmin}, GroupOnly: true, Handler: m.listApproved,
	})
}

func (m *ApproveModule) approve(ctx context.Context, c *dispatch.Ctx) (string, error) {
	userID, name, ok := targetUser(c)
	if !ok {
		return "", reply(ctx, m.api, c, texts.MsgNotThatWay)
	}
	if err := m.repo.Approve(c.Chat.ID, userID); err != nil {
		return "", err
	}
	if err := replyHTML(ctx, m.api, c, fmt.Sprintf(texts.MsgApproved, utils.MentionHTML(userID, name))); err != nil {
		return "", err
	}
	return logLine(c, "approve", fmt.Sprintf("Approved %s (%d).", name, userID)), nil
}

func (m *ApproveModule) unapprove(ctx context.Context, c *dispatch.Ctx) (string, error) {
	userID, name, ok := targetUser(c)
	if !ok {
		return "", reply(ctx, m.api, c, texts.MsgNotThatWay)
	}
	if err := m.repo.Unapprove(c.Chat.ID, userID); err != nil {
		return "", err
	}
	if err := replyHTML(ctx, m.api, c, fmt.Sprintf(texts.MsgUnapproved, utils.MentionHTML(userID, name))); err != nil {
		return "", err
	}
	return logLine(c, "unapprove", fmt.Sprintf("Unapproved %s (%d).", name, userID)), nil
}

func (m *ApproveModule) listApproved(ctx context.Context, c *dispatch.Ctx) (string, error) {
	ids, err := m.repo.ListApproved(c.Chat.ID)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", reply(ctx, m.api, c, texts.MsgNoApprovals)
	}
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, " - "+strconv.FormatInt(id, 10))
	}
	return "", reply(ctx, m.api, c, "The following users are approved:\n"+strings.Join(lines, "\n"))
}
