package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
	"github.com/SnowFuhrer/spiraltgbot/internal/utils"
)

// RanksModule manages the bot-wide privilege ranks. Only the bot owner
// and developers can hand them out.
type RanksModule struct {
	api  BotAPI
	repo repository.RankRepository
}

func NewRanksModule(api BotAPI, repo repository.RankRepository) *RanksModule {
	return &RanksModule{api: api, repo: repo}
}

func (m *RanksModule) Register(router *dispatch.Router) {
	ownerReq := privilege.Requirement{Level: privilege.Owner}
	add := func(command, rank string) {
		router.RegisterCommand(&dispatch.Registration{
			Name: command,
			Req:  ownerReq,
			Handler: func(ctx context.Context, c *dispatch.Ctx) (string, error) {
				return m.promote(ctx, c, rank)
			},
		})
	}
	remove := func(command string) {
		router.RegisterCommand(&dispatch.Registration{
			Name: command,
			Req:  ownerReq,
			Handler: func(ctx context.Context, c *dispatch.Ctx) (string, error) {
				return m.demote(ctx, c)
			},
		})
	}
	add("addsudo", repository.RankSudo)
	add("addsupport", repository.RankSupport)
	add("addwhitelist", repository.RankWhitelist)
	add("addpro", repository.RankPro)
	remove("rmsudo")
	remove("rmsupport")
	remove("rmwhitelist")
	remove("rmpro")
	router.RegisterCommand(&dispatch.Registration{
		Name:    "staff",
		Req:     privilege.Requirement{Level: privilege.Support},
		Handler: m.listStaff,
	})
}

func (m *RanksModule) promote(ctx context.Context, c *dispatch.Ctx, rank string) (string, error) {
	userID, name, ok := targetUser(c)
	if !ok {
		return "", reply(ctx, m.api, c, texts.MsgNotThatWay)
	}
	current, err := m.repo.GetRank(userID)
	if err != nil {
		return "", err
	}
	if current == rank {
		return "", reply(ctx, m.api, c, texts.MsgRanksAlready)
	}
	if err := m.repo.SetRank(userID, rank); err != nil {
		return "", err
	}
	if err := replyHTML(ctx, m.api, c, fmt.Sprintf(texts.MsgRankPromoted, utils.MentionHTML(userID, name))); err != nil {
		return "", err
	}
	return logLine(c, "rank", fmt.Sprintf("Granted %s rank to %s (%d).", rank, name, userID)), nil
}

func (m *RanksModule) demote(ctx context.Context, c *dispatch.Ctx) (string, error) {
	userID, name, ok := targetUser(c)
	if !ok {
		return "", reply(ctx, m.api, c, texts.MsgNotThatWay)
	}
	current, err := m.repo.GetRank(userID)
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", reply(ctx, m.api, c, texts.MsgRankMissing)
	}
	if err := m.repo.RemoveRank(userID); err != nil {
		return "", err
	}
	if err := replyHTML(ctx, m.api, c, fmt.Sprintf(texts.MsgRankDemoted, utils.MentionHTML(userID, name))); err != nil {
		return "", err
	}
	return logLine(c, "rank", fmt.Sprintf("Removed %s rank from %s (%d).", current, name, userID)), nil
}

func (m *RanksModule) listStaff(ctx context.Context, c *dispatch.Ctx) (string, error) {
	var b strings.Builder
	for _, rank := range []string{repository.RankSudo, repository.RankSupport, repository.RankWhitelist, repository.RankPro} {
		rows, err := m.repo.ListByRank(rank)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "<b>%s</b>: %d users\n", rank, len(rows))
	}
	return "", replyHTML(ctx, m.api, c, b.String())
}

// Stats contributes rank counts to the stats overview.
func (m *RanksModule) Stats(ctx context.Context) (string, error) {
	total := 0
	for _, rank := range []string{repository.RankSudo, repository.RankSupport, repository.RankWhitelist, repository.RankPro} {
		rows, err := m.repo.ListByRank(rank)
		if err != nil {
			return "", err
		}
		total += len(rows)
	}
	return fmt.Sprintf("%d users hold a bot rank", total), nil
}
