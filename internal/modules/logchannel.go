package modules

import (
	"context"
	"fmt"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
)

// LogChannelModule binds a channel to a group so admin actions get
// mirrored there. Registration works by forwarding a /setlog posted in
// the channel into the group.
type LogChannelModule struct {
	api  BotAPI
	repo repository.LogChannelRepository
}

func NewLogChannelModule(api BotAPI, repo repository.LogChannelRepository) *LogChannelModule {
	return &LogChannelModule{api: api, repo: repo}
}

func (m *LogChannelModule) Register(router *dispatch.Router) {
	adminReq := privilege.Requirement{Level: privilege.ChatAdmin, Perm: privilege.PermChangeInfo}
	// Registration is a forward of a /setlog posted in the channel,
	// so the command only makes sense inside a group.
	router.RegisterCommand(&dispatch.Registration{
		Name: "setlog", Req: adminReq, GroupOnly: true, Handler: m.setLog,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "unsetlog", Req: adminReq, GroupOnly: true, Handler: m.unsetLog,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "logchannel", Req: privilege.Requirement{Level: privilege.ChatAdmin}, GroupOnly: true, Handler: m.showLog,
	})
}

func (m *LogChannelModule) setLog(ctx context.Context, c *dispatch.Ctx) (string, error) {
	origin := c.Msg.ForwardOrigin
	if origin == nil || origin.MessageOriginChannel == nil {
		return "", reply(ctx, m.api, c, texts.MsgLogChannelHowTo)
	}
	channelID := origin.MessageOriginChannel.Chat.ID
	if err := m.repo.SetChannel(c.Chat.ID, channelID); err != nil {
		return "", err
	}
	if err := reply(ctx, m.api, c, texts.MsgLogChannelSet); err != nil {
		return "", err
	}
	return logLine(c, "setlog", fmt.Sprintf("Set the log channel to %d.", channelID)), nil
}

func (m *LogChannelModule) unsetLog(ctx context.Context, c *dispatch.Ctx) (string, error) {
	channelID, err := m.repo.GetChannel(c.Chat.ID)
	if err != nil {
		return "", err
	}
	if channelID == 0 {
		return "", reply(ctx, m.api, c, texts.MsgLogChannelNone)
	}
	if err := m.repo.Unset(c.Chat.ID); err != nil {
		return "", err
	}
	return "", reply(ctx, m.api, c, texts.MsgLogChannelUnset)
}

func (m *LogChannelModule) showLog(ctx context.Context, c *dispatch.Ctx) (string, error) {
	channelID, err := m.repo.GetChannel(c.Chat.ID)
	if err != nil {
		return "", err
	}
	if channelID == 0 {
		return "", reply(ctx, m.api, c, texts.MsgLogChannelNone)
	}
	return "", reply(ctx, m.api, c, fmt.Sprintf("This group's log channel is %d.", channelID))
}
