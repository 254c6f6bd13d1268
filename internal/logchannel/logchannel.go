// Package logchannel forwards command summaries to each chat's
// registered log channel.
package logchannel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
	"github.com/SnowFuhrer/spiraltgbot/internal/utils"
)

type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type Sender struct {
	api    sender
	repo   repository.LogChannelRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewSender(api sender, repo repository.LogChannelRepository, logger *slog.Logger) *Sender {
	return &Sender{api: api, repo: repo, logger: logger, now: time.Now}
}

// Log appends an event stamp and a deep link to the triggering message,
// then posts the entry to the chat's log channel. A deleted channel is
// unregistered and reported back to the origin chat.
func (s *Sender) Log(ctx context.Context, chat *models.Chat, messageID int, entry string) {
	channelID, err := s.repo.GetChannel(chat.ID)
	if err != nil {
		s.logger.Error("failed to look up log channel", "chat_id", chat.ID, "error", err)
		return
	}
	if channelID == 0 {
		return
	}

	link := utils.MessageLink(chat.ID, chat.Username, messageID)
	stamp := s.now().UTC().Format("2006-01-02 15:04:05 UTC")
	text := fmt.Sprintf("%s\n<b>Event Stamp</b>: <code>%s</code> <a href=\"%s\">%s</a>", entry, stamp, link, chat.Title)
	_, err = s.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    channelID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	})
	if err == nil {
		return
	}
	if strings.Contains(strings.ToLower(err.Error()), "chat not found") {
		if unsetErr := s.repo.Unset(chat.ID); unsetErr != nil {
			s.logger.Error("failed to unset dead log channel", "chat_id", chat.ID, "error", unsetErr)
			return
		}
		if _, sendErr := s.api.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chat.ID,
			Text:   texts.MsgLogChannelGone,
		}); sendErr != nil {
			s.logger.Debug("failed to notify origin chat", "chat_id", chat.ID, "error", sendErr)
		}
		return
	}
	s.logger.Error("failed to post log entry", "chat_id", chat.ID, "channel_id", channelID, "error", err)
}
