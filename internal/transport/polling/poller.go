package polling

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
)

type Poller struct {
	logger *slog.Logger
	bot    *bot.Bot
}

func NewPoller(logger *slog.Logger, b *bot.Bot) *Poller {
	return &Poller{
		logger: logger,
		bot:    b,
	}
}

// Run long polls until the context is cancelled. Updates reach the
// handler registered on the bot client.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Starting Long Polling")
	p.bot.Start(ctx)
}
