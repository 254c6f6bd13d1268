package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
)

type Server struct {
	logger *slog.Logger
	bot    *bot.Bot
	host   string
	port   string
}

func NewServer(logger *slog.Logger, b *bot.Bot, host, port string) *Server {
	return &Server{
		logger: logger,
		bot:    b,
		host:   host,
		port:   port,
	}
}

// Start registers the webhook with Telegram and serves it. The
// returned cleanup shuts the HTTP server down and drops the webhook so
// a later polling run does not conflict with it.
func (s *Server) Start(ctx context.Context) (func() error, error) {
	webhookURL := fmt.Sprintf("%s/webhook", s.host)

	if _, err := s.bot.SetWebhook(ctx, &bot.SetWebhookParams{URL: webhookURL}); err != nil {
		return nil, fmt.Errorf("failed to set webhook: %w", err)
	}
	s.logger.Info("Webhook registered", "url", webhookURL)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.bot.WebhookHandler())

	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: mux,
	}

	go s.bot.StartWebhook(ctx)

	go func() {
		s.logger.Info("Webhook server listening", "port", s.port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Webhook server failed", "error", err)
		}
	}()

	cleanup := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		if _, err := s.bot.DeleteWebhook(shutdownCtx, &bot.DeleteWebhookParams{DropPendingUpdates: false}); err != nil {
			return fmt.Errorf("failed to delete webhook: %w", err)
		}
		return nil
	}

	return cleanup, nil
}
