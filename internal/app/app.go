package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/SnowFuhrer/spiraltgbot/internal/config"
	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/logchannel"
	"github.com/SnowFuhrer/spiraltgbot/internal/metrics"
	"github.com/SnowFuhrer/spiraltgbot/internal/modules"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/raid"
	"github.com/SnowFuhrer/spiraltgbot/internal/ratelimit"
	"github.com/SnowFuhrer/spiraltgbot/internal/report"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
	"github.com/SnowFuhrer/spiraltgbot/internal/transport/polling"
	"github.com/SnowFuhrer/spiraltgbot/internal/transport/webhook"
	"github.com/SnowFuhrer/spiraltgbot/internal/verify"
)

type App struct {
	cfg    *config.Config
	logger *slog.Logger
	tracer trace.Tracer
}

func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("spiraltgbot"),
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.logger.Info("Starting Spiral Bot")

	// The router is assigned below; the bot client needs the handler
	// before the router can be built on top of the client.
	var router *dispatch.Router
	b, err := bot.New(a.cfg.BotToken, bot.WithDefaultHandler(
		func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			router.HandleUpdate(ctx, update)
		},
	))
	if err != nil {
		return fmt.Errorf("failed to create bot client: %w", err)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	a.logger.Info("Bot connected", "username", me.Username, "id", me.ID)

	db, err := repository.NewPostgresDB(a.cfg.GetDSN(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}

	floodRepo := repository.NewFloodRepository(db, a.cfg.EnableCache)
	raidRepo := repository.NewRaidRepository(db)
	welcomeRepo := repository.NewWelcomeRepository(db)
	pendingRepo := repository.NewPendingRepository(db)
	rankRepo := repository.NewRankRepository(db)
	disabledRepo := repository.NewDisabledRepository(db)
	logChannelRepo := repository.NewLogChannelRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	cleanerRepo := repository.NewCleanerRepository(db)

	var store ratelimit.Store
	if a.cfg.RedisAddr != "" {
		store = ratelimit.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
		}))
		a.logger.Info("Rate limiting backed by redis", "addr", a.cfg.RedisAddr)
	} else {
		store = ratelimit.NewMemoryStore()
		a.logger.Warn("REDIS_ADDR not set, rate limit state is in-memory only")
	}
	limiter := ratelimit.NewLimiter(store, a.cfg.RateLimit, a.cfg.RateWindow, a.logger)

	gate := privilege.NewGate(b, rankRepo, me.ID, a.cfg.OwnerID, a.cfg.DevIDs, a.logger)
	reporter := report.NewReporter(b, a.cfg.OwnerID, a.cfg.Debug, a.logger)
	logSink := logchannel.NewSender(b, logChannelRepo, a.logger)

	raidManager := raid.NewManager(raidRepo, func(ctx context.Context, chatID int64) {
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   texts.MsgRaidAutoDisabled,
		}); err != nil {
			a.logger.Debug("failed to announce raid expiry", "chat_id", chatID, "error", err)
		}
	}, a.logger)
	defer raidManager.Stop()

	verifier := verify.NewService(b, pendingRepo, a.cfg.VerifyDeadline, a.logger)

	migratables := []modules.Migratable{
		floodRepo, raidRepo, welcomeRepo, pendingRepo,
		disabledRepo, logChannelRepo, approvalRepo, cleanerRepo,
	}

	router = dispatch.NewRouter(b, a.logger, dispatch.RouterOptions{
		BotUsername:          me.Username,
		DeleteDeniedCommands: a.cfg.DeleteDeniedCommands,
		Chain: []dispatch.Middleware{
			dispatch.NewRateLimitMiddleware(limiter),
			dispatch.NewPermissionMiddleware(gate),
			dispatch.NewDisabledMiddleware(disabledRepo, gate),
		},
		Gate:    gate,
		LogSink: logSink,
		OnMigrate: func(ctx context.Context, oldChatID, newChatID int64) {
			for _, m := range migratables {
				if err := m.MigrateChat(oldChatID, newChatID); err != nil {
					reporter.Report(ctx, "migrate", err)
				}
			}
			gate.InvalidateAdmins(oldChatID)
		},
		Report: reporter.Report,
	})

	raidModule := modules.NewRaidModule(b, raidManager, raidRepo, gate, a.logger)
	ranksModule := modules.NewRanksModule(b, rankRepo)
	devModule := modules.NewDevModule(b, gate, reporter)
	devModule.AddStatsReporter("ranks", ranksModule)

	all := []interface{ Register(*dispatch.Router) }{
		modules.NewFloodModule(b, floodRepo, approvalRepo, gate, logSink, a.logger),
		raidModule,
		modules.NewWelcomeModule(b, welcomeRepo, verifier, raidModule, gate, a.logger),
		modules.NewApproveModule(b, approvalRepo),
		modules.NewCleanerModule(b, cleanerRepo, gate, a.logger),
		modules.NewDisableModule(b, disabledRepo),
		modules.NewLogChannelModule(b, logChannelRepo),
		ranksModule,
		devModule,
	}
	for _, m := range all {
		m.Register(router)
	}

	if err := raidManager.Resume(ctx); err != nil {
		a.logger.Error("Failed to resume raid timers", "error", err)
	}
	if err := verifier.Resume(ctx); err != nil {
		a.logger.Error("Failed to resume verification deadlines", "error", err)
	}

	metricsSrv := metrics.NewServer(a.logger, a.cfg.MetricsAddr)
	go func() {
		if err := metricsSrv.Listen(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
	defer func() {
		if err := metricsSrv.Shutdown(); err != nil {
			a.logger.Error("Metrics server shutdown failed", "error", err)
		}
	}()

	if a.cfg.WebhookHost != "" {
		a.logger.Info("Starting in Webhook mode", "host", a.cfg.WebhookHost)
		srv := webhook.NewServer(a.logger, b, a.cfg.WebhookHost, a.cfg.Port)
		cleanup, err := srv.Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start webhook server: %w", err)
		}
		defer func() {
			if err := cleanup(); err != nil {
				a.logger.Error("Cleanup failed", "error", err)
			}
		}()
	} else {
		a.logger.Info("Starting in Long Polling mode")
		go polling.NewPoller(a.logger, b).Run(ctx)
	}

	<-ctx.Done()
	a.logger.Info("Shutting down...")

	return nil
}
