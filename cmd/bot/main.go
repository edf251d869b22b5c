// Package main contains the entrypoint for the QuotaBot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"quotabot/internal/bot"
	"quotabot/internal/bot/tasks"
	"quotabot/internal/classifier"
	"quotabot/internal/config"
	"quotabot/internal/database"
	"quotabot/internal/logger"
	"quotabot/internal/market"
	"quotabot/internal/pipeline"
	"quotabot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// classifier, pipeline, bot, scheduler), handles graceful shutdown, and
// returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	nluClient, err := classifier.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize classifier client", "error", err)
		return 1
	}

	guard := pipeline.NewGuard(pipeline.GuardConfig{
		BurstWindow: cfg.Pipeline.BurstWindow,
		DedupWindow: cfg.Pipeline.DedupWindow,
	}, log)
	cooldowns := pipeline.NewCooldownTracker()

	p := buildPipeline(cfg, store, nluClient, guard, cooldowns, log)

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(telegram.NewIngestHandler(p, cfg, log)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = telegram.ResolveBotInfo(ctx, tg)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:    log,
		Store:     store,
		Guard:     guard,
		Cooldowns: cooldowns,
		Config:    cfg,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, db, p, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// buildPipeline assembles the routing pipeline: parsers, guard, handler
// chain in priority order, and the telemetry recorder. Live ticker and
// analytics integrations are injected here when available; without them the
// ticker handler declines and the fallback handler answers not-found.
func buildPipeline(cfg *config.Config, store database.Store, nluClient classifier.Client, guard *pipeline.Guard, cooldowns *pipeline.CooldownTracker, log *slog.Logger) *pipeline.Pipeline {
	commandParser := pipeline.NewCommandParser(cfg.Pipeline.JoinCommands, cfg.Pipeline.HelpCommands)
	currencyParser := pipeline.NewCurrencyParser(cfg.Pipeline.Currencies)
	symbolParser := pipeline.NewSymbolParser(cfg.Pipeline.SymbolAliases, cfg.Pipeline.SymbolBlacklist)

	recorder := pipeline.NewRecorder(store, cfg.Pipeline.TelemetryTextCap, log)

	rateSources := market.StaticRateSources(cfg.Pipeline.RateSources)
	var cryptoPrimary, cryptoSecondary, equities market.TickerSource
	var analytics market.AnalyticsSource
	log.Warn("No live ticker sources injected; symbol lookups fall through to the classifier")

	chain := []pipeline.Handler{
		pipeline.NewCommandHandler(commandParser, cfg.Messages.Join, cfg.Messages.Help, log),
		pipeline.NewCurrencyHandler(currencyParser, rateSources, pipeline.CurrencyHandlerConfig{
			DefaultRate: cfg.Pipeline.DefaultRate,
			RateTimeout: cfg.Pipeline.RateTimeout,
		}, log),
		pipeline.NewTickerHandler(symbolParser, cryptoPrimary, cryptoSecondary, analytics, pipeline.TickerHandlerConfig{
			MajorSymbols:      cfg.Pipeline.MajorSymbols,
			TickerTimeout:     cfg.Pipeline.TickerTimeout,
			EnrichmentTimeout: cfg.Pipeline.EnrichmentTimeout,
		}, log),
		pipeline.NewFallbackHandler(nluClient, equities, cooldowns, pipeline.FallbackHandlerConfig{
			ConfidenceThreshold: cfg.Pipeline.ConfidenceThreshold,
			ClassifyTimeout:     cfg.Pipeline.ClassifyTimeout,
			TickerTimeout:       cfg.Pipeline.TickerTimeout,
			GuidanceCooldown:    cfg.Pipeline.GuidanceCooldown,
			GuidanceReply:       cfg.Messages.Guidance,
			NotFoundReply:       cfg.Messages.NotFound,
		}, log),
	}

	return pipeline.NewPipeline(guard, chain, recorder, cfg.Messages.Busy, log)
}
