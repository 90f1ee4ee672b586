package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/streambot/internal/arr"
	"github.com/edgard/streambot/internal/bot"
	"github.com/edgard/streambot/internal/bot/handlers"
	"github.com/edgard/streambot/internal/bot/tasks"
	"github.com/edgard/streambot/internal/config"
	"github.com/edgard/streambot/internal/database"
	"github.com/edgard/streambot/internal/logger"
	"github.com/edgard/streambot/internal/media"
	"github.com/edgard/streambot/internal/moderation"
	"github.com/edgard/streambot/internal/nightmode"
	"github.com/edgard/streambot/internal/telegram"
	"github.com/edgard/streambot/internal/tmdb"
	"github.com/edgard/streambot/internal/upstream"
)

// run initializes and starts all application components (config, logger, db,
// upstream clients, bot, scheduler), handles graceful shutdown, and returns
// an exit code (0 for success, 1 for failure).
func run(ctx context.Context, configPath string) int {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)
	cfg.LogSummary(log)

	window, err := nightmode.ParseWindow(cfg.NightMode.Start, cfg.NightMode.End)
	if err != nil {
		log.Error("Invalid night mode window", "error", err)
		return 1
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log, cfg.TMDb.DefaultLanguage)

	workflow, err := newWorkflow(cfg, store, log)
	if err != nil {
		log.Error("Failed to initialize media clients", "error", err)
		return 1
	}

	// The default handler needs the gate, which needs the bot client.
	var defaultHandler tgbot.HandlerFunc
	tg, err := telegram.NewTelegramBot(cfg.Telegram, log,
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			defaultHandler(ctx, b, update)
		}),
	)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	roles := moderation.NewRoleResolver(tg, cfg.Telegram.RequestTimeout)
	nightMode := nightmode.NewService(store, tg, nightmode.Options{
		Window:         window,
		Location:       cfg.NightMode.Location,
		ThreadID:       cfg.NightMode.ThreadID,
		StartedText:    cfg.Messages.NightModeStarted,
		EndedText:      cfg.Messages.NightModeEnded,
		RequestTimeout: cfg.Telegram.RequestTimeout,
		Logger:         log,
	})
	gate := moderation.NewGate(store, roles, tg, moderation.GateOptions{
		WarningText:    nightModeWarning(cfg.Messages.NightModeWarnFmt, window),
		RequestTimeout: cfg.Telegram.RequestTimeout,
		Logger:         log,
	})

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Store:     store,
		NightMode: nightMode,
		Gate:      gate,
		Roles:     roles,
		Workflow:  workflow,
	}
	defaultHandler = handlers.NewTextHandler(hDeps)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.SetCommands(ctx, tg, cfg.Telegram.RequestTimeout, cmdHandlers); err != nil {
		log.Warn("Failed to publish command list", "error", err)
	}

	tDeps := tasks.TaskDeps{
		Logger:    log,
		Store:     store,
		NightMode: nightMode,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, cfg.NightMode.Location, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx) // Run blocks until context is cancelled or an error occurs

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}

// newWorkflow builds the TMDb, Sonarr and Radarr clients and the media
// request workflow on top of them.
func newWorkflow(cfg *config.Config, store database.Store, log *slog.Logger) (*media.Workflow, error) {
	retry := upstream.RetryPolicy{MaxAttempts: cfg.HTTP.MaxAttempts, MaxBackoff: cfg.HTTP.MaxBackoff}
	base := func(baseURL string) upstream.Options {
		return upstream.Options{
			BaseURL:   baseURL,
			Timeout:   cfg.HTTP.Timeout,
			RateLimit: cfg.HTTP.RateLimit,
			Burst:     cfg.HTTP.Burst,
			Retry:     retry,
			Logger:    log,
		}
	}

	tmdbOpts := base(cfg.TMDb.BaseURL)
	tmdbOpts.Query = url.Values{"api_key": {cfg.TMDb.APIKey}}
	tmdbAPI, err := upstream.New(tmdbOpts)
	if err != nil {
		return nil, err
	}

	newArr := func(kind arr.Kind, c config.ArrConfig) (*arr.Client, error) {
		opts := base(c.URL)
		opts.Header = http.Header{"X-Api-Key": {c.APIKey}}
		api, err := upstream.New(opts)
		if err != nil {
			return nil, err
		}
		return arr.NewClient(kind, api, arr.Settings{
			QualityProfileName: c.QualityProfileName,
			RootFolderPath:     c.RootFolderPath,
		}), nil
	}
	sonarr, err := newArr(arr.Sonarr, cfg.Sonarr)
	if err != nil {
		return nil, err
	}
	radarr, err := newArr(arr.Radarr, cfg.Radarr)
	if err != nil {
		return nil, err
	}

	return media.NewWorkflow(media.Options{
		Catalog:       tmdb.NewClient(tmdbAPI, cfg.TMDb.ImageBaseURL),
		Series:        sonarr,
		Movies:        radarr,
		Sessions:      media.NewSessionStore(cfg.Media.SessionTTL),
		Settings:      store,
		Messages:      cfg.Messages,
		MaxCandidates: cfg.Media.MaxCandidates,
		Logger:        log,
	}), nil
}

func nightModeWarning(format string, w nightmode.Window) string {
	return fmt.Sprintf(format, w.Start, w.End)
}
