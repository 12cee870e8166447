// Package app wires configuration, storage, the survey service and the
// Telegram adapter into a runnable bot.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vldos/telegram-survey-bot/core/bootstrap"
	coreconfig "github.com/vldos/telegram-survey-bot/core/config"
	coredatabase "github.com/vldos/telegram-survey-bot/core/database"
	"github.com/vldos/telegram-survey-bot/core/health"
	"github.com/vldos/telegram-survey-bot/core/logger"
	"github.com/vldos/telegram-survey-bot/core/metrics"
	tg "github.com/vldos/telegram-survey-bot/core/telegram"
	"github.com/vldos/telegram-survey-bot/core/telegram/middleware"
	"github.com/vldos/telegram-survey-bot/core/telegram/router"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
	"github.com/vldos/telegram-survey-bot/survey/responses"
	"github.com/vldos/telegram-survey-bot/survey/service"
	"github.com/vldos/telegram-survey-bot/survey/session"
	"github.com/vldos/telegram-survey-bot/survey/tgbot"
)

// Options override infrastructure hooks, mostly for tests.
type Options struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
}

// App holds the initialized components of the bot.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	svc      *service.Service
	bot      *tgbot.Bot
	gatherer prometheus.Gatherer
}

// Bootstrap runs the shared bootstrap pipeline and builds the survey stack.
func Bootstrap(ctx context.Context, cfg *Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	cat, err := LoadCatalog(cfg.Survey.CatalogPath)
	if err != nil {
		return nil, err
	}

	bootOpts := bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Connect:    opts.Connect,
		Migrate:    opts.Migrate,
		LoggerInit: opts.LoggerInit,
	}
	res, err := bootstrap.Run(ctx, bootOpts)
	if err != nil {
		return nil, err
	}

	var svc *service.Service
	rec := metrics.NewRecorder(opts.Registerer, func() float64 {
		if svc == nil {
			return 0
		}
		return float64(svc.ActiveSessions())
	})
	metrics.SetDefault(rec)

	store := responses.NewStore(res.DB)
	svc = service.New(cat, session.NewMemoryStore(), store, store, service.Options{
		SaveTimeout:  cfg.Survey.SaveTimeout,
		SaveRetries:  cfg.Survey.SaveRetries,
		RetryBackoff: cfg.Survey.RetryBackoff,
		Metrics:      rec,
	})

	logger.Info(ctx, "app", "bootstrap",
		slog.String("status", "ok"),
		slog.String("db", cfg.Database.Driver),
		slog.Int("count", len(cat.All())),
	)

	return &App{
		cfg:      cfg,
		db:       res.DB,
		svc:      svc,
		bot:      tgbot.New(svc, tgbot.Options{AdminID: cfg.Telegram.AdminID}),
		gatherer: opts.Gatherer,
	}, nil
}

// LoadCatalog reads the catalog at path, or returns the embedded one when
// path is empty.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("app: catalog: %w", err)
	}
	return cat, nil
}

// Service exposes the survey service.
func (a *App) Service() *service.Service { return a.svc }

// TelegramRunOptions assembles the registry, routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	core := &a.cfg.Config
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.bot.RejectAdmin,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: a.bot.UnknownCallback(),
	}))
	routes = append(routes, router.TextRoutes(a.bot, reg, router.TextOptions{
		UnknownText:     a.bot.UnknownText(),
		UnknownDocument: a.bot.UnknownDocument(),
		Admin: middleware.AdminOptions{
			AdminID:  core.Telegram.AdminID,
			OnReject: a.bot.RejectAdmin,
		},
	})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ tg.Runtime) error {
	if !a.cfg.Health.Enabled {
		return nil
	}
	srv, err := health.Listen(health.Options{
		Listen:   a.cfg.Health.Listen,
		Gatherer: a.gatherer,
	})
	if err != nil {
		return fmt.Errorf("app: health listen: %w", err)
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Error(ctx, "health", "health.stop",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil {
		logger.Warn(ctx, "db", "close",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.Info(ctx, "db", "close", slog.String("status", "ok"))
	return nil
}
