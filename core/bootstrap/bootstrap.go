// Package bootstrap brings up the process infrastructure in order: logging,
// then the database pool, then the schema.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/vldos/telegram-survey-bot/core/config"
	coredatabase "github.com/vldos/telegram-survey-bot/core/database"
	"github.com/vldos/telegram-survey-bot/core/logger"
)

// Options carry the loaded configuration and optional replacements for each
// step; nil steps use the core implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
}

// Result is what the steps produced.
type Result struct {
	DB *sqlx.DB
}

type step struct {
	name string
	run  func(context.Context, *Result) error
}

// Run executes the steps and stops at the first failure. A pool opened before
// the failing step is closed.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opts.defaults()
	dbCfg := opts.Database

	steps := []step{
		{"logger", func(context.Context, *Result) error { return opts.LoggerInit(opts.Config) }},
		{"db_config", func(context.Context, *Result) error { return dbCfg.Normalize() }},
		{"db_connect", func(ctx context.Context, res *Result) (err error) {
			res.DB, err = opts.Connect(ctx, dbCfg)
			return err
		}},
		{"db_migrate", func(ctx context.Context, _ *Result) error { return opts.Migrate(ctx, dbCfg) }},
	}

	res := &Result{}
	for _, s := range steps {
		start := time.Now()
		if err := s.run(ctx, res); err != nil {
			if res.DB != nil {
				_ = res.DB.Close()
			}
			logger.Error(ctx, "bootstrap", "bootstrap.step",
				slog.String("status", "fail"),
				slog.String("op", s.name),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("bootstrap %s: %w", s.name, err)
		}
		logger.Debug(ctx, "bootstrap", "bootstrap.step",
			slog.String("status", "ok"),
			slog.String("op", s.name),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return res, nil
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}
