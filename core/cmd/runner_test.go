package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/vldos/telegram-survey-bot/core/config"
	coretelegram "github.com/vldos/telegram-survey-bot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct {
	started *bool
}

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error {
			*a.started = true
			return nil
		},
	}, nil
}

func TestRunWiresLifecycle(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SURVEY_RUNNER_TEST=from-dotenv\n"), 0o600))
	t.Setenv("SURVEY_RUNNER_TEST", "")
	require.NoError(t, os.Unsetenv("SURVEY_RUNNER_TEST"))
	t.Setenv("SURVEYBOT_CONFIG", "custom.yaml")

	var (
		loadedPath string
		started    bool
	)
	err := Run(Options{
		ConfigEnvVar: "SURVEYBOT_CONFIG",
		EnvFiles:     []string{envFile, filepath.Join(dir, "missing.env")},
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedPath = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return app{started: &started}, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			return opts.OnStart(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "custom.yaml", loadedPath)
	assert.True(t, started)
	assert.Equal(t, "from-dotenv", os.Getenv("SURVEY_RUNNER_TEST"))
}

func TestRunPropagatesBootstrapFailure(t *testing.T) {
	boom := errors.New("db down")
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		EnvFiles:          []string{},
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunRequiresLoaders(t *testing.T) {
	assert.Error(t, Run(Options{}))
}
