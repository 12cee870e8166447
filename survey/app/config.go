package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/vldos/telegram-survey-bot/core/config"
	coredatabase "github.com/vldos/telegram-survey-bot/core/database"
	"github.com/vldos/telegram-survey-bot/core/health"
)

// SurveyConfig controls the catalog and persistence of completed surveys.
type SurveyConfig struct {
	// CatalogPath points to a YAML catalog; empty uses the embedded one.
	CatalogPath  string        `yaml:"catalog_path" envconfig:"SURVEY_CATALOG_PATH"`
	SaveTimeout  time.Duration `yaml:"save_timeout" envconfig:"SURVEY_SAVE_TIMEOUT"`
	SaveRetries  int           `yaml:"save_retries" envconfig:"SURVEY_SAVE_RETRIES"`
	RetryBackoff time.Duration `yaml:"retry_backoff" envconfig:"SURVEY_RETRY_BACKOFF"`
}

// HealthConfig controls the HTTP health and metrics endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"HEALTH_ENABLED"`
	Listen  string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// Config is the full bot configuration: the reusable core plus the
// survey-specific sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Survey   SurveyConfig        `yaml:"survey"`
	Health   HealthConfig        `yaml:"health"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads the YAML file at path, overlays environment variables and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StorageConfig is the subset of Config read by offline tools that only need
// the stored responses and the catalog.
type StorageConfig struct {
	Database coredatabase.Config `yaml:"database"`
	Survey   SurveyConfig        `yaml:"survey"`
}

// LoadStorage reads the database and survey sections of the config at path.
// The telegram section is neither required nor validated.
func LoadStorage(path string) (*StorageConfig, error) {
	var cfg StorageConfig
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, err
	}
	cfg.Survey.CatalogPath = strings.TrimSpace(cfg.Survey.CatalogPath)
	return &cfg, nil
}

// Normalize validates every section and applies defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	cfg.Survey.CatalogPath = strings.TrimSpace(cfg.Survey.CatalogPath)
	if cfg.Survey.SaveTimeout < 0 {
		return fmt.Errorf("survey.save_timeout must be >= 0")
	}
	if cfg.Survey.SaveTimeout == 0 {
		cfg.Survey.SaveTimeout = 10 * time.Second
	}
	if cfg.Survey.SaveRetries < 0 {
		return fmt.Errorf("survey.save_retries must be >= 0")
	}
	if cfg.Survey.RetryBackoff <= 0 {
		cfg.Survey.RetryBackoff = time.Second
	}

	if cfg.Health.Enabled && strings.TrimSpace(cfg.Health.Listen) == "" {
		cfg.Health.Listen = health.DefaultListen
	}
	return nil
}
