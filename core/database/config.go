package database

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DriverPostgres selects a PostgreSQL server (hosted or local).
	DriverPostgres = "postgres"
	// DriverSQLite selects an embedded SQLite file.
	DriverSQLite = "sqlite"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// Path is the database file used by the sqlite driver.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// MigrationsDir defaults to migrations/<driver>.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
	// ConnectTimeout bounds how long Connect waits for the server to answer.
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"DB_CONNECT_TIMEOUT"`
}

// Normalize validates the settings and fills defaults.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "", "postgresql", DriverPostgres:
		c.Driver = DriverPostgres
		if strings.TrimSpace(c.Host) == "" {
			return fmt.Errorf("database.host is required for the postgres driver")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "require"
		}
	case "sqlite3", DriverSQLite:
		c.Driver = DriverSQLite
		if strings.TrimSpace(c.Path) == "" {
			c.Path = "survey.db"
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Driver)
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 5
	}
	if c.Driver == DriverSQLite {
		c.MaxConnections = 1
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("database.connect_timeout must be >= 0")
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
		if c.Driver == DriverSQLite {
			c.ConnectTimeout = 5 * time.Second
		}
	}
	if strings.TrimSpace(c.MigrationsDir) == "" {
		c.MigrationsDir = filepath.Join("migrations", c.Driver)
	}
	return nil
}

// DSN returns the connection string understood by the driver.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return "file:" + c.Path + "?_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// MigrateURL returns the database URL understood by golang-migrate.
func (c Config) MigrateURL() string {
	if c.Driver == DriverSQLite {
		return "sqlite://" + c.Path
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}
