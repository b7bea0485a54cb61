package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string  `envconfig:"BOT_TOKEN" required:"true"`
	AdminIDs  []int64 `envconfig:"ADMIN_IDS"` // comma separated
	DefaultTZ string  `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"`

	DBDriver       string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres
	DBPath         string `envconfig:"DB_PATH" default:"./data/legendalf.db"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	LegacyJSONPath string `envconfig:"LEGACY_JSON_PATH" default:"./data/users.json"`

	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	QuotesFile   string        `envconfig:"QUOTES_FILE" default:"./data/quotes.txt"`
	MediaDir     string        `envconfig:"MEDIA_DIR" default:"./data/media"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	LogDir   string `envconfig:"LOG_DIR"`                  // empty: stdout only
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads a .env file from the working directory when present, then
// environment variables into Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("POLL_INTERVAL must not be negative, got %s", c.PollInterval)
	}
	return nil
}
