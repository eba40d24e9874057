package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config is the process environment surface. Variable names are kept stable
// for operators of earlier deployments.
type Config struct {
	MastodonServer string `env:"MASTODON_API_BASE_URL"`
	AccessToken    string `env:"MASTODON_ACCESS_TOKEN"`

	StoragePath string `env:"PICREW_STORAGE_PATH" default:"state"`
	FontPath    string `env:"FONT_PATH" default:"/usr/share/fonts/truetype/ubuntu/UbuntuMono-B.ttf"`

	LogLevel  string `env:"PICREW_LOGLEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	PollInterval time.Duration `env:"POLL_INTERVAL" default:"1m"`

	// MetricsAddr enables the Prometheus listener when set, e.g. ":9090".
	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load reads the configuration from the environment (and an optional .env
// file) and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.MastodonServer == "" || cfg.AccessToken == "" {
		return fmt.Errorf("MASTODON_API_BASE_URL and MASTODON_ACCESS_TOKEN must be set")
	}

	parsed, err := url.Parse(cfg.MastodonServer)
	if err != nil {
		return fmt.Errorf("MASTODON_API_BASE_URL is not a valid URL (%q): %w", cfg.MastodonServer, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("MASTODON_API_BASE_URL is not a valid URL (%q): scheme or host missing", cfg.MastodonServer)
	}

	if cfg.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}

	return nil
}

// StatePath is the location of the persisted festival snapshot.
func (c *Config) StatePath() string {
	return filepath.Join(c.StoragePath, "state.json")
}

// QuestionImagePath is where the anonymized collage is written.
func (c *Config) QuestionImagePath() string {
	return filepath.Join(c.StoragePath, "question.png")
}

// AnswerImagePath is where the labeled collage is written.
func (c *Config) AnswerImagePath() string {
	return filepath.Join(c.StoragePath, "answer.png")
}
