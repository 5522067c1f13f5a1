// Package config reads the checker settings from the environment and, when
// CONFIG_FILE is set, from a YAML file of the same keys.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	alerterrs "github.com/Twomem/avacta-alert/internal/errors"
)

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

type Config struct {
	FeedURL  string `env:"FEED_URL, default=https://avacta.com/feed/"`
	FeedName string `env:"FEED_NAME, default=Avacta"`
	// Reorder feeds that are not newest first by publication time.
	FeedSortByPublished bool          `env:"FEED_SORT_BY_PUBLISHED, default=true"`
	FetchTimeout        time.Duration `env:"FETCH_TIMEOUT, default=30s"`

	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string        `env:"TELEGRAM_CHAT_ID"`
	TelegramAPIURL   string        `env:"TELEGRAM_API_URL, default=https://api.telegram.org"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT, default=30s"`

	// Either file or sqlite
	Store        string `env:"STORE, default=file"`
	LastSeenFile string `env:"LAST_SEEN_FILE, default=last_seen.txt"`
	Database     string `env:"DATABASE, default=avacta-alert.db"`

	// Zero checks once and exits.
	Interval time.Duration `env:"INTERVAL, default=0s"`

	// Which format to use for logging: either text or json
	LogFormat string `env:"LOG_FORMAT, default=text"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogFile   string `env:"LOG_FILE"`
}

// Load reads the config from the process environment.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the config from l. Values from CONFIG_FILE only fill keys
// that l does not have.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	if path, ok := l.Lookup("CONFIG_FILE"); ok && path != "" {
		m, err := readFile(path)
		if err != nil {
			return Config{}, alerterrs.E(alerterrs.KindConfig, err)
		}
		l = envconfig.MultiLookuper(l, envconfig.MapLookuper(m))
	}

	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return Config{}, alerterrs.E(alerterrs.KindConfig, fmt.Errorf("error parsing config: %w", err))
	}

	return cfg, nil
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	m := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		m[k] = fmt.Sprint(v)
	}

	return m, nil
}

// Validate checks what a run needs before any network call is made.
func (c Config) Validate() error {
	var details []alerterrs.Detail
	if c.TelegramBotToken == "" {
		details = append(details, alerterrs.Detail{Field: "TELEGRAM_BOT_TOKEN", Error: "must be set"})
	}
	if c.TelegramChatID == "" {
		details = append(details, alerterrs.Detail{Field: "TELEGRAM_CHAT_ID", Error: "must be set"})
	}
	if c.FeedURL == "" {
		details = append(details, alerterrs.Detail{Field: "FEED_URL", Error: "must be set"})
	}
	switch c.Store {
	case StoreFile, StoreSQLite:
	default:
		details = append(details, alerterrs.Detail{Field: "STORE", Error: fmt.Sprintf("unknown store %q", c.Store)})
	}
	if c.Interval < 0 {
		details = append(details, alerterrs.Detail{Field: "INTERVAL", Error: "must not be negative"})
	}

	if len(details) > 0 {
		return alerterrs.E(alerterrs.KindConfig, "invalid configuration", details)
	}

	return nil
}

// LogValue keeps the bot token out of the logs.
func (c Config) LogValue() slog.Value {
	token := ""
	if c.TelegramBotToken != "" {
		token = "<redacted>"
	}

	return slog.GroupValue(
		slog.String("feed_url", c.FeedURL),
		slog.String("feed_name", c.FeedName),
		slog.Bool("sort_by_published", c.FeedSortByPublished),
		slog.String("telegram_bot_token", token),
		slog.String("telegram_chat_id", c.TelegramChatID),
		slog.String("store", c.Store),
		slog.Duration("interval", c.Interval),
	)
}
