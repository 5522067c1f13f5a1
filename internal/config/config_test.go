package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alerterrs "github.com/Twomem/avacta-alert/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "https://avacta.com/feed/", cfg.FeedURL)
	assert.Equal(t, "Avacta", cfg.FeedName)
	assert.True(t, cfg.FeedSortByPublished)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, "last_seen.txt", cfg.LastSeenFile)
	assert.Equal(t, time.Duration(0), cfg.Interval)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadFromEnv(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"TELEGRAM_BOT_TOKEN": "tok",
		"TELEGRAM_CHAT_ID":   "42",
		"INTERVAL":           "15m",
		"STORE":              "sqlite",
	}))
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.TelegramBotToken)
	assert.Equal(t, "42", cfg.TelegramChatID)
	assert.Equal(t, 15*time.Minute, cfg.Interval)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
FEED_URL: https://example.com/feed.xml
TELEGRAM_BOT_TOKEN: from-file
TELEGRAM_CHAT_ID: 1001
FEED_SORT_BY_PUBLISHED: false
`), 0o644))

	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"CONFIG_FILE":        path,
		"TELEGRAM_BOT_TOKEN": "from-env",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/feed.xml", cfg.FeedURL)
	assert.Equal(t, "from-env", cfg.TelegramBotToken, "environment wins over the file")
	assert.Equal(t, "1001", cfg.TelegramChatID)
	assert.False(t, cfg.FeedSortByPublished)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"CONFIG_FILE": filepath.Join(t.TempDir(), "nope.yaml"),
	}))
	require.Error(t, err)
	assert.True(t, alerterrs.IsKind(err, alerterrs.KindConfig))
}

func TestValidate(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{"STORE": "redis"}))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)

	var aerr *alerterrs.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, alerterrs.KindConfig, aerr.Kind)

	var fields []string
	for _, d := range aerr.Details {
		fields = append(fields, d.Field)
	}
	assert.Equal(t, []string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "STORE"}, fields)
}

func TestLogValueRedactsToken(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	l.Info("running", "config", Config{TelegramBotToken: "123:secret", TelegramChatID: "7"})

	assert.NotContains(t, buf.String(), "123:secret")
	assert.Contains(t, buf.String(), "<redacted>")
}
