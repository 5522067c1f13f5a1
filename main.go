// Avacta-Alert watches a single news feed and posts every newly published
// entry to a Telegram chat.
//
// It is meant to be run on a schedule (cron, a CI job) and remembers the
// last entry it has seen between runs. Set INTERVAL to keep it running and
// checking on its own instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/run"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/Twomem/avacta-alert/internal/alert"
	"github.com/Twomem/avacta-alert/internal/config"
	"github.com/Twomem/avacta-alert/internal/feed"
	"github.com/Twomem/avacta-alert/internal/marker"
	"github.com/Twomem/avacta-alert/internal/telegram"
	"github.com/Twomem/avacta-alert/logger"
)

func main() {
	selfTest := flag.Bool("test", false, "send a test message to verify the Telegram settings and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse the config
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	l, logCloser, err := logger.New(logger.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("error creating logger: %s", err)
	}
	slog.SetDefault(l)

	if err := start(ctx, cfg, *selfTest); err != nil {
		slog.Error("error running", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
	logCloser.Close()
}

func start(ctx context.Context, cfg config.Config, selfTest bool) error {
	// Nothing goes out over the network without the secrets.
	if err := cfg.Validate(); err != nil {
		return err
	}

	notifier := telegram.NewClient(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramChatID, cfg.SendTimeout)

	if selfTest {
		if err := alert.SelfTest(ctx, cfg.FeedName, notifier); err != nil {
			return fmt.Errorf("test failed, check TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID: %w", err)
		}
		slog.InfoContext(ctx, "test successful, telegram is configured correctly")
		return nil
	}

	slog.InfoContext(ctx, "running", "config", cfg)

	markers, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	source := feed.NewFetcher(cfg.FeedURL,
		feed.WithTimeout(cfg.FetchTimeout),
		feed.WithSortByPublished(cfg.FeedSortByPublished),
	)
	checker := alert.NewChecker(cfg.FeedName, source, notifier, markers)

	if cfg.Interval == 0 {
		return check(ctx, cfg, checker)
	}

	return watch(ctx, cfg, checker)
}

func openStore(ctx context.Context, cfg config.Config) (alert.MarkerStore, func() error, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := marker.OpenSQLite(ctx, cfg.Database, cfg.FeedURL)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening marker database: %w", err)
		}
		return s, s.Close, nil
	default:
		return marker.NewFileStore(cfg.LastSeenFile), func() error { return nil }, nil
	}
}

// check runs the checker once, tagging every log line with a fresh run id.
func check(ctx context.Context, cfg config.Config, checker *alert.Checker) error {
	ctx = logger.Ctx(ctx,
		slog.String("run_id", uuid.NewString()),
		slog.String("feed_url", cfg.FeedURL),
	)

	began := time.Now()
	res, err := checker.Run(ctx)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "check complete",
		"state", res.State,
		"new", len(res.New),
		"delivered", res.Delivered,
		"failed", res.Failed,
		"marker", res.Marker,
		"duration", time.Since(began),
	)

	return nil
}

// watch checks right away and then on every tick until a signal arrives.
// A failed check is logged and retried on the next tick.
func watch(ctx context.Context, cfg config.Config, checker *alert.Checker) error {
	var g run.Group

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	tickCtx, stop := context.WithCancel(ctx)
	defer stop()
	g.Add(func() error {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			if err := check(tickCtx, cfg, checker); err != nil {
				slog.ErrorContext(tickCtx, "check failed", "error", err)
			}

			select {
			case <-tickCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}, func(error) {
		stop()
	})

	slog.InfoContext(ctx, "watching feed", "interval", cfg.Interval)

	err := g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		slog.InfoContext(ctx, "shutting down", "signal", sigErr.Signal)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		slog.InfoContext(ctx, "shutting down")
		return nil
	}

	return err
}
