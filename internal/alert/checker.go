package alert

import (
	"context"
	"fmt"
	"log/slog"

	alerterrs "github.com/Twomem/avacta-alert/internal/errors"
)

// Checker runs the fetch, diff and notify sequence against a single feed.
type Checker struct {
	source   Source
	notifier Notifier
	markers  MarkerStore
	feedName string
}

// NewChecker creates a new instance of Checker.
func NewChecker(feedName string, source Source, notifier Notifier, markers MarkerStore) *Checker {
	return &Checker{
		source:   source,
		notifier: notifier,
		markers:  markers,
		feedName: feedName,
	}
}

// Run performs one check. Fetch and marker failures abort the run and leave
// the marker untouched; delivery failures are logged and counted. A context
// cancelled while sending also leaves the marker untouched.
//
// Delivery is at-least-once: if the process dies after sending but before the
// marker is written, the next run sends the same entries again.
func (c *Checker) Run(ctx context.Context) (Result, error) {
	snap, err := c.source.Fetch(ctx)
	if alerterrs.IsKind(err, alerterrs.KindParse) {
		slog.WarnContext(ctx, "feed parsing issue", "error", err, "recovered", len(snap))
	} else if err != nil {
		return Result{}, fmt.Errorf("error fetching feed: %w", err)
	}

	if len(snap) == 0 {
		slog.InfoContext(ctx, "no entries found in feed")
		return Result{State: StateEmpty}, nil
	}

	latest := snap[0]
	slog.InfoContext(ctx, "latest entry", "title", latest.Title, "link", latest.Link)

	lastSeen, err := c.markers.LastSeen(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("error reading marker: %w", err)
	}

	if lastSeen == "" {
		if err := c.markers.SetLastSeen(ctx, latest.Link); err != nil {
			return Result{}, fmt.Errorf("error writing baseline marker: %w", err)
		}
		slog.InfoContext(ctx, "first run, saved latest entry as baseline")
		return Result{State: StateNoBaseline, Marker: latest.Link}, nil
	}

	if latest.Link == lastSeen {
		slog.InfoContext(ctx, "no new entries")
		return Result{State: StateNoChange, Marker: lastSeen}, nil
	}

	fresh := NewEntries(snap, lastSeen)
	slog.InfoContext(ctx, "found new entries", "count", len(fresh))

	res := Result{
		State:  StateNewEntries,
		New:    fresh,
		Marker: lastSeen,
	}

	// Oldest first so the channel reads chronologically.
	for i := len(fresh) - 1; i >= 0; i-- {
		e := fresh[i]
		if err := c.notifier.Send(ctx, Message(c.feedName, e)); err != nil {
			if ctx.Err() != nil {
				break
			}
			res.Failed++
			slog.ErrorContext(ctx, "error sending notification", "link", e.Link, "error", err)
			continue
		}
		res.Delivered++
		slog.InfoContext(ctx, "notification sent", "link", e.Link)
	}

	// Interrupted runs keep the old marker so the unsent entries go out next time.
	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "run interrupted, marker not updated", "delivered", res.Delivered)
		return res, fmt.Errorf("error sending notifications: %w", err)
	}

	if err := c.markers.SetLastSeen(ctx, latest.Link); err != nil {
		return res, fmt.Errorf("error updating marker: %w", err)
	}
	res.Marker = latest.Link
	slog.InfoContext(ctx, "updated last seen entry", "link", latest.Link)

	return res, nil
}

// NewEntries returns the entries of snap that precede lastSeen, newest first.
// If lastSeen is not in snap at all, every entry is returned.
func NewEntries(snap Snapshot, lastSeen string) []Entry {
	fresh := make([]Entry, 0, len(snap))
	for _, e := range snap {
		if e.Link == lastSeen {
			break
		}
		fresh = append(fresh, e)
	}

	return fresh
}

// SelfTest sends the fixed verification message.
func SelfTest(ctx context.Context, feedName string, n Notifier) error {
	if err := n.Send(ctx, SelfTestMessage(feedName)); err != nil {
		return fmt.Errorf("error sending test message: %w", err)
	}

	return nil
}
