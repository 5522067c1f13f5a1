// Package alert detects entries published to a feed since the last check
// and forwards a notification for each of them.
package alert

import (
	"context"
	"fmt"
	"html"
	"time"
)

type (
	// Entry is a single item of a feed as seen by one run.
	Entry struct {
		// HTML-safe text, ready to be placed in a message.
		Title string
		// Identifies the entry across runs.
		Link      string
		Published *time.Time
	}

	// Snapshot is the list of entries returned by one fetch, newest first.
	Snapshot []Entry

	// Source retrieves the current snapshot of the feed.
	Source interface {
		Fetch(ctx context.Context) (Snapshot, error)
	}

	// Notifier delivers a single message.
	Notifier interface {
		Send(ctx context.Context, text string) error
	}

	// MarkerStore persists the link of the most recently notified entry.
	// An empty value means no baseline has been recorded yet.
	MarkerStore interface {
		LastSeen(ctx context.Context) (string, error)
		SetLastSeen(ctx context.Context, link string) error
	}
)

// State is the outcome reached by a single run.
type State string

const (
	StateEmpty      State = "empty"
	StateNoBaseline State = "no_baseline"
	StateNoChange   State = "no_change"
	StateNewEntries State = "new_entries"
)

// Result summarises a run.
type Result struct {
	State State
	// New entries, newest first.
	New       []Entry
	Delivered int
	Failed    int
	// The marker after the run.
	Marker string
}

// Message renders the notification for an entry. Titles arrive already
// escaped from the feed adapter; links are escaped here.
func Message(feedName string, e Entry) string {
	return fmt.Sprintf("<b>New %s News</b>\n\n<b>%s</b>\n\n%s", feedName, e.Title, html.EscapeString(e.Link))
}

// SelfTestMessage is sent by the self-test to verify the notifier settings.
func SelfTestMessage(feedName string) string {
	return fmt.Sprintf("🔔 <b>%s Alert Test</b>\n\nTelegram integration is working correctly!", feedName)
}
