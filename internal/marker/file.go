// Package marker persists the link of the last notified feed entry.
package marker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Twomem/avacta-alert/internal/alert"
	alerterrs "github.com/Twomem/avacta-alert/internal/errors"
)

var _ alert.MarkerStore = FileStore{}

// FileStore keeps the marker as the whole content of a text file. A missing
// file means no baseline.
type FileStore struct {
	path string
}

func NewFileStore(path string) FileStore {
	return FileStore{path: path}
}

func (s FileStore) LastSeen(context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", alerterrs.E(alerterrs.KindStore, fmt.Errorf("error reading %s: %w", s.path, err))
	}

	return strings.TrimSpace(string(data)), nil
}

func (s FileStore) SetLastSeen(_ context.Context, link string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return alerterrs.E(alerterrs.KindStore, fmt.Errorf("error creating %s: %w", dir, err))
		}
	}
	if err := os.WriteFile(s.path, []byte(link), 0o644); err != nil {
		return alerterrs.E(alerterrs.KindStore, fmt.Errorf("error writing %s: %w", s.path, err))
	}

	return nil
}
