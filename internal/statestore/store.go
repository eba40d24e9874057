// Package statestore persists the single live festival and the watermark
// cursor so the engine can resume after a restart.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tribela/picrew-amuse/internal/domain"
)

// Snapshot is the one persisted record: the watermark cursor plus the
// festival, absent when none is running.
type Snapshot struct {
	Cursor   string                 `json:"last_mention_id"`
	Festival *domain.FestivalConfig `json:"current_festival"`
}

// Store reads and writes snapshots at a fixed path.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Save writes the snapshot atomically: the record lands in a temp file first
// and is renamed over the old one, so a crash mid-write never leaves a
// half-written store behind.
func (s *Store) Save(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state: %w", err)
	}
	return nil
}

// Load returns the last saved snapshot. A missing or corrupt store behaves
// as "nothing persisted" rather than failing startup; an active festival's
// progress may be lost, which is a documented limitation.
func (s *Store) Load() Snapshot {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}
	}
	if err != nil {
		slog.Warn("State file unreadable, starting fresh", "path", s.path, "error", err)
		return Snapshot{}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("State file corrupt, starting fresh", "path", s.path, "error", err)
		return Snapshot{}
	}
	return snap
}
