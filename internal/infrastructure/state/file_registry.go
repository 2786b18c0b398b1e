// Package state persists which publications were already delivered, so a
// digest never repeats an entry across runs.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"doubot/internal/ports"
)

// FileRegistry keeps seen publication ids in a JSON file. Entries are stored
// in insertion order; when the cap is exceeded the oldest entries are pruned
// first.
type FileRegistry struct {
	path       string
	maxEntries int
	logger     *slog.Logger

	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
}

var _ ports.SeenRegistry = (*FileRegistry)(nil)

// NewFileRegistry loads the registry from path. A missing file starts empty.
// A corrupt file is logged and discarded: losing dedup history means a
// duplicate email at worst, while failing here would mean no email at all.
func NewFileRegistry(path string, maxEntries int, logger *slog.Logger) (*FileRegistry, error) {
	r := &FileRegistry{
		path:       path,
		maxEntries: maxEntries,
		logger:     logger,
		ids:        map[string]struct{}{},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("state: read %s: %w", path, err)
	}

	var entries []string
	if err := json.Unmarshal(raw, &entries); err != nil {
		if logger != nil {
			logger.Warn("seen file is corrupt, starting empty", "path", path, "error", err)
		}
		return r, nil
	}

	for _, id := range entries {
		if _, ok := r.ids[id]; ok || id == "" {
			continue
		}
		r.ids[id] = struct{}{}
		r.order = append(r.order, id)
	}
	return r, nil
}

// Seen reports whether the id was already delivered.
func (r *FileRegistry) Seen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of remembered ids.
func (r *FileRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// MarkSeen records the ids and persists the registry atomically.
func (r *FileRegistry) MarkSeen(ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := r.ids[id]; ok {
			continue
		}
		r.ids[id] = struct{}{}
		r.order = append(r.order, id)
		changed = true
	}

	if r.maxEntries > 0 && len(r.order) > r.maxEntries {
		drop := len(r.order) - r.maxEntries
		for _, old := range r.order[:drop] {
			delete(r.ids, old)
		}
		r.order = append([]string(nil), r.order[drop:]...)
		changed = true
	}

	if !changed {
		return nil
	}
	return r.save()
}

// save writes to a temp file in the same directory and renames it over the
// registry, so a crash mid-write never corrupts existing history.
func (r *FileRegistry) save() error {
	payload, err := json.MarshalIndent(r.order, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal registry: %w", err)
	}
	payload = append(payload, '\n')

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("state: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("state: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("state: replace %s: %w", r.path, err)
	}

	if r.logger != nil {
		r.logger.Debug("seen registry saved", "path", r.path, "entries", len(r.order))
	}
	return nil
}
