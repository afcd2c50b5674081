// Package progress persists the set of work-item identifiers that have
// already produced output, enabling resumable runs.
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Store is the durable record of completed identifiers. It is owned by the
// orchestrator's single control goroutine; it performs no locking.
//
// Durable form: a JSON array of sorted identifier strings. An absent or
// corrupt file loads as an empty set — losing progress means redoing work,
// never failing the run.
type Store struct {
	path         string
	saveInterval int
	done         map[string]struct{}
	unsaved      int

	// dirty forces the next Flush even with no additions: set when an
	// existing durable file was discarded on load, so the cleared set
	// replaces it instead of surviving into the next run.
	dirty bool
}

// Load reads the progress file at path. saveInterval bounds how many MarkDone
// calls may accumulate before Flush persists them (<=0 means flush on every
// addition). With ignoreExisting the durable content is discarded and the set
// starts empty, forcing a full reprocess.
func Load(path string, saveInterval int, ignoreExisting bool) *Store {
	s := &Store{
		path:         path,
		saveInterval: saveInterval,
		done:         make(map[string]struct{}),
	}
	if ignoreExisting {
		if _, err := os.Stat(path); err == nil {
			s.dirty = true
		}
		return s
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return s
	}
	for _, id := range ids {
		s.done[id] = struct{}{}
	}
	return s
}

// Contains reports whether id has already been fully processed.
func (s *Store) Contains(id string) bool {
	_, ok := s.done[id]
	return ok
}

// Len returns the number of completed identifiers.
func (s *Store) Len() int {
	return len(s.done)
}

// MarkDone records id as completed in memory. Durability is deferred to
// Flush; the caller is expected to have flushed the corresponding output row
// first, so a crash in the window re-processes the item rather than losing it.
func (s *Store) MarkDone(id string) {
	if _, ok := s.done[id]; ok {
		return
	}
	s.done[id] = struct{}{}
	s.unsaved++
}

// NeedsFlush reports whether enough additions accumulated since the last
// Flush to warrant persisting.
func (s *Store) NeedsFlush() bool {
	if s.unsaved == 0 {
		return false
	}
	return s.saveInterval <= 0 || s.unsaved >= s.saveInterval
}

// Flush persists the full set atomically: write to a temp file, sync, rename
// over the target. A crash mid-flush leaves the previous snapshot intact.
func (s *Store) Flush() error {
	if s.unsaved == 0 && !s.dirty {
		return nil
	}

	ids := make([]string, 0, len(s.done))
	for id := range s.done {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write progress: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close progress: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace progress: %w", err)
	}

	s.unsaved = 0
	s.dirty = false
	return nil
}
