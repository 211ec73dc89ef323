package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/model"
)

var cursorLog = logging.GetLogger("pipeline.cursor")

// minPersistInterval is the minimum spacing between two disk writes of
// the cursor, per spec: persisted to disk at most every 30s, plus on
// clean shutdown regardless of this interval.
const minPersistInterval = 30 * time.Second

// CursorStore holds the in-memory cursor and flushes it to a local
// JSON file, at most every 30s, using the same write-to-temp-then-
// rename pattern as this codebase's own snapshot persistence.
type CursorStore struct {
	mu           sync.Mutex
	path         string
	current      *model.Cursor
	lastPersist  time.Time
}

// NewCursorStore loads path if it exists; an absent file leaves the
// cursor nil, interpreted by the Reader as "from the beginning" rather
// than defaulting to an integer zero search_after value.
func NewCursorStore(path string) *CursorStore {
	if err := ensureDir(path); err != nil {
		cursorLog.WarnWithFields("failed to create cursor directory", logging.Field("error", err.Error()))
	}
	s := &CursorStore{path: path}
	s.load()
	return s
}

func (s *CursorStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			cursorLog.WarnWithFields("failed to read cursor file, starting from beginning",
				logging.Field("path", s.path), logging.Field("error", err.Error()))
		}
		return
	}
	var c model.Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		cursorLog.WarnWithFields("failed to parse cursor file, starting from beginning",
			logging.Field("path", s.path), logging.Field("error", err.Error()))
		return
	}
	s.current = &c
}

// Current returns the in-memory cursor, or nil if none has been set
// yet (backend search_after should be omitted entirely in that case).
func (s *CursorStore) Current() *model.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Advance sets the in-memory cursor and persists to disk if at least
// minPersistInterval has elapsed since the last persist.
func (s *CursorStore) Advance(next model.Cursor) {
	s.mu.Lock()
	s.current = &next
	due := time.Since(s.lastPersist) >= minPersistInterval
	s.mu.Unlock()

	if due {
		if err := s.Flush(); err != nil {
			cursorLog.ErrorWithErr("failed to persist cursor", err)
		}
	}
}

// Flush writes the current cursor to disk unconditionally, used on
// clean shutdown.
func (s *CursorStore) Flush() error {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return nil
	}

	data, err := json.Marshal(cur)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastPersist = time.Now()
	s.mu.Unlock()
	return nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
