package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/spectre/internal/model"
)

func TestCursorStore_AbsentFileStartsWithNilCursor(t *testing.T) {
	dir := t.TempDir()
	s := NewCursorStore(filepath.Join(dir, "cursor.json"))
	assert.Nil(t, s.Current(), "no persisted cursor means search_after is omitted entirely")
}

func TestCursorStore_LoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"last_sort_value":[1700000000000,"abc"]}`), 0o644))

	s := NewCursorStore(path)
	require.NotNil(t, s.Current())
}

func TestCursorStore_AdvanceDoesNotPersistBeforeInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")
	s := NewCursorStore(path)

	// The zero-value lastPersist means the very first Advance always
	// persists immediately; exercise the throttling on the call after.
	s.Advance(model.Cursor{SortValue: float64(1)})
	require.NoError(t, os.Remove(path))

	s.Advance(model.Cursor{SortValue: float64(2)})

	assert.Equal(t, float64(2), s.Current().SortValue)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "a second Advance within the interval should skip the write")
}

func TestCursorStore_FlushWritesUnconditionally(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")
	s := NewCursorStore(path)

	s.Advance(model.Cursor{SortValue: float64(42)})
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "42")
}

func TestCursorStore_FlushOnNilCursorIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")
	s := NewCursorStore(path)

	require.NoError(t, s.Flush())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCursorStore_ReloadsPersistedValueAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")

	s1 := NewCursorStore(path)
	s1.Advance(model.Cursor{SortValue: "marker-7"})
	require.NoError(t, s1.Flush())

	s2 := NewCursorStore(path)
	require.NotNil(t, s2.Current())
	assert.Equal(t, "marker-7", s2.Current().SortValue)
}

func TestCursorStore_AdvancePersistsOnceIntervalElapsed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")
	s := NewCursorStore(path)

	// Simulate the interval having already elapsed so the next Advance
	// triggers an immediate persist rather than waiting another 30s.
	s.mu.Lock()
	s.lastPersist = time.Now().Add(-minPersistInterval - time.Second)
	s.mu.Unlock()

	s.Advance(model.Cursor{SortValue: float64(9)})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "9")
}
