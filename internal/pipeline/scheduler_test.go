package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/spectre/internal/model"
)

func newTestScheduler(t *testing.T, backend *fakeBackend, initialCatalog model.Catalog) *Scheduler {
	cursorStore := NewCursorStore(filepath.Join(t.TempDir(), "cursor.json"))
	writer := NewWriter(backend, "templates")
	alerter := NewAlerter(backend, "logs", testDefaults("http://unused"))
	return NewScheduler(backend, cursorStore, writer, alerter, "logs", initialCatalog)
}

func TestScheduler_Tick_EmptyBatchReturnsEarly(t *testing.T) {
	backend := newFakeBackend()
	s := newTestScheduler(t, backend, nil)

	s.tick(context.Background())

	assert.Nil(t, s.cursorStore.Current(), "an empty batch must not advance the cursor")
	assert.Empty(t, backend.bulkLogUpdates)
}

func TestScheduler_Tick_SearchErrorAbortsWithoutPanicking(t *testing.T) {
	backend := newFakeBackend()
	backend.searchErr = errors.New("backend down")
	s := newTestScheduler(t, backend, nil)

	assert.NotPanics(t, func() { s.tick(context.Background()) })
}

func TestScheduler_Tick_ClassifiesWritesAndAdvancesCursor(t *testing.T) {
	backend := newFakeBackend()
	backend.searchLogs = []model.LogRecord{
		{ID: "1", Content: "user alice logged in"},
		{ID: "2", Content: "an entirely novel one-off message"},
	}
	backend.searchIdx = []string{"logs-0", "logs-0"}
	backend.searchNext = &model.Cursor{SortValue: float64(2)}

	catalog := model.Catalog{model.NewEventTemplate("E1", "user <*> logged in", false)}
	s := newTestScheduler(t, backend, catalog)

	s.tick(context.Background())

	require.NotNil(t, s.cursorStore.Current())
	assert.Equal(t, float64(2), s.cursorStore.Current().SortValue)
	require.Len(t, backend.bulkLogUpdates, 2)
	assert.Equal(t, "E1", backend.bulkLogUpdates[0].EventID)
}

func TestScheduler_Tick_RecoversFromPanic(t *testing.T) {
	backend := newFakeBackend()
	backend.searchLogs = []model.LogRecord{{ID: "1", Content: "anything"}}
	backend.searchIdx = []string{"logs-0"}
	backend.searchNext = nil // dereferencing a nil *next should panic and be recovered

	s := newTestScheduler(t, backend, nil)

	assert.NotPanics(t, func() { s.tick(context.Background()) })
}
