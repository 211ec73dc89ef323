package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/spectre/internal/model"
)

func TestWriter_SaveLogs_BatchesAcrossTheConfiguredSize(t *testing.T) {
	backend := newFakeBackend()
	w := NewWriter(backend, "templates")

	logs := make([]model.LogRecord, writerBatchSize+1)
	for i := range logs {
		logs[i] = model.LogRecord{ID: newRecord("x").ID, EventID: "E1"}
	}

	w.SaveLogs(context.Background(), logs)

	require.Len(t, backend.bulkLogUpdates, writerBatchSize+1, "every record must reach the backend across batches")
}

func TestWriter_SaveLogs_ContinuesAfterPartialBatchFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.bulkLogErr = errors.New("backend unavailable")
	w := NewWriter(backend, "templates")

	logs := []model.LogRecord{{ID: "a"}, {ID: "b"}}
	assert.NotPanics(t, func() { w.SaveLogs(context.Background(), logs) })
}

func TestWriter_SaveTemplates_SkipsEmptyDiff(t *testing.T) {
	backend := newFakeBackend()
	w := NewWriter(backend, "templates")

	w.SaveTemplates(context.Background(), nil)

	assert.Empty(t, backend.bulkTemplateUpdates)
}

func TestWriter_SaveTemplates_UpsertsEachTemplate(t *testing.T) {
	backend := newFakeBackend()
	w := NewWriter(backend, "templates")

	diff := model.Catalog{model.NewEventTemplate("E9", "disk usage at <*> percent", false)}
	w.SaveTemplates(context.Background(), diff)

	require.Len(t, backend.bulkTemplateUpdates, 1)
	assert.Equal(t, "E9", backend.bulkTemplateUpdates[0].EventID)
}
