package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/model"
	"github.com/moolen/spectre/internal/searchstore"
)

var writerLog = logging.GetLogger("pipeline.writer")

const writerConcurrency = 4
const writerBatchSize = 500

// Writer performs the tick's two bulk upsert streams: enriched fields
// on the original log documents, and any newly minted templates.
// Partial failures are logged and not retried; the tick proceeds
// regardless, and the Scheduler advances the cursor after the Writer
// returns whether or not every write succeeded.
type Writer struct {
	backend        searchstore.SearchBackend
	templatesIndex string
}

// NewWriter builds a Writer against backend, writing new templates to templatesIndex.
func NewWriter(backend searchstore.SearchBackend, templatesIndex string) *Writer {
	return &Writer{backend: backend, templatesIndex: templatesIndex}
}

// SaveLogs bulk-upserts {event_id, is_anomaly, detection_timestamp}
// for every record, batched and fanned out with bounded concurrency.
func (w *Writer) SaveLogs(ctx context.Context, logs []model.LogRecord) {
	updates := make([]searchstore.LogUpdate, len(logs))
	for i, rec := range logs {
		updates[i] = searchstore.LogUpdate{
			Index:              rec.Index,
			ID:                 rec.ID,
			EventID:            rec.EventID,
			IsAnomaly:          rec.IsAnomaly,
			DetectionTimestamp: rec.DetectionTimestamp,
		}
	}

	var succeeded, attempted int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(writerConcurrency)
	results := make(chan int, (len(updates)/writerBatchSize)+1)
	for start := 0; start < len(updates); start += writerBatchSize {
		end := min(start+writerBatchSize, len(updates))
		batch := updates[start:end]
		attempted += len(batch)
		g.Go(func() error {
			n, err := w.backend.BulkUpsertLogs(gctx, batch)
			if err != nil {
				writerLog.ErrorWithErr("bulk log upsert failed", err)
			}
			results <- n
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for n := range results {
		succeeded += n
	}

	writerLog.InfoWithFields("saved logs",
		logging.Field("attempted", attempted), logging.Field("succeeded", succeeded))
}

// SaveTemplates bulk-upserts {template, is_abnormal} for the given
// templates, meant to be called with only the catalog diff beyond the
// previous tick's size.
func (w *Writer) SaveTemplates(ctx context.Context, templates []model.EventTemplate) {
	if len(templates) == 0 {
		return
	}
	updates := make([]searchstore.TemplateUpdate, len(templates))
	for i, t := range templates {
		updates[i] = searchstore.TemplateUpdate{EventID: t.EventID, Template: t.Template, IsAbnormal: t.IsAbnormal}
	}
	succeeded, err := w.backend.BulkUpsertTemplates(ctx, w.templatesIndex, updates)
	if err != nil {
		writerLog.ErrorWithErr("bulk template upsert failed", err)
	}
	writerLog.InfoWithFields("saved templates",
		logging.Field("attempted", len(templates)), logging.Field("succeeded", succeeded))
}
