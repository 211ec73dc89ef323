// Package searchstore talks to the search-engine backend that owns
// log and template storage: paginated cursor reads, bulk upserts, and
// aggregate counts. The concrete implementation targets a generic
// Elasticsearch-compatible REST API, following the same tuned-HTTP-
// client construction this codebase already uses for its other
// search-backend integration.
package searchstore

import (
	"context"
	"errors"
	"time"

	"github.com/moolen/spectre/internal/model"
)

// ErrDocumentNotFound is returned by GetDocument when the backend
// reports the document absent (HTTP 404), distinguishing "doesn't
// exist yet" from a transient request failure so callers can tell
// whether bootstrapping a default is safe.
var ErrDocumentNotFound = errors.New("document not found")

// SearchBackend is the interface the pipeline and the API layer depend
// on, so tests can substitute a fake without a live backend.
type SearchBackend interface {
	// SearchAfter returns up to size records from indexPrefix-*, ordered
	// ascending by timestamp, starting after cursor (nil cursor means
	// from the beginning — search_after is omitted entirely). indices[i]
	// is the concrete index record[i] was read from.
	SearchAfter(ctx context.Context, indexPrefix string, cursor *model.Cursor, size int) (records []model.LogRecord, indices []string, next *model.Cursor, err error)

	// BulkUpsertLogs patches {event_id, is_anomaly, detection_timestamp}
	// onto each update's document, routed to its index, upsert semantics.
	BulkUpsertLogs(ctx context.Context, updates []LogUpdate) (succeeded int, err error)

	// BulkUpsertTemplates patches {template, is_abnormal} for each
	// update's event_id document in the templates index.
	BulkUpsertTemplates(ctx context.Context, templatesIndex string, updates []TemplateUpdate) (succeeded int, err error)

	// Count returns the number of documents in indexPrefix-* matching filter.
	Count(ctx context.Context, indexPrefix string, filter CountFilter) (int, error)

	// GetDocument loads a single document by index/id into out.
	GetDocument(ctx context.Context, index, id string, out any) error

	// UpsertDocument writes a single document by index/id.
	UpsertDocument(ctx context.Context, index, id string, doc any) error

	// ListTemplates loads the entire template catalog from
	// templatesIndex in one request, for bootstrapping the Scheduler's
	// in-memory catalog on process start. An index that doesn't exist
	// yet (first-ever boot) is not an error: it returns an empty catalog.
	ListTemplates(ctx context.Context, templatesIndex string) (model.Catalog, error)
}

// LogUpdate is one document to patch in a bulk log upsert.
type LogUpdate struct {
	Index              string
	ID                 string
	EventID            string
	IsAnomaly          bool
	DetectionTimestamp time.Time
}

// TemplateUpdate is one document to patch in a bulk template upsert.
type TemplateUpdate struct {
	EventID    string
	Template   string
	IsAbnormal bool
}

// CountFilter constrains a Count query to anomalous documents within a
// time window and a set of levels, matching the Alerter's needs.
type CountFilter struct {
	IsAnomaly bool
	Since     time.Time
	Until     time.Time
	Levels    []string
}
