package searchstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/moolen/spectre/internal/model"
)

// buildSearchAfterBody builds the request body for a paginated,
// ascending-timestamp search, appending search_after only when cursor
// is non-nil — an absent cursor means "from the beginning" and must
// not default to a literal search_after value of 0.
func buildSearchAfterBody(size int, cursor *model.Cursor) []byte {
	body := map[string]any{
		"size": size,
		"sort": []map[string]string{{"timestamp": "asc"}},
	}
	if cursor != nil {
		body["search_after"] = []any{cursor.SortValue}
	}
	data, _ := json.Marshal(body)
	return data
}

// buildCountBody builds a bool/filter count query matching is_anomaly,
// a detection_timestamp range, and a terms filter on level.
func buildCountBody(filter CountFilter) []byte {
	must := []map[string]any{
		{"term": map[string]any{"is_anomaly": filter.IsAnomaly}},
		{"range": map[string]any{
			"detection_timestamp": map[string]any{
				"gte": filter.Since.UTC().Format(time.RFC3339),
				"lte": filter.Until.UTC().Format(time.RFC3339),
			},
		}},
	}
	if len(filter.Levels) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"level": filter.Levels}})
	}
	body := map[string]any{"query": map[string]any{"bool": map[string]any{"filter": must}}}
	data, _ := json.Marshal(body)
	return data
}

// bulkAction is one NDJSON action/document pair in a bulk request.
type bulkAction struct {
	index string
	id    string
	doc   map[string]any
}

// buildBulkUpsertBody renders the Elasticsearch bulk NDJSON format:
// an action line followed by a doc line, per action, each doc wrapped
// for update-with-upsert semantics.
func buildBulkUpsertBody(actions []bulkAction) []byte {
	var buf bytes.Buffer
	for _, a := range actions {
		meta := map[string]any{"update": map[string]any{"_index": a.index, "_id": a.id}}
		metaLine, _ := json.Marshal(meta)
		docLine, _ := json.Marshal(map[string]any{"doc": a.doc, "doc_as_upsert": true})
		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// indexPattern returns the backend wildcard pattern for a log index
// prefix, e.g. "app-logs" -> "app-logs-*".
func indexPattern(prefix string) string {
	return fmt.Sprintf("%s-*", prefix)
}

// listAllSize bounds the one-shot catalog load at startup. A catalog
// mined from real traffic stays in the low hundreds of templates;
// this leaves comfortable headroom without paginating.
const listAllSize = 10000

// buildMatchAllBody builds a plain match_all query for loading every
// document in an index in one request.
func buildMatchAllBody() []byte {
	body := map[string]any{
		"size":  listAllSize,
		"query": map[string]any{"match_all": map[string]any{}},
	}
	data, _ := json.Marshal(body)
	return data
}
