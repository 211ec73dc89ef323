package searchstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/metrics"
	"github.com/moolen/spectre/internal/model"
)

var clientLog = logging.GetLogger("searchstore.client")

// Client is an HTTP SearchBackend implementation for a generic
// Elasticsearch-compatible REST API. Transport tuning mirrors this
// codebase's existing search-backend client: bounded connection pool,
// short dial/TLS timeouts, bodies always drained before status
// inspection so the underlying connection can be reused.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL with queryTimeout applied
// to every request.
func NewClient(baseURL string, queryTimeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: transport, Timeout: queryTimeout},
	}
}

func (c *Client) do(ctx context.Context, operation, method, path string, body []byte, contentType string) ([]byte, int, error) {
	start := time.Now()
	defer func() { metrics.BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	// Always read the response body to completion so the connection can
	// be reused, even when the status code indicates an error.
	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		clientLog.ErrorWithFields("backend returned non-2xx",
			logging.Field("path", path), logging.Field("status", resp.StatusCode), logging.Field("body", string(data)))
		return data, resp.StatusCode, fmt.Errorf("backend %s returned status %d", path, resp.StatusCode)
	}
	return data, resp.StatusCode, nil
}

type searchHit struct {
	Index  string          `json:"_index"`
	Sort   []any           `json:"sort"`
	Source model.LogRecord `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

func (c *Client) SearchAfter(ctx context.Context, indexPrefix string, cursor *model.Cursor, size int) ([]model.LogRecord, []string, *model.Cursor, error) {
	body := buildSearchAfterBody(size, cursor)
	data, _, err := c.do(ctx, "search_after", http.MethodPost, "/"+indexPattern(indexPrefix)+"/_search", body, "application/json")
	if err != nil {
		return nil, nil, nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil, nil, fmt.Errorf("parsing search response: %w", err)
	}

	records := make([]model.LogRecord, 0, len(parsed.Hits.Hits))
	indices := make([]string, 0, len(parsed.Hits.Hits))
	next := cursor
	for _, hit := range parsed.Hits.Hits {
		rec := hit.Source
		rec.Index = hit.Index
		records = append(records, rec)
		indices = append(indices, hit.Index)
		if len(hit.Sort) > 0 {
			next = &model.Cursor{SortValue: hit.Sort[len(hit.Sort)-1]}
		}
	}
	return records, indices, next, nil
}

func (c *Client) BulkUpsertLogs(ctx context.Context, updates []LogUpdate) (int, error) {
	actions := make([]bulkAction, len(updates))
	for i, u := range updates {
		actions[i] = bulkAction{
			index: u.Index,
			id:    u.ID,
			doc: map[string]any{
				"event_id":            u.EventID,
				"is_anomaly":          u.IsAnomaly,
				"detection_timestamp": u.DetectionTimestamp.UTC().Format(time.RFC3339),
			},
		}
	}
	return c.bulk(ctx, actions)
}

func (c *Client) BulkUpsertTemplates(ctx context.Context, templatesIndex string, updates []TemplateUpdate) (int, error) {
	actions := make([]bulkAction, len(updates))
	for i, u := range updates {
		actions[i] = bulkAction{
			index: templatesIndex,
			id:    u.EventID,
			doc: map[string]any{
				"template":    u.Template,
				"is_abnormal": u.IsAbnormal,
			},
		}
	}
	return c.bulk(ctx, actions)
}

type bulkResponseItem struct {
	Update struct {
		Status int `json:"status"`
	} `json:"update"`
}

type bulkResponse struct {
	Errors bool               `json:"errors"`
	Items  []bulkResponseItem `json:"items"`
}

func (c *Client) bulk(ctx context.Context, actions []bulkAction) (int, error) {
	if len(actions) == 0 {
		return 0, nil
	}
	body := buildBulkUpsertBody(actions)
	data, _, err := c.do(ctx, "bulk", http.MethodPost, "/_bulk", body, "application/x-ndjson")
	if err != nil {
		return 0, err
	}

	var parsed bulkResponse
	if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
		return 0, fmt.Errorf("parsing bulk response: %w", jsonErr)
	}

	succeeded := 0
	for _, item := range parsed.Items {
		if item.Update.Status >= 200 && item.Update.Status < 300 {
			succeeded++
		}
	}
	if parsed.Errors {
		clientLog.WarnWithFields("bulk upsert had partial failures",
			logging.Field("attempted", len(actions)), logging.Field("succeeded", succeeded))
	}
	return succeeded, nil
}

func (c *Client) Count(ctx context.Context, indexPrefix string, filter CountFilter) (int, error) {
	body := buildCountBody(filter)
	data, _, err := c.do(ctx, "count", http.MethodPost, "/"+indexPattern(indexPrefix)+"/_count", body, "application/json")
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, fmt.Errorf("parsing count response: %w", err)
	}
	return parsed.Count, nil
}

type templateHit struct {
	Source model.EventTemplate `json:"_source"`
}

type templateSearchResponse struct {
	Hits struct {
		Hits []templateHit `json:"hits"`
	} `json:"hits"`
}

func (c *Client) ListTemplates(ctx context.Context, templatesIndex string) (model.Catalog, error) {
	data, status, err := c.do(ctx, "list_templates", http.MethodPost, "/"+templatesIndex+"/_search", buildMatchAllBody(), "application/json")
	if err != nil {
		if status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	var parsed templateSearchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing template catalog response: %w", err)
	}

	catalog := make(model.Catalog, len(parsed.Hits.Hits))
	for i, hit := range parsed.Hits.Hits {
		catalog[i] = hit.Source
	}
	sort.Slice(catalog, func(i, j int) bool {
		return templateOrdinal(catalog[i].EventID) < templateOrdinal(catalog[j].EventID)
	})
	return catalog, nil
}

// templateOrdinal extracts the numeric suffix of an "E<n>" event id for
// sorting a freshly loaded catalog back into mint order. Ids that don't
// parse sort last, stable amongst themselves.
func templateOrdinal(eventID string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(eventID, "E"))
	if err != nil {
		return 1 << 30
	}
	return n
}

func (c *Client) GetDocument(ctx context.Context, index, id string, out any) error {
	data, status, err := c.do(ctx, "get_document", http.MethodGet, fmt.Sprintf("/%s/_doc/%s", index, id), nil, "application/json")
	if err != nil {
		if status == http.StatusNotFound {
			return ErrDocumentNotFound
		}
		return err
	}
	var envelope struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("parsing document envelope: %w", err)
	}
	return json.Unmarshal(envelope.Source, out)
}

func (c *Client) UpsertDocument(ctx context.Context, index, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}
	_, _, err = c.do(ctx, "upsert_document", http.MethodPut, fmt.Sprintf("/%s/_doc/%s", index, id), body, "application/json")
	return err
}
