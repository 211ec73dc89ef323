package pipeline

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/moolen/spectre/internal/model"
	"github.com/moolen/spectre/internal/searchstore"
)

// fakeBackend is an in-memory stand-in for searchstore.SearchBackend,
// used across this package's tests instead of a live backend.
type fakeBackend struct {
	mu sync.Mutex

	searchLogs  []model.LogRecord
	searchIdx   []string
	searchNext  *model.Cursor
	searchErr   error

	bulkLogUpdates      []searchstore.LogUpdate
	bulkLogErr          error
	bulkLogSucceeded    int

	bulkTemplateUpdates   []searchstore.TemplateUpdate
	bulkTemplateErr       error
	bulkTemplateSucceeded int

	countResult int
	countErr    error

	docs    map[string]any
	getErr  error
	putErr  error

	listTemplates model.Catalog
	listErr       error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{docs: map[string]any{}}
}

func (f *fakeBackend) SearchAfter(ctx context.Context, indexPrefix string, cursor *model.Cursor, size int) ([]model.LogRecord, []string, *model.Cursor, error) {
	return f.searchLogs, f.searchIdx, f.searchNext, f.searchErr
}

func (f *fakeBackend) BulkUpsertLogs(ctx context.Context, updates []searchstore.LogUpdate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkLogUpdates = append(f.bulkLogUpdates, updates...)
	if f.bulkLogErr != nil {
		return 0, f.bulkLogErr
	}
	if f.bulkLogSucceeded != 0 {
		return f.bulkLogSucceeded, nil
	}
	return len(updates), nil
}

func (f *fakeBackend) BulkUpsertTemplates(ctx context.Context, templatesIndex string, updates []searchstore.TemplateUpdate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkTemplateUpdates = append(f.bulkTemplateUpdates, updates...)
	if f.bulkTemplateErr != nil {
		return 0, f.bulkTemplateErr
	}
	return len(updates), nil
}

func (f *fakeBackend) Count(ctx context.Context, indexPrefix string, filter searchstore.CountFilter) (int, error) {
	return f.countResult, f.countErr
}

func (f *fakeBackend) GetDocument(ctx context.Context, index, id string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.docs[index+"/"+id]
	if !ok {
		return searchstore.ErrDocumentNotFound
	}
	return json.Unmarshal(raw.([]byte), out)
}

func (f *fakeBackend) UpsertDocument(ctx context.Context, index, id string, doc any) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[index+"/"+id] = data
	return nil
}

func (f *fakeBackend) ListTemplates(ctx context.Context, templatesIndex string) (model.Catalog, error) {
	return f.listTemplates, f.listErr
}
