package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/moolen/spectre/internal/model"
	"github.com/moolen/spectre/internal/searchstore"
)

var errDocNotFound = errors.New("document not found")

// fakeBackend is an in-memory stand-in for searchstore.SearchBackend
// used by this package's handler tests.
type fakeBackend struct {
	mu sync.Mutex

	countResult int
	countErr    error

	docs   map[string]any
	getErr error
	putErr error

	listTemplates model.Catalog
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{docs: map[string]any{}}
}

func (f *fakeBackend) SearchAfter(ctx context.Context, indexPrefix string, cursor *model.Cursor, size int) ([]model.LogRecord, []string, *model.Cursor, error) {
	return nil, nil, nil, nil
}

func (f *fakeBackend) BulkUpsertLogs(ctx context.Context, updates []searchstore.LogUpdate) (int, error) {
	return len(updates), nil
}

func (f *fakeBackend) BulkUpsertTemplates(ctx context.Context, templatesIndex string, updates []searchstore.TemplateUpdate) (int, error) {
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
		return errDocNotFound
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
	return f.listTemplates, nil
}
