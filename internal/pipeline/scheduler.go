package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/metrics"
	"github.com/moolen/spectre/internal/model"
	"github.com/moolen/spectre/internal/searchstore"
)

var schedulerLog = logging.GetLogger("pipeline.scheduler")

// TickInterval is the fixed period between ticks.
const TickInterval = 10 * time.Second

// ReadBatchSize is the page size for each tick's cursor read.
const ReadBatchSize = 5000

// Scheduler drives the pipeline on a fixed timer. Exactly one tick
// runs at a time: if a tick runs longer than the interval, the next
// fires only once the previous returns. It implements
// lifecycle.Component so it can be started and stopped by the
// process's component manager alongside the other long-running parts.
type Scheduler struct {
	backend     searchstore.SearchBackend
	cursorStore *CursorStore
	matcher     *Matcher
	clusterer   *Clusterer
	writer      *Writer
	alerter     *Alerter
	logIndex    string

	catalog   model.Catalog
	catalogMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler wires the five collaborators together. initialCatalog
// should contain the seeded abnormal templates on first boot.
func NewScheduler(backend searchstore.SearchBackend, cursorStore *CursorStore, writer *Writer, alerter *Alerter, logIndex string, initialCatalog model.Catalog) *Scheduler {
	return &Scheduler{
		backend:     backend,
		cursorStore: cursorStore,
		matcher:     NewMatcher(),
		clusterer:   NewClusterer(),
		writer:      writer,
		alerter:     alerter,
		logIndex:    logIndex,
		catalog:     initialCatalog,
	}
}

// Name identifies this component to the lifecycle manager.
func (s *Scheduler) Name() string { return "scheduler" }

// Start begins the ticker loop in a background goroutine and returns
// immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)
	schedulerLog.Info("scheduler started")
	return nil
}

// Stop cancels the ticker loop, waits for any in-flight tick to
// complete, then flushes the cursor to disk.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.done:
	case <-ctx.Done():
		schedulerLog.Warn("scheduler stop deadline exceeded waiting for in-flight tick")
	}
	if err := s.cursorStore.Flush(); err != nil {
		schedulerLog.ErrorWithErr("failed to flush cursor on shutdown", err)
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs the five-step pipeline exactly once. Any error is caught,
// logged, and swallowed here so it never escapes the tick boundary.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			schedulerLog.ErrorWithFields("tick panicked, recovering", logging.Field("panic", r))
		}
	}()

	tickStart := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(tickStart).Seconds()) }()

	now := time.Now().UTC()

	cursor := s.cursorStore.Current()
	logs, _, next, err := s.backend.SearchAfter(ctx, s.logIndex, cursor, ReadBatchSize)
	if err != nil {
		schedulerLog.ErrorWithErr("cursor read failed, tick aborted", err)
		return
	}
	if len(logs) == 0 {
		return
	}

	for i := range logs {
		logs[i].DetectionTimestamp = now
	}

	s.catalogMu.Lock()
	catalogBefore := s.catalog
	s.catalogMu.Unlock()

	unknownIndices := s.matcher.Classify(logs, catalogBefore)
	newCatalog := s.clusterer.Process(logs, unknownIndices, catalogBefore)

	metrics.LogsProcessed.Add(float64(len(logs)))
	anomalies := 0
	for _, rec := range logs {
		if rec.IsAnomaly {
			anomalies++
		}
	}
	metrics.AnomaliesFound.Add(float64(anomalies))

	s.writer.SaveLogs(ctx, logs)

	// Matches the original's len-based diff: since a merge can combine
	// existing templates together, the new catalog is not guaranteed to
	// be a strict superset by position, only by content.
	var diff model.Catalog
	if len(newCatalog) > len(catalogBefore) {
		diff = newCatalog[len(catalogBefore):]
	}
	s.catalogMu.Lock()
	s.catalog = newCatalog
	s.catalogMu.Unlock()
	s.writer.SaveTemplates(ctx, diff)
	metrics.TemplatesMinted.Add(float64(len(diff)))

	s.cursorStore.Advance(*next)

	s.alerter.Check(ctx, now)

	schedulerLog.InfoWithFields("tick complete",
		logging.Field("logs", len(logs)),
		logging.Field("unknown", len(unknownIndices)),
		logging.Field("new_templates", len(diff)))
}
