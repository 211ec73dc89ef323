package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/metrics"
	"github.com/moolen/spectre/internal/model"
	"github.com/moolen/spectre/internal/searchstore"
)

var alerterLog = logging.GetLogger("pipeline.alerter")

// AlertConfigDefaults seeds the AlertConfig document on first boot
// when absent from the backend.
type AlertConfigDefaults struct {
	WindowHours     int
	Threshold       int
	Levels          []string
	CooldownSeconds int
	WebhookURL      string
}

// AlertConfigIndex is the backend index the single AlertConfig document lives in.
const AlertConfigIndex = "alert_config"

// Alerter counts recent anomalies and fires a throttled outbound
// webhook when the configured threshold is crossed.
type Alerter struct {
	backend    searchstore.SearchBackend
	logIndex   string
	defaultsMu sync.RWMutex
	defaults   AlertConfigDefaults
	httpClient *http.Client
}

// NewAlerter builds an Alerter counting anomalies over logIndex-*.
func NewAlerter(backend searchstore.SearchBackend, logIndex string, defaults AlertConfigDefaults) *Alerter {
	return &Alerter{
		backend:    backend,
		logIndex:   logIndex,
		defaults:   defaults,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UpdateDefaults replaces the fallback configuration used to bootstrap
// the AlertConfig document and as the fallback if loading it fails.
// Called from the config file watcher on hot reload; it does not touch
// the already-persisted AlertConfig document.
func (a *Alerter) UpdateDefaults(defaults AlertConfigDefaults) {
	a.defaultsMu.Lock()
	defer a.defaultsMu.Unlock()
	a.defaults = defaults
}

// Check runs one alerter pass: load config (bootstrapping defaults if
// absent), count matching anomalies in the window, and fire a webhook
// if above threshold and past cooldown.
func (a *Alerter) Check(ctx context.Context, now time.Time) {
	cfg, err := a.loadOrBootstrap(ctx)
	if err != nil {
		// A transient read failure means the persisted threshold,
		// cooldown, webhook URL, and last_alert_time are all unknown -
		// proceeding with fresh defaults risks firing through a
		// different webhook or ignoring a cooldown still in effect, and
		// a later successful persist would clobber the real document.
		// Skip this tick and retry on the next one.
		alerterLog.ErrorWithErr("failed to load alert config, skipping this tick", err)
		return
	}

	since := now.Add(-time.Duration(cfg.WindowHours) * time.Hour)
	count, err := a.backend.Count(ctx, a.logIndex, searchstore.CountFilter{
		IsAnomaly: true,
		Since:     since,
		Until:     now,
		Levels:    cfg.Levels,
	})
	if err != nil {
		alerterLog.ErrorWithErr("failed to count anomalies", err)
		return
	}

	if count < cfg.Threshold {
		return
	}

	elapsed := time.Duration(1<<63 - 1) // infinite elapsed if never alerted
	if cfg.LastAlertTime != nil {
		elapsed = now.Sub(*cfg.LastAlertTime)
	}
	if elapsed < time.Duration(cfg.CooldownSeconds)*time.Second {
		metrics.WebhooksSuppressed.Inc()
		return
	}

	if err := a.fireWebhook(ctx, cfg, count); err != nil {
		alerterLog.ErrorWithErr("webhook delivery failed, last_alert_time not updated", err)
		return
	}
	metrics.WebhooksFired.Inc()

	cfg.LastAlertTime = &now
	if err := a.backend.UpsertDocument(ctx, AlertConfigIndex, model.AlertConfigDocID, cfg); err != nil {
		alerterLog.ErrorWithErr("failed to persist last_alert_time", err)
	}
}

func (a *Alerter) fireWebhook(ctx context.Context, cfg model.AlertConfig, count int) error {
	text := fmt.Sprintf("%d anomalies in the last %dh (threshold %d, levels %v)",
		count, cfg.WindowHours, cfg.Threshold, cfg.Levels)
	body, _ := json.Marshal(map[string]string{"text": text})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (a *Alerter) loadOrBootstrap(ctx context.Context) (model.AlertConfig, error) {
	var cfg model.AlertConfig
	err := a.backend.GetDocument(ctx, AlertConfigIndex, model.AlertConfigDocID, &cfg)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, searchstore.ErrDocumentNotFound) {
		// A transient read failure against a config document that may
		// well still exist must not be treated as "absent" - doing so
		// would overwrite an operator-tuned config with fresh defaults
		// and reset last_alert_time, violating its monotonicity.
		return model.AlertConfig{}, err
	}

	cfg = a.defaultConfig()
	if upsertErr := a.backend.UpsertDocument(ctx, AlertConfigIndex, model.AlertConfigDocID, cfg); upsertErr != nil {
		alerterLog.WarnWithFields("failed to persist bootstrap alert config", logging.Field("error", upsertErr.Error()))
	}
	return cfg, nil
}

func (a *Alerter) defaultConfig() model.AlertConfig {
	a.defaultsMu.RLock()
	defer a.defaultsMu.RUnlock()
	return model.AlertConfig{
		WindowHours:     a.defaults.WindowHours,
		Threshold:       a.defaults.Threshold,
		Levels:          a.defaults.Levels,
		CooldownSeconds: a.defaults.CooldownSeconds,
		WebhookURL:      a.defaults.WebhookURL,
	}
}
