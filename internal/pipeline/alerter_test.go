package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/spectre/internal/model"
)

func testDefaults(webhookURL string) AlertConfigDefaults {
	return AlertConfigDefaults{
		WindowHours:     1,
		Threshold:       10,
		Levels:          []string{"error"},
		CooldownSeconds: 300,
		WebhookURL:      webhookURL,
	}
}

func TestAlerter_Check_BootstrapsConfigOnFirstRun(t *testing.T) {
	backend := newFakeBackend()
	backend.countResult = 0
	a := NewAlerter(backend, "logs", testDefaults("http://unused"))

	a.Check(context.Background(), time.Now())

	var cfg model.AlertConfig
	require.NoError(t, backend.GetDocument(context.Background(), AlertConfigIndex, model.AlertConfigDocID, &cfg))
	assert.Equal(t, 10, cfg.Threshold)
}

func TestAlerter_Check_BelowThresholdFiresNothing(t *testing.T) {
	var fired bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { fired = true }))
	defer srv.Close()

	backend := newFakeBackend()
	backend.countResult = 3
	a := NewAlerter(backend, "logs", testDefaults(srv.URL))

	a.Check(context.Background(), time.Now())

	assert.False(t, fired, "anomaly count below threshold must not trigger a webhook")
}

func TestAlerter_Check_AboveThresholdFiresWebhookAndRecordsTime(t *testing.T) {
	var fired bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fired = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	backend := newFakeBackend()
	backend.countResult = 99
	a := NewAlerter(backend, "logs", testDefaults(srv.URL))

	a.Check(context.Background(), time.Now())

	assert.True(t, fired)
	var cfg model.AlertConfig
	require.NoError(t, backend.GetDocument(context.Background(), AlertConfigIndex, model.AlertConfigDocID, &cfg))
	assert.NotNil(t, cfg.LastAlertTime, "a successful webhook delivery must record last_alert_time")
}

func TestAlerter_Check_CooldownSuppressesRepeatedFiring(t *testing.T) {
	var fireCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fireCount++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	backend := newFakeBackend()
	backend.countResult = 99
	a := NewAlerter(backend, "logs", testDefaults(srv.URL))

	now := time.Now()
	a.Check(context.Background(), now)
	a.Check(context.Background(), now.Add(time.Second))

	assert.Equal(t, 1, fireCount, "a second check within the cooldown window must not fire again")
}

func TestAlerter_Check_FailedDeliveryLeavesLastAlertTimeUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	backend := newFakeBackend()
	backend.countResult = 99
	a := NewAlerter(backend, "logs", testDefaults(srv.URL))

	a.Check(context.Background(), time.Now())

	var cfg model.AlertConfig
	require.NoError(t, backend.GetDocument(context.Background(), AlertConfigIndex, model.AlertConfigDocID, &cfg))
	assert.Nil(t, cfg.LastAlertTime, "a failed webhook must not be treated as a successful alert")
}

func TestAlerter_Check_TransientReadFailureDoesNotOverwriteExistingConfig(t *testing.T) {
	var fired bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { fired = true }))
	defer srv.Close()

	backend := newFakeBackend()
	a := NewAlerter(backend, "logs", testDefaults(srv.URL))

	// Persist an operator-tuned config with a prior alert time.
	tunedTime := time.Now().Add(-time.Hour)
	tuned := model.AlertConfig{Threshold: 5, WindowHours: 1, CooldownSeconds: 300, WebhookURL: srv.URL, LastAlertTime: &tunedTime}
	require.NoError(t, backend.UpsertDocument(context.Background(), AlertConfigIndex, model.AlertConfigDocID, tuned))

	backend.getErr = errors.New("backend unavailable")
	backend.countResult = 99

	a.Check(context.Background(), time.Now())

	assert.False(t, fired, "a transient config-read failure must not proceed using freshly bootstrapped defaults")

	backend.getErr = nil
	var cfg model.AlertConfig
	require.NoError(t, backend.GetDocument(context.Background(), AlertConfigIndex, model.AlertConfigDocID, &cfg))
	assert.Equal(t, 5, cfg.Threshold, "the operator-tuned config must survive a transient read failure untouched")
	require.NotNil(t, cfg.LastAlertTime)
	assert.WithinDuration(t, tunedTime, *cfg.LastAlertTime, time.Second)
}

func TestAlerter_UpdateDefaults_AffectsNextBootstrap(t *testing.T) {
	backend := newFakeBackend()
	backend.countResult = 0
	a := NewAlerter(backend, "logs", testDefaults("http://unused"))

	a.UpdateDefaults(AlertConfigDefaults{WindowHours: 5, Threshold: 50, Levels: []string{"critical"}, CooldownSeconds: 60, WebhookURL: "http://updated"})
	a.Check(context.Background(), time.Now())

	var cfg model.AlertConfig
	require.NoError(t, backend.GetDocument(context.Background(), AlertConfigIndex, model.AlertConfigDocID, &cfg))
	assert.Equal(t, 50, cfg.Threshold, "hot-reloaded defaults must be used to bootstrap a still-absent config document")
}
