// Package model holds the data types shared by every pipeline stage:
// the log record as read from and written back to the search backend,
// the event template catalog, the resume cursor, and the alert
// configuration document.
package model

import "time"

// GenericEventID is reserved for logs whose cluster produced only a
// too-generic template. It is never assigned by the Matcher.
const GenericEventID = "E0"

// AbnormalSeedEventIDs are the template ids seeded as abnormal at bootstrap.
var AbnormalSeedEventIDs = []string{"E34", "E40", "E42", "E44", "E28", "E31"}

// LogRecord is one log document as read from, enriched by, and written
// back to the search backend.
type LogRecord struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Level              string    `json:"level"`
	Component          string    `json:"component"`
	Content            string    `json:"content"`
	Application        string    `json:"application,omitempty"`
	SourceFile         string    `json:"source_file,omitempty"`
	RawLog             string    `json:"raw_log,omitempty"`
	EventID            string    `json:"event_id,omitempty"`
	IsAnomaly          bool      `json:"is_anomaly"`
	DetectionTimestamp time.Time `json:"detection_timestamp,omitzero"`
	LLMAnalysis        *string   `json:"llm_analysis,omitempty"`

	// Index is the backend index this record was read from. Not part of
	// the document body; used by the Writer for per-document routing.
	Index string `json:"-"`
}

// EventTemplate is a parametric log message pattern with a short
// symbolic handle.
type EventTemplate struct {
	EventID    string `json:"event_id"`
	Template   string `json:"template"`
	IsAbnormal bool   `json:"is_abnormal"`
}

// NewEventTemplate builds a template and sets IsAbnormal if the id is
// one of the seeded abnormal ids, matching the Python original's
// auto-flagging behavior.
func NewEventTemplate(eventID, template string, isAbnormal bool) EventTemplate {
	for _, abnormal := range AbnormalSeedEventIDs {
		if eventID == abnormal {
			isAbnormal = true
			break
		}
	}
	return EventTemplate{EventID: eventID, Template: template, IsAbnormal: isAbnormal}
}

// Catalog is an ordered list of templates. Order is significant: the
// Matcher iterates in order and new templates are always appended,
// never inserted, so that prior matches stay stable across ticks.
type Catalog []EventTemplate

// FindByEventID returns the template with the given id, if present.
func (c Catalog) FindByEventID(eventID string) (EventTemplate, bool) {
	for _, t := range c {
		if t.EventID == eventID {
			return t, true
		}
	}
	return EventTemplate{}, false
}

// Cursor is the opaque ordering key returned by the backend alongside
// the last record of a batch.
type Cursor struct {
	SortValue any `json:"last_sort_value"`
}

// AlertConfig is the single, fixed-id document controlling the Alerter.
type AlertConfig struct {
	WindowHours     int        `json:"window_hours"`
	Threshold       int        `json:"threshold"`
	Levels          []string   `json:"levels"`
	CooldownSeconds int        `json:"cooldown_seconds"`
	WebhookURL      string     `json:"webhook_url"`
	LastAlertTime   *time.Time `json:"last_alert_time,omitempty"`
}

// AlertConfigDocID is the fixed document id the AlertConfig is stored
// under in the backend.
const AlertConfigDocID = "latest"
