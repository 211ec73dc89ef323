package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEventTemplate_AutoFlagsAbnormalSeeds(t *testing.T) {
	for _, id := range AbnormalSeedEventIDs {
		tmpl := NewEventTemplate(id, "connection refused to <*>", false)
		assert.True(t, tmpl.IsAbnormal, "seed id %s should be auto-flagged abnormal", id)
	}
}

func TestNewEventTemplate_LeavesNonSeedAlone(t *testing.T) {
	tmpl := NewEventTemplate("E99", "request completed in <*>ms", false)
	assert.False(t, tmpl.IsAbnormal)

	tmpl = NewEventTemplate("E99", "request completed in <*>ms", true)
	assert.True(t, tmpl.IsAbnormal, "explicit true is preserved for a non-seed id")
}

func TestCatalog_FindByEventID(t *testing.T) {
	catalog := Catalog{
		{EventID: "E1", Template: "starting up"},
		{EventID: "E2", Template: "shutting down"},
	}

	found, ok := catalog.FindByEventID("E2")
	assert.True(t, ok)
	assert.Equal(t, "shutting down", found.Template)

	_, ok = catalog.FindByEventID("E404")
	assert.False(t, ok)
}
