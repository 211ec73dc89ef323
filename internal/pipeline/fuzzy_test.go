package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartialRatio_IdenticalStrings(t *testing.T) {
	assert.Equal(t, 100.0, partialRatio("connection refused", "connection refused"))
}

func TestPartialRatio_SubstringScoresHigh(t *testing.T) {
	score := partialRatio("connection refused", "fatal: connection refused to peer")
	assert.Greater(t, score, 90.0)
}

func TestPartialRatio_UnrelatedStringsScoreLow(t *testing.T) {
	score := partialRatio("connection refused", "disk usage at ninety percent")
	assert.Less(t, score, 50.0)
}

func TestPartialRatio_EmptyStrings(t *testing.T) {
	assert.Equal(t, 100.0, partialRatio("", ""))
	assert.Equal(t, 0.0, partialRatio("", "anything"))
}

func TestPartialRatio_IsSymmetricOnOperandOrder(t *testing.T) {
	a, b := "connection refused", "fatal: connection refused to peer"
	assert.Equal(t, partialRatio(a, b), partialRatio(b, a))
}
