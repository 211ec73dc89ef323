package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// formatEventID renders the sequential event id form E<n>.
func formatEventID(n int) string {
	return fmt.Sprintf("E%d", n)
}

// parseEventOrdinal extracts n from an event id of the form E<n>. It
// does not accept the reserved generic id E0 as an ordinal to build on.
func parseEventOrdinal(eventID string) (int, bool) {
	if !strings.HasPrefix(eventID, "E") {
		return 0, false
	}
	n, err := strconv.Atoi(eventID[1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
