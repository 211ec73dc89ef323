package pipeline

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/model"
)

var matcherLog = logging.GetLogger("pipeline.matcher")

const patternCacheSize = 4096

// Matcher classifies log records against an ordered template catalog.
// Each template is compiled once into a prefix-anchored regex and the
// compiled pattern is cached, keyed by the template string, in a
// bounded LRU so a churning catalog cannot grow the cache unbounded.
type Matcher struct {
	cache *lru.Cache[string, *regexp.Regexp]
}

// NewMatcher builds a Matcher with its compiled-pattern cache.
func NewMatcher() *Matcher {
	cache, err := lru.New[string, *regexp.Regexp](patternCacheSize)
	if err != nil {
		// Only invalid (non-positive) size causes an error here, and
		// patternCacheSize is a positive constant, so this cannot happen.
		panic(err)
	}
	return &Matcher{cache: cache}
}

// compile turns a template string into a prefix-anchored regex by
// escaping every character literally, then replacing the escaped <*>
// token with a one-or-more-non-space capture. The result is anchored
// at the start only, not the end: suffix garbage still matches.
func (m *Matcher) compile(template string) *regexp.Regexp {
	if re, ok := m.cache.Get(template); ok {
		return re
	}
	escaped := regexp.QuoteMeta(template)
	escapedWildcard := regexp.QuoteMeta("<*>")
	body := strings.ReplaceAll(escaped, escapedWildcard, `([^ ]+)`)
	re := regexp.MustCompile("^" + body)
	m.cache.Add(template, re)
	return re
}

// Classify matches every record in logs against catalog, in catalog
// order, first-match-wins, mutating logs in place: matched records get
// event_id and is_anomaly set from the matched template, unmatched
// records are marked is_anomaly=true and left without an event_id.
// unknownIndices holds the positions in logs that need the Clusterer;
// the Clusterer mutates those same elements of logs by index so the
// final write-back sees the clustering outcome too.
func (m *Matcher) Classify(logs []model.LogRecord, catalog model.Catalog) (unknownIndices []int) {
	for i := range logs {
		rec := &logs[i]
		found := false
		for _, tmpl := range catalog {
			if m.compile(tmpl.Template).MatchString(rec.Content) {
				rec.EventID = tmpl.EventID
				rec.IsAnomaly = tmpl.IsAbnormal
				found = true
				break
			}
		}
		if !found {
			rec.IsAnomaly = true
			unknownIndices = append(unknownIndices, i)
		}
	}
	matcherLog.DebugWithFields("classified batch", logging.Field("total", len(logs)), logging.Field("unknown", len(unknownIndices)))
	return unknownIndices
}
