package pipeline

import (
	"sort"
	"strings"

	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/model"
)

var clustererLog = logging.GetLogger("pipeline.clusterer")

const (
	clusterEps          = 0.5
	clusterMinSamples   = 2
	genericityThreshold = 0.8
	mergeSimilarityMin  = 0.7
	fuzzyMatchThreshold = 70.0
)

// Clusterer mines new event templates from the residue of logs the
// Matcher could not classify.
type Clusterer struct{}

// NewClusterer builds a Clusterer. It is stateless: every tick's
// unknown set is clustered independently against the catalog handed in.
func NewClusterer() *Clusterer { return &Clusterer{} }

// Process groups the records at unknownIndices (positions into logs)
// by textual similarity, synthesizes a candidate template per cluster,
// rejects overly generic candidates, merges near-duplicate candidates
// into the existing catalog, and routes every one of those records to
// a final event id. It mutates logs[i] in place for every i in
// unknownIndices (EventID, IsAnomaly) and returns the new catalog that
// becomes the live catalog for subsequent ticks.
//
// Empty input returns the catalog unchanged.
func (c *Clusterer) Process(logs []model.LogRecord, unknownIndices []int, catalog model.Catalog) model.Catalog {
	if len(unknownIndices) == 0 {
		return catalog
	}

	normalized := make([]string, len(unknownIndices))
	for i, idx := range unknownIndices {
		normalized[i] = normalizeLog(logs[idx].Content)
	}

	vec := newTfidfVectorizer(1, 3, 0.9, 1)
	vectors, vocab := vec.Fit(normalized)
	if len(vocab) == 0 {
		clustererLog.WarnWithFields("empty vocabulary after normalization, skipping clustering this tick",
			logging.Field("unknown_count", len(unknownIndices)))
		return catalog
	}

	distance := func(i, j int) float64 { return cosineDistance(vectors[i], vectors[j]) }
	labels := dbscan(len(unknownIndices), distance, clusterEps, clusterMinSamples)

	// clusters maps a DBSCAN label to the positions within unknownIndices
	// (not into logs directly) that share it.
	clusters := map[int][]int{}
	for i, label := range labels {
		if label == -1 {
			continue
		}
		clusters[label] = append(clusters[label], i)
	}

	sortedLabels := make([]int, 0, len(clusters))
	for label := range clusters {
		sortedLabels = append(sortedLabels, label)
	}
	sort.Ints(sortedLabels)

	type candidate struct {
		template string
		logIdx   []int // indices into logs
	}
	var candidates []candidate
	for _, label := range sortedLabels {
		members := clusters[label]
		logIdx := make([]int, len(members))
		for i, m := range members {
			logIdx[i] = unknownIndices[m]
		}
		tmpl := synthesizeTemplate(logs, logIdx)
		if isTooGeneric(tmpl) {
			for _, idx := range logIdx {
				logs[idx].EventID = model.GenericEventID
				logs[idx].IsAnomaly = true
			}
			continue
		}
		candidates = append(candidates, candidate{template: tmpl, logIdx: logIdx})
	}

	if len(candidates) == 0 {
		return catalog
	}

	// Deduplicate by exact template string, combining with the existing
	// catalog's templates before merge.
	combined := make([]string, 0, len(catalog)+len(candidates))
	seen := map[string]bool{}
	for _, t := range catalog {
		if !seen[t.Template] {
			seen[t.Template] = true
			combined = append(combined, t.Template)
		}
	}
	for _, cand := range candidates {
		if !seen[cand.template] {
			seen[cand.template] = true
			combined = append(combined, cand.template)
		}
	}

	groups := mergeSimilarTemplates(combined, mergeSimilarityMin)

	newCatalog := assignEventIDs(groups, catalog)

	// Route every unknown log (that wasn't already routed to E0) to its
	// survivor: exact match on normalize_template first, else fuzzy
	// partial-ratio against all survivors, accept if >= 70.
	survivorNorm := make([]string, len(newCatalog))
	for i, t := range newCatalog {
		survivorNorm[i] = normalizeTemplate(t.Template)
	}
	for _, cand := range candidates {
		survivorIdx := bestSurvivorForTemplate(cand.template, newCatalog, survivorNorm)
		for _, idx := range cand.logIdx {
			if survivorIdx < 0 {
				logs[idx].EventID = model.GenericEventID
			} else {
				logs[idx].EventID = newCatalog[survivorIdx].EventID
			}
			logs[idx].IsAnomaly = true
		}
	}

	return newCatalog
}

// synthesizeTemplate token-aligns the raw contents of a cluster by
// whitespace split and position: a position where every member shares
// the same token keeps that token, otherwise it becomes <*>.
// Consecutive <*> tokens collapse into one. A singleton cluster (which
// cannot occur with min_samples=2, but is handled defensively) returns
// the content verbatim.
func synthesizeTemplate(logs []model.LogRecord, members []int) string {
	if len(members) == 1 {
		return logs[members[0]].Content
	}

	tokenized := make([][]string, len(members))
	maxLen := 0
	for i, idx := range members {
		tokenized[i] = strings.Fields(logs[idx].Content)
		if len(tokenized[i]) > maxLen {
			maxLen = len(tokenized[i])
		}
	}

	var out []string
	for pos := 0; pos < maxLen; pos++ {
		var first string
		same := true
		for i, toks := range tokenized {
			var tok string
			if pos < len(toks) {
				tok = toks[pos]
			}
			if i == 0 {
				first = tok
			} else if tok != first {
				same = false
			}
		}
		if same && first != "" {
			out = append(out, first)
		} else {
			out = append(out, "<*>")
		}
	}
	return collapseWildcards(out)
}

func collapseWildcards(tokens []string) string {
	var out []string
	for _, tok := range tokens {
		if tok == "<*>" && len(out) > 0 && out[len(out)-1] == "<*>" {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// isTooGeneric reports whether the fraction of <*> tokens in template
// is at least the genericity threshold.
func isTooGeneric(template string) bool {
	tokens := strings.Fields(template)
	if len(tokens) == 0 {
		return true
	}
	wildcards := 0
	for _, tok := range tokens {
		if tok == "<*>" {
			wildcards++
		}
	}
	return float64(wildcards)/float64(len(tokens)) >= genericityThreshold
}

// mergeSimilarTemplates vectorizes normalized templates (n-grams 1-2),
// computes pairwise cosine similarity, and greedily groups templates
// whose similarity is at least threshold. Groups are returned in the
// order their first (lowest-index) member was encountered.
func mergeSimilarTemplates(templates []string, threshold float64) [][]string {
	if len(templates) == 0 {
		return nil
	}
	normalized := make([]string, len(templates))
	for i, t := range templates {
		normalized[i] = normalizeLogTemplate(t)
	}

	vec := newTfidfVectorizer(1, 2, 1.0, 1)
	vectors, vocab := vec.Fit(normalized)

	merged := make([]bool, len(templates))
	var groups [][]string
	for i := range templates {
		if merged[i] {
			continue
		}
		group := []string{templates[i]}
		merged[i] = true
		for j := i + 1; j < len(templates); j++ {
			if merged[j] {
				continue
			}
			var sim float64
			if len(vocab) > 0 {
				sim = cosineSimilarity(vectors[i], vectors[j])
			}
			if sim >= threshold {
				group = append(group, templates[j])
				merged[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// survivorOf picks the median-length member of a sorted-ascending
// group, per the sort-then-middle-index rule.
func survivorOf(group []string) string {
	sorted := append([]string{}, group...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })
	return sorted[len(sorted)/2]
}

// assignEventIDs builds the new catalog from merge groups, preserving
// a pre-existing event id for any survivor that matches (by normalized
// template string) an entry already in prevCatalog, and minting a
// fresh E<n> only for genuinely new survivors. This implements the
// id-stability correction recommended as an alternative to blind
// per-tick renumbering.
func assignEventIDs(groups [][]string, prevCatalog model.Catalog) model.Catalog {
	prevByNorm := map[string]model.EventTemplate{}
	maxSeenID := 0
	for _, t := range prevCatalog {
		prevByNorm[normalizeTemplate(t.Template)] = t
		if n, ok := parseEventOrdinal(t.EventID); ok && n > maxSeenID {
			maxSeenID = n
		}
	}

	newCatalog := make(model.Catalog, 0, len(groups))
	for _, group := range groups {
		survivor := survivorOf(group)
		if prior, ok := prevByNorm[normalizeTemplate(survivor)]; ok {
			newCatalog = append(newCatalog, model.NewEventTemplate(prior.EventID, survivor, prior.IsAbnormal))
			continue
		}
		maxSeenID++
		eventID := formatEventID(maxSeenID)
		newCatalog = append(newCatalog, model.NewEventTemplate(eventID, survivor, false))
	}
	return newCatalog
}

func bestSurvivorForTemplate(candidateTemplate string, catalog model.Catalog, survivorNorm []string) int {
	target := normalizeTemplate(candidateTemplate)
	for i, norm := range survivorNorm {
		if norm == target {
			return i
		}
	}
	best := -1
	bestScore := fuzzyMatchThreshold
	for i := range catalog {
		score := partialRatio(target, survivorNorm[i])
		if score >= bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}
