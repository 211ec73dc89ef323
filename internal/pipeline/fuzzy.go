package pipeline

import (
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// partialRatio returns a 0-100 similarity score between a and b,
// tolerant of one string being a substring-ish fragment of the other:
// it slides the shorter string across every equal-length window of the
// longer one and reports the best Levenshtein-based match. This plays
// the same role as fuzzywuzzy's partial_ratio in the Python original.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}
	if len(long) == len(short) {
		return ratio(short, long)
	}

	best := 0.0
	for start := 0; start+len(short) <= len(long); start++ {
		window := long[start : start+len(short)]
		if r := ratio(short, window); r > best {
			best = r
		}
	}
	return best
}

func ratio(a, b []rune) float64 {
	dist := levenshtein.DistanceForStrings(a, b, levenshtein.DefaultOptions)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	return 100 * (1 - float64(dist)/float64(maxLen))
}
