package pipeline

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// englishStopwords mirrors scikit-learn's built-in English stopword
// list closely enough for this pipeline's purposes: common function
// words that carry no discriminative weight in short log messages.
var englishStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "to": true, "was": true, "will": true,
	"with": true, "this": true, "but": true, "not": true, "have": true,
	"had": true, "were": true, "been": true, "being": true, "do": true,
	"does": true, "did": true, "can": true, "could": true, "should": true,
	"would": true, "there": true, "their": true, "them": true, "then": true,
}

// tfidfVectorizer mirrors scikit-learn's TfidfVectorizer for the
// subset of behavior the clustering pipeline depends on: configurable
// n-gram range, stopword removal, max_df/min_df document-frequency
// pruning, and L2-normalized TF-IDF vectors.
type tfidfVectorizer struct {
	ngramMin, ngramMax int
	maxDF              float64 // fraction of documents, inclusive upper bound (df > maxDF*n is pruned)
	minDF              int     // absolute document count, inclusive lower bound
}

func newTfidfVectorizer(ngramMin, ngramMax int, maxDF float64, minDF int) *tfidfVectorizer {
	return &tfidfVectorizer{ngramMin: ngramMin, ngramMax: ngramMax, maxDF: maxDF, minDF: minDF}
}

func tokenize(doc string) []string {
	fields := strings.Fields(doc)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,:;!?()[]{}\"'")
		if f == "" || englishStopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func ngrams(tokens []string, minN, maxN int) []string {
	var out []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// Fit builds the vocabulary and document frequencies from docs, then
// returns one L2-normalized TF-IDF vector per document, aligned to a
// stable, sorted vocabulary ordering.
func (v *tfidfVectorizer) Fit(docs []string) (vectors [][]float64, vocab []string) {
	docGrams := make([][]string, len(docs))
	df := map[string]int{}
	for i, doc := range docs {
		grams := ngrams(tokenize(doc), v.ngramMin, v.ngramMax)
		docGrams[i] = grams
		seen := map[string]bool{}
		for _, g := range grams {
			if !seen[g] {
				seen[g] = true
				df[g]++
			}
		}
	}

	nDocs := len(docs)
	maxDFCount := int(v.maxDF * float64(nDocs))
	vocab = make([]string, 0, len(df))
	for term, count := range df {
		if count < v.minDF {
			continue
		}
		if nDocs > 1 && count > maxDFCount {
			continue
		}
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)

	index := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		index[term] = i
		// Smoothed IDF, matching scikit-learn's default smooth_idf=True.
		idf[i] = math.Log(float64(1+nDocs)/float64(1+df[term])) + 1
	}

	vectors = make([][]float64, len(docs))
	for i, grams := range docGrams {
		tf := make(map[int]float64)
		for _, g := range grams {
			if idx, ok := index[g]; ok {
				tf[idx]++
			}
		}
		vec := make([]float64, len(vocab))
		for idx, count := range tf {
			vec[idx] = count * idf[idx]
		}
		normalizeL2(vec)
		vectors[i] = vec
	}
	return vectors, vocab
}

func normalizeL2(vec []float64) {
	norm := floats.Norm(vec, 2)
	if norm == 0 {
		return
	}
	floats.Scale(1/norm, vec)
}

// cosineSimilarity assumes both vectors are already L2-normalized, in
// which case the dot product is the cosine similarity directly.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return floats.Dot(a, b)
}

// cosineDistance is 1 - cosine similarity, the metric DBSCAN clusters
// the unknown set on.
func cosineDistance(a, b []float64) float64 {
	return 1 - cosineSimilarity(a, b)
}
