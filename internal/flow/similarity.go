package flow

import (
	"math"
	"strings"
	"unicode"
)

// stopwords is the English stopword set applied before vectorization.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "if": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "its": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "our": {}, "she": {}, "so": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "them": {}, "then": {},
	"there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "which": {},
	"while": {}, "who": {}, "will": {}, "with": {}, "you": {},
}

// tokenize lowercases a label, splits on non-alphanumeric runs and
// drops stopwords.
func tokenize(label string) []string {
	fields := strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// terms expands tokens into unigrams plus adjacent bigrams.
func terms(label string) []string {
	tokens := tokenize(label)
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// tfidfVectors builds L2-normalized TF-IDF vectors for the given
// documents (one document per topic label) over their shared
// vocabulary. Smoothed IDF keeps terms present in every document from
// zeroing out.
func tfidfVectors(docs []string) []map[string]float64 {
	n := len(docs)
	termFreqs := make([]map[string]float64, n)
	docFreq := make(map[string]int)

	for i, doc := range docs {
		tf := make(map[string]float64)
		for _, term := range terms(doc) {
			tf[term]++
		}
		for term := range tf {
			docFreq[term]++
		}
		termFreqs[i] = tf
	}

	idf := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		idf[term] = math.Log(float64(1+n)/float64(1+df)) + 1
	}

	vectors := make([]map[string]float64, n)
	for i, tf := range termFreqs {
		vec := make(map[string]float64, len(tf))
		var norm float64
		for term, freq := range tf {
			w := freq * idf[term]
			vec[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vec {
				vec[term] /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors
}

func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	return dot
}

// Similarity computes the country-pair similarity between two topic
// label sets: the maximum TF-IDF cosine over every cross-pair of
// labels, clamped to [0, 1]. The maximum is used because a flow needs
// one closely related narrative, not aggregate overlap. Either side
// empty yields 0.
func Similarity(labelsA, labelsB []string) float64 {
	if len(labelsA) == 0 || len(labelsB) == 0 {
		return 0
	}

	docs := make([]string, 0, len(labelsA)+len(labelsB))
	docs = append(docs, labelsA...)
	docs = append(docs, labelsB...)
	vectors := tfidfVectors(docs)

	vecsA := vectors[:len(labelsA)]
	vecsB := vectors[len(labelsA):]

	var best float64
	for _, va := range vecsA {
		for _, vb := range vecsB {
			if sim := cosine(va, vb); sim > best {
				best = sim
			}
		}
	}
	return clamp01(best)
}

// WordOverlapSimilarity is the degraded similarity mode: the ratio of
// shared lowercase words to the smaller side's word count, capped at 1.
func WordOverlapSimilarity(labelsA, labelsB []string) float64 {
	wordsA := wordSet(labelsA)
	wordsB := wordSet(labelsB)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	overlap := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			overlap++
		}
	}
	return math.Min(1.0, float64(overlap)/float64(minInt(len(wordsA), len(wordsB))))
}

func wordSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, label := range labels {
		for _, w := range strings.Fields(strings.ToLower(label)) {
			set[w] = struct{}{}
		}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
