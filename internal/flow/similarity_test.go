package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityIdenticalTopics(t *testing.T) {
	labels := []string{"Armed Conflict", "Inflation", "Protests & Demonstrations"}
	sim := Similarity(labels, labels)
	assert.GreaterOrEqual(t, sim, 0.9)
	assert.LessOrEqual(t, sim, 1.0)
}

func TestSimilarityDisjointTopics(t *testing.T) {
	sim := Similarity([]string{"Armed Conflict"}, []string{"Space Exploration"})
	assert.Less(t, sim, 0.3)
}

func TestSimilarityEmptySideIsZero(t *testing.T) {
	assert.Zero(t, Similarity(nil, []string{"Inflation"}))
	assert.Zero(t, Similarity([]string{"Inflation"}, nil))
	assert.Zero(t, Similarity(nil, nil))
}

func TestSimilarityUsesBestPairNotAverage(t *testing.T) {
	// One exact match among otherwise unrelated topics must dominate.
	a := []string{"Climate Change", "Sports", "Banking Crisis"}
	b := []string{"Climate Change", "Space Exploration"}
	assert.GreaterOrEqual(t, Similarity(a, b), 0.9)
}

func TestSimilarityPartialOverlap(t *testing.T) {
	a := []string{"Armed Conflict Escalation"}
	b := []string{"Armed Conflict Talks"}
	sim := Similarity(a, b)
	assert.Greater(t, sim, 0.0)
	assert.Less(t, sim, 1.0)
}

func TestWordOverlapSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		want float64
	}{
		{name: "identical single word", a: []string{"inflation"}, b: []string{"Inflation"}, want: 1.0},
		{name: "no overlap", a: []string{"inflation"}, b: []string{"protests"}, want: 0.0},
		{name: "empty side", a: nil, b: []string{"inflation"}, want: 0.0},
		{
			name: "half overlap against smaller set",
			a:    []string{"armed conflict"},
			b:    []string{"armed forces deployment spending"},
			want: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WordOverlapSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTokenizeDropsStopwords(t *testing.T) {
	assert.Equal(t, []string{"women", "politics"}, tokenize("Women in Politics"))
	assert.Equal(t, []string{"treaties", "agreements"}, tokenize("Treaties & Agreements"))
	assert.Empty(t, tokenize("the and of"))
}

func TestTermsIncludeBigrams(t *testing.T) {
	assert.Equal(t,
		[]string{"armed", "conflict", "armed conflict"},
		terms("Armed Conflict"))
}
