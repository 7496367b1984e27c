package match

import (
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	DefaultMaxResults    = 5
	DefaultMinSimilarity = 0.30
)

type scored struct {
	candidate string
	score     float64
}

// Similarity returns the ratio of a against b in [0, 1].
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(runes(a), runes(b))
	return m.Ratio()
}

// ClosestMatches returns at most maxResults candidates whose similarity to
// query is at least minSimilarity, highest score first. Candidates with equal
// scores keep their input order.
func ClosestMatches(query string, candidates []string, maxResults int, minSimilarity float64) []string {
	if maxResults <= 0 || len(candidates) == 0 {
		return nil
	}

	// seq2 is cached by the matcher, so the query goes there.
	m := difflib.NewMatcher(nil, runes(query))

	var hits []scored
	for _, c := range candidates {
		m.SetSeq1(runes(c))
		if m.RealQuickRatio() < minSimilarity || m.QuickRatio() < minSimilarity {
			continue
		}
		if r := m.Ratio(); r >= minSimilarity {
			hits = append(hits, scored{candidate: c, score: r})
		}
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.candidate)
	}
	return out
}

func runes(s string) []string {
	return strings.Split(s, "")
}
