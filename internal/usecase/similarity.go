package usecase

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	fuzzyCutoff     = 0.6
	fuzzyCandidates = 3
)

type fuzzyCandidate struct {
	name  string
	score float64
	index int
}

// closeMatches returns up to n universe entries whose case-folded similarity
// to word is at least cutoff, best first. Equal scores keep universe order.
func closeMatches(word string, universe []string, n int, cutoff float64) []fuzzyCandidate {
	if n <= 0 || word == "" {
		return nil
	}

	m := difflib.NewMatcher(nil, splitChars(strings.ToUpper(word)))
	var found []fuzzyCandidate
	for i, s := range universe {
		m.SetSeq1(splitChars(strings.ToUpper(s)))
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		if score := m.Ratio(); score >= cutoff {
			found = append(found, fuzzyCandidate{name: s, score: score, index: i})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].score > found[j].score
	})
	if len(found) > n {
		found = found[:n]
	}
	return found
}

// Similarity is the difflib ratio of the case-folded inputs, in [0, 1].
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(splitChars(strings.ToUpper(a)), splitChars(strings.ToUpper(b))).Ratio()
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
