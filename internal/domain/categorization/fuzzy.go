package categorization

import (
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

// DefaultFuzzyThreshold is the minimum similarity score (0-100) before a
// fuzzy match is trusted. Statement descriptions are noisy ("PIX RECEB
// 8821*" vs "pix recebido") so this sits below exact-match territory but
// high enough to avoid cross-category bleed.
const DefaultFuzzyThreshold = 72

type fuzzyPattern struct {
	normalized string
	category   string
	txnType    transactions.Type
}

// FuzzyMatcher catches keyword variations the exact engine misses, using
// Levenshtein distance plus containment heuristics over the same category
// vocabulary.
type FuzzyMatcher struct {
	patterns []fuzzyPattern
	mu       sync.RWMutex
}

// NewFuzzyMatcher builds the matcher from the category vocabulary.
func NewFuzzyMatcher() *FuzzyMatcher {
	fm := &FuzzyMatcher{}
	fm.build()
	return fm
}

func (fm *FuzzyMatcher) build() {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	for category, keywords := range categoryKeywords {
		t := typeOf(category)
		for _, kw := range keywords {
			normalized := normalizeText(strings.TrimSpace(kw))
			if normalized == "" {
				continue
			}
			fm.patterns = append(fm.patterns, fuzzyPattern{
				normalized: normalized,
				category:   category,
				txnType:    t,
			})
		}
	}
}

// Match returns the best-scoring category for the description within the
// given type's vocabulary, or false when no pattern reaches the threshold.
func (fm *FuzzyMatcher) Match(description string, t transactions.Type, threshold int) (string, bool) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	normalized := normalizeText(description)
	if normalized == "" {
		return "", false
	}

	bestCategory := ""
	bestScore := threshold - 1

	for _, p := range fm.patterns {
		if p.txnType != t {
			continue
		}
		score := fuzzyScore(normalized, p.normalized)
		if score > bestScore {
			bestScore = score
			bestCategory = p.category
		}
	}

	if bestCategory == "" {
		return "", false
	}
	return bestCategory, true
}

// fuzzyScore calculates a similarity score between two strings (0-100)
// from containment checks, Levenshtein distance, and subsequence ranking.
func fuzzyScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	// Containment is common for merchant variations ("ifood *pedido 12").
	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := max(len(s1), len(s2))
	if maxLen == 0 {
		return 0
	}
	levenshteinScore := 100 * (maxLen - distance) / maxLen

	// Subsequence rank: lower rank means the pattern matches earlier.
	fuzzyLibScore := 0
	if rank := fuzzy.RankMatch(s2, s1); rank >= 0 && rank < len(s1) {
		fuzzyLibScore = 60 - (rank * 40 / len(s1))
	}

	return max(levenshteinScore, fuzzyLibScore)
}

// levenshteinDistance calculates the edit distance between two strings
// using two rolling rows instead of the full matrix.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}
