package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

// keywordMatch is the metadata attached to one engine pattern.
type keywordMatch struct {
	category string
	txnType  transactions.Type
	priority int // longer keywords are more specific and win ties
}

// Engine matches transaction descriptions against the category keyword
// vocabulary using the Aho-Corasick algorithm: one pass through the text
// regardless of how many keywords are loaded.
type Engine struct {
	matcher  *ahocorasick.Matcher
	metadata []keywordMatch
	mu       sync.RWMutex
}

// NewEngine builds the matcher from the fixed category vocabulary.
func NewEngine() *Engine {
	e := &Engine{}
	e.build()
	return e
}

func (e *Engine) build() {
	e.mu.Lock()
	defer e.mu.Unlock()

	var patterns [][]byte
	var metadata []keywordMatch

	for category, keywords := range categoryKeywords {
		t := typeOf(category)
		for _, kw := range keywords {
			normalized := normalizeText(kw)
			if normalized == "" {
				continue
			}
			patterns = append(patterns, []byte(normalized))
			metadata = append(metadata, keywordMatch{
				category: category,
				txnType:  t,
				priority: len(normalized),
			})
		}
	}

	e.metadata = metadata
	if len(patterns) > 0 {
		e.matcher = ahocorasick.NewMatcher(patterns)
	}
}

// Match returns the category implied by the description, restricted to the
// vocabulary of the given transaction type. The longest matching keyword
// wins. Returns false when nothing matches.
func (e *Engine) Match(description string, t transactions.Type) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil {
		return "", false
	}

	normalized := normalizeText(description)
	hits := e.matcher.Match([]byte(normalized))
	if len(hits) == 0 {
		return "", false
	}

	best := -1
	for _, idx := range hits {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		m := e.metadata[idx]
		if m.txnType != t {
			continue
		}
		if best < 0 || m.priority > e.metadata[best].priority {
			best = idx
		}
	}
	if best < 0 {
		return "", false
	}
	return e.metadata[best].category, true
}

// PatternCount returns the number of keywords loaded.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.metadata)
}

// normalizeText lowercases and strips the Portuguese diacritics that vary
// between bank exports ("Salário" vs "SALARIO").
func normalizeText(s string) string {
	s = strings.ToLower(s)
	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "â", "a", "ã", "a",
		"é", "e", "ê", "e",
		"í", "i",
		"ó", "o", "ô", "o", "õ", "o",
		"ú", "u", "ü", "u",
		"ç", "c",
	)
	return replacer.Replace(s)
}
