package categorization

import (
	"context"
	"log/slog"
)

// Result is the categorization outcome for one transaction.
type Result struct {
	Category string
	// Defaulted marks rows that received a generic fallback label because
	// no classifier produced a category. Surfaced in import summaries so
	// users know which rows to review.
	Defaulted bool
}

// Service layers the classifiers: exact keyword engine first, then fuzzy
// matching, then the LLM batch classifier for whatever remains. Any LLM
// failure degrades only the unresolved rows to fallback labels.
type Service struct {
	engine     *Engine
	fuzzy      *FuzzyMatcher
	classifier Classifier
	batchSize  int
	logger     *slog.Logger
}

// NewService wires the categorization layers. classifier may be nil, in
// which case unresolved rows default immediately.
func NewService(classifier Classifier, batchSize int, logger *slog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 30
	}
	return &Service{
		engine:     NewEngine(),
		fuzzy:      NewFuzzyMatcher(),
		classifier: classifier,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// CategorizeAll assigns a category to every item, preserving input order.
// It never returns an error: classification problems degrade to fallback
// labels rather than failing an import.
func (s *Service) CategorizeAll(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))

	// Local layers first. They are cheap and their answers stick even when
	// the LLM is unavailable.
	var unresolved []int
	for i, item := range items {
		if category, ok := s.engine.Match(item.Description, item.Type); ok {
			results[i] = Result{Category: category}
			continue
		}
		if category, ok := s.fuzzy.Match(item.Description, item.Type, DefaultFuzzyThreshold); ok {
			results[i] = Result{Category: category}
			continue
		}
		unresolved = append(unresolved, i)
	}

	if len(unresolved) == 0 {
		return results
	}

	if s.classifier == nil {
		s.defaultAll(items, results, unresolved)
		return results
	}

	// Sequential batches. One failed batch defaults its own rows only.
	for start := 0; start < len(unresolved); start += s.batchSize {
		end := min(start+s.batchSize, len(unresolved))
		batch := unresolved[start:end]

		batchItems := make([]Item, len(batch))
		for j, idx := range batch {
			batchItems[j] = items[idx]
		}

		labels, err := s.classifier.ClassifyBatch(ctx, batchItems)
		if err != nil {
			s.logger.Warn("batch classification failed, using fallback labels",
				"batch_start", start, "batch_size", len(batch), "error", err)
			s.defaultAll(items, results, batch)
			continue
		}

		for j, idx := range batch {
			if j < len(labels) && labels[j] != "" {
				results[idx] = Result{Category: labels[j]}
			} else {
				results[idx] = Result{Category: FallbackFor(items[idx].Type), Defaulted: true}
			}
		}
	}

	return results
}

func (s *Service) defaultAll(items []Item, results []Result, indices []int) {
	for _, idx := range indices {
		results[idx] = Result{Category: FallbackFor(items[idx].Type), Defaulted: true}
	}
}
