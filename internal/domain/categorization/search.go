package categorization

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// SuggestDocument is one indexed category: its label plus the vocabulary
// that implies it, so searching "posto ipiranga" surfaces "transporte".
type SuggestDocument struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Keywords string `json:"keywords"`
}

// Suggestion is a scored category hit.
type Suggestion struct {
	Label string  `json:"label"`
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

// SuggestIndex powers category autocomplete when users re-categorize
// transactions by hand. Bleve gives tokenized and typo-tolerant matching
// over the same vocabulary the automatic classifiers use.
type SuggestIndex struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewSuggestIndex builds an in-memory index over the category vocabulary.
func NewSuggestIndex() (*SuggestIndex, error) {
	index, err := bleve.NewMemOnly(buildSuggestMapping())
	if err != nil {
		return nil, fmt.Errorf("create suggest index: %w", err)
	}

	si := &SuggestIndex{index: index}
	if err := si.indexVocabulary(); err != nil {
		index.Close()
		return nil, err
	}
	return si, nil
}

func buildSuggestMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("label", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("type", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("keywords", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name

	return indexMapping
}

func (si *SuggestIndex) indexVocabulary() error {
	si.mu.Lock()
	defer si.mu.Unlock()

	batch := si.index.NewBatch()

	addLabel := func(label, docType string) error {
		keywords := categoryKeywords[label]
		doc := SuggestDocument{
			ID:    docType + "_" + label,
			Label: label,
			Type:  docType,
			// The label itself is searchable too, with separators spaced
			// out so "folha pagamento" matches "folha_pagamento".
			Keywords: strings.ReplaceAll(label, "_", " ") + " " + strings.Join(keywords, " "),
		}
		return batch.Index(doc.ID, doc)
	}

	for _, label := range IncomeCategories {
		if err := addLabel(label, "income"); err != nil {
			return fmt.Errorf("index category %s: %w", label, err)
		}
	}
	for _, label := range ExpenseCategories {
		if err := addLabel(label, "expense"); err != nil {
			return fmt.Errorf("index category %s: %w", label, err)
		}
	}

	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("execute batch index: %w", err)
	}
	return nil
}

// Suggest returns categories matching the query, best first.
func (si *SuggestIndex) Suggest(query string, limit int) ([]Suggestion, error) {
	si.mu.RLock()
	defer si.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}

	matchQuery := bleve.NewMatchQuery(normalizeText(query))
	matchQuery.SetFuzziness(1)

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"label", "type"}

	searchResults, err := si.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("suggest search failed: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		s := Suggestion{Score: hit.Score}
		if label, ok := hit.Fields["label"].(string); ok {
			s.Label = label
		}
		if docType, ok := hit.Fields["type"].(string); ok {
			s.Type = docType
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}

// Close releases the index.
func (si *SuggestIndex) Close() error {
	si.mu.Lock()
	defer si.mu.Unlock()
	if si.index != nil {
		return si.index.Close()
	}
	return nil
}
