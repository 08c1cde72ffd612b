// Package sniffer detects the format of uploaded statement files: delimiter,
// header row, and which column holds each semantic field. Column detection is
// scored across multiple signals instead of taking the first keyword hit, and
// reports a confidence so low-certainty mappings can be sent back to the user
// for confirmation.
package sniffer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/caixafacil/caixafacil/internal/domain/import/normalizer"
)

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoHeadersFound = errors.New("could not find statement headers")
)

// MissingColumnsError reports which mandatory fields could not be resolved.
type MissingColumnsError struct {
	Fields []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("could not detect mandatory columns: %s", strings.Join(e.Fields, ", "))
}

// Statement header keywords, Brazilian Portuguese first.
var (
	dateKeywords        = []string{"data", "date", "dt", "data mov", "vencimento"}
	descriptionKeywords = []string{"descrição", "descricao", "description", "histórico", "historico", "detalhe", "memo", "lançamento", "lancamento"}
	valueKeywords       = []string{"valor", "value", "amount", "montante", "quantia"}
	typeKeywords        = []string{"tipo", "type", "natureza", "d/c", "débito/crédito", "debito/credito"}
	supplierKeywords    = []string{"fornecedor", "supplier", "favorecido", "beneficiário", "beneficiario", "pagador", "cliente"}
)

// FileConfig holds the detected configuration for a statement file
type FileConfig struct {
	Delimiter  rune       // The field delimiter (';', ',', '\t')
	SkipLines  int        // Number of metadata lines before headers
	Headers    []string   // Detected header names
	SampleRows [][]string // First few data rows for scoring and preview
}

// ColumnMap maps semantic fields to column indices (-1 when absent).
// Date, Description, and Value are mandatory; Type and Supplier enrich rows
// when present.
type ColumnMap struct {
	Date        int
	Description int
	Value       int
	Type        int
	Supplier    int

	// Confidence is the weakest mandatory-field score, scaled to [0,1].
	// Imports below the configured threshold require an explicit mapping.
	Confidence float64
}

// DetectConfig analyzes statement bytes and returns the file configuration.
func DetectConfig(data []byte) (*FileConfig, error) {
	data = normalizeBytes(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")
	delimiter, skipLines, err := findHeaderRow(lines)
	if err != nil {
		return nil, err
	}

	headerLine := cleanLine(lines[skipLines])
	reader := csv.NewReader(strings.NewReader(headerLine))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to parse header row: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &FileConfig{
		Delimiter:  delimiter,
		SkipLines:  skipLines,
		Headers:    headers,
		SampleRows: sampleRows(data, delimiter, skipLines+1, 5),
	}, nil
}

// DetectColumns resolves the semantic column mapping for the detected headers.
// Every candidate header is scored by keyword strength, position, and sample
// value shape; the highest-scoring header wins each field. A field already
// claimed by a stronger match is not reused.
func DetectColumns(cfg *FileConfig) (*ColumnMap, error) {
	m := &ColumnMap{Date: -1, Description: -1, Value: -1, Type: -1, Supplier: -1}

	dateScores := scoreField(cfg, dateKeywords, sampleLooksLikeDate)
	valueScores := scoreField(cfg, valueKeywords, sampleLooksLikeAmount)
	descScores := scoreField(cfg, descriptionKeywords, sampleLooksLikeText)
	typeScores := scoreField(cfg, typeKeywords, nil)
	supplierScores := scoreField(cfg, supplierKeywords, sampleLooksLikeText)

	claimed := make(map[int]bool)
	pick := func(scores []float64) (int, float64) {
		best, bestScore := -1, 0.0
		for i, s := range scores {
			if claimed[i] || s <= 0 {
				continue
			}
			if s > bestScore {
				best, bestScore = i, s
			}
		}
		if best >= 0 {
			claimed[best] = true
		}
		return best, bestScore
	}

	// Resolve in order of how distinctive the signals are.
	var dateScore, valueScore, descScore float64
	m.Date, dateScore = pick(dateScores)
	m.Value, valueScore = pick(valueScores)
	m.Description, descScore = pick(descScores)
	m.Type, _ = pick(typeScores)
	m.Supplier, _ = pick(supplierScores)

	var missing []string
	if m.Date < 0 {
		missing = append(missing, "date")
	}
	if m.Description < 0 {
		missing = append(missing, "description")
	}
	if m.Value < 0 {
		missing = append(missing, "value")
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Fields: missing}
	}

	m.Confidence = confidence(dateScore, valueScore, descScore)
	return m, nil
}

// maxFieldScore is the ceiling a single header can reach: exact keyword
// match (3.0) + full sample agreement (1.0) + first-column bonus (0.25).
const maxFieldScore = 4.25

func confidence(scores ...float64) float64 {
	lowest := maxFieldScore
	for _, s := range scores {
		if s < lowest {
			lowest = s
		}
	}
	c := lowest / maxFieldScore
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

// scoreField scores every header as a candidate for one semantic field.
func scoreField(cfg *FileConfig, keywords []string, sampleFn func(string) bool) []float64 {
	scores := make([]float64, len(cfg.Headers))
	for i, header := range cfg.Headers {
		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			continue
		}

		kw := keywordScore(h, keywords)
		if kw == 0 {
			continue
		}
		score := kw

		// Sample-value agreement: what fraction of sample cells look right.
		if sampleFn != nil {
			matches, total := 0, 0
			for _, row := range cfg.SampleRows {
				if i >= len(row) {
					continue
				}
				cell := strings.TrimSpace(row[i])
				if cell == "" {
					continue
				}
				total++
				if sampleFn(cell) {
					matches++
				}
			}
			if total > 0 {
				score += float64(matches) / float64(total)
			}
		}

		// Mild preference for earlier columns on ties.
		score += 0.25 * (1 - float64(i)/float64(len(cfg.Headers)))

		scores[i] = score
	}
	return scores
}

// keywordScore: exact match beats prefix beats substring.
func keywordScore(header string, keywords []string) float64 {
	best := 0.0
	for _, kw := range keywords {
		switch {
		case header == kw:
			return 3.0
		case strings.HasPrefix(header, kw):
			if best < 2.0 {
				best = 2.0
			}
		case strings.Contains(header, kw):
			if best < 1.0 {
				best = 1.0
			}
		}
	}
	return best
}

func sampleLooksLikeDate(cell string) bool {
	_, err := normalizer.ParseDate(cell)
	return err == nil
}

func sampleLooksLikeAmount(cell string) bool {
	_, err := normalizer.ParseAmount(cell)
	return err == nil
}

func sampleLooksLikeText(cell string) bool {
	for _, r := range cell {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// findHeaderRow locates the header row and its delimiter. Statement exports
// often carry a few metadata lines (bank name, account, period) before the
// real header.
func findHeaderRow(lines []string) (rune, int, error) {
	allKeywords := make([]string, 0, 32)
	allKeywords = append(allKeywords, dateKeywords...)
	allKeywords = append(allKeywords, descriptionKeywords...)
	allKeywords = append(allKeywords, valueKeywords...)
	allKeywords = append(allKeywords, typeKeywords...)
	allKeywords = append(allKeywords, supplierKeywords...)

	bestIndex := -1
	bestDelimiter := rune(0)
	bestScore := 0

	for i, line := range lines {
		if i > 20 { // Headers never sit this deep.
			break
		}

		line = cleanLine(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		delimiter, columns := detectDelimiter(line)
		if columns < 2 {
			continue
		}

		keywordMatches := 0
		for _, kw := range allKeywords {
			if strings.Contains(lower, kw) {
				keywordMatches++
			}
		}
		if keywordMatches == 0 {
			continue
		}

		score := columns*10 + keywordMatches
		if score > bestScore {
			bestScore = score
			bestDelimiter = delimiter
			bestIndex = i
		}
	}

	if bestIndex < 0 {
		return 0, 0, ErrNoHeadersFound
	}
	return bestDelimiter, bestIndex, nil
}

func cleanLine(line string) string {
	line = strings.TrimRight(line, "\r")
	line = strings.TrimPrefix(line, "\uFEFF")
	return strings.TrimSpace(line)
}

func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount + 1
}

// sampleRows returns the first N data rows after the header
func sampleRows(data []byte, delimiter rune, startLine, maxRows int) [][]string {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	lineNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if lineNum >= startLine {
			rows = append(rows, record)
			if len(rows) >= maxRows {
				break
			}
		}
		lineNum++
	}
	return rows
}

// normalizeBytes strips a UTF-8 BOM and transcodes latin-1 exports.
func normalizeBytes(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return data
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
