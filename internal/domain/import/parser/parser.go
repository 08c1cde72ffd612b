// Package parser turns statement files into classified transaction rows.
// Malformed rows are collected as per-row errors so one bad line never
// aborts an import.
package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/caixafacil/caixafacil/internal/domain/import/normalizer"
	"github.com/caixafacil/caixafacil/internal/domain/import/sniffer"
	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

// ParsedRow is one classified statement row. AmountCents is signed after
// classification: negative for expenses, positive for income.
type ParsedRow struct {
	Date        time.Time
	Description string
	AmountCents int64
	Type        transactions.Type
	RowNum      int
}

// RowError is a per-row soft failure.
type RowError struct {
	Row     int
	Column  string
	Message string
	RawData string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
}

// Result aggregates the parse outcome for a whole file.
type Result struct {
	Rows        []ParsedRow
	Errors      []RowError
	TotalRows   int
	ParsedRows  int
	SkippedRows int
}

// Parser converts statement files into rows using a detected column map.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// statementRow covers the canonical layout most BR exports share, matched
// by header name so gocsv can unmarshal directly.
type statementRow struct {
	Data       string `csv:"data"`
	Descricao  string `csv:"descrição"`
	Descricao2 string `csv:"descricao"`
	Historico  string `csv:"histórico"`
	Historico2 string `csv:"historico"`
	Valor      string `csv:"valor"`
	Tipo       string `csv:"tipo"`
	Natureza   string `csv:"natureza"`
	Fornecedor string `csv:"fornecedor"`
}

// ParseCSV parses statement bytes with the detected configuration. Files
// whose headers match the canonical layout take the gocsv path; everything
// else is parsed positionally through the column map.
func (p *Parser) ParseCSV(data []byte, cfg *sniffer.FileConfig, cols *sniffer.ColumnMap) (*Result, error) {
	if isCanonicalLayout(cfg.Headers) {
		if result, err := p.parseCanonical(data, cfg); err == nil {
			return result, nil
		}
		// Canonical path is an optimization; fall through on failure.
	}
	return p.parsePositional(data, cfg, cols)
}

func isCanonicalLayout(headers []string) bool {
	var hasDate, hasDesc, hasValue bool
	for _, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "data":
			hasDate = true
		case "descrição", "descricao", "histórico", "historico":
			hasDesc = true
		case "valor":
			hasValue = true
		}
	}
	return hasDate && hasDesc && hasValue
}

func (p *Parser) parseCanonical(data []byte, cfg *sniffer.FileConfig) (*Result, error) {
	reader := io.Reader(bytes.NewReader(data))
	if cfg.SkipLines > 0 {
		reader = skipLines(reader, cfg.SkipLines)
	}

	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = cfg.Delimiter
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		r.FieldsPerRecord = -1
		return r
	})

	var rows []statementRow
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, fmt.Errorf("parse canonical layout: %w", err)
	}

	records := make([]rawRow, 0, len(rows))
	for i, row := range rows {
		records = append(records, rawRow{
			rowNum:      cfg.SkipLines + 2 + i,
			date:        row.Data,
			description: coalesce(row.Descricao, row.Descricao2, row.Historico, row.Historico2),
			value:       row.Valor,
			typeCell:    coalesce(row.Tipo, row.Natureza),
			supplier:    row.Fornecedor,
		})
	}
	return p.classifyRows(records), nil
}

func (p *Parser) parsePositional(data []byte, cfg *sniffer.FileConfig, cols *sniffer.ColumnMap) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = cfg.Delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	// Skip metadata and header lines.
	for i := 0; i <= cfg.SkipLines; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("file has no data rows: %w", err)
		}
	}

	getValue := func(record []string, idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var records []rawRow
	rowNum := cfg.SkipLines + 2 // 1-indexed, after header
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			records = append(records, rawRow{rowNum: rowNum, readErr: err})
			rowNum++
			continue
		}
		records = append(records, rawRow{
			rowNum:      rowNum,
			date:        getValue(record, cols.Date),
			description: getValue(record, cols.Description),
			value:       getValue(record, cols.Value),
			typeCell:    getValue(record, cols.Type),
			supplier:    getValue(record, cols.Supplier),
		})
		rowNum++
	}

	return p.classifyRows(records), nil
}

type rawRow struct {
	rowNum      int
	date        string
	description string
	value       string
	typeCell    string
	supplier    string
	readErr     error
}

// classifyRows validates, normalizes and classifies raw rows. Sign-based
// classification is only trusted when the file actually carries negative
// values; unsigned exports fall back to description hints.
func (p *Parser) classifyRows(records []rawRow) *Result {
	result := &Result{}

	signedFile := false
	for _, r := range records {
		if r.readErr == nil && normalizer.AmountOrZero(r.value) < 0 {
			signedFile = true
			break
		}
	}

	for _, r := range records {
		result.TotalRows++

		if r.readErr != nil {
			result.Errors = append(result.Errors, RowError{
				Row:     r.rowNum,
				Message: r.readErr.Error(),
			})
			continue
		}

		// Blank lines and repeated headers are skipped, not errors.
		if r.date == "" && r.description == "" && r.value == "" {
			result.SkippedRows++
			continue
		}

		date, err := normalizer.ParseDate(r.date)
		if err != nil {
			result.Errors = append(result.Errors, RowError{
				Row:     r.rowNum,
				Column:  "date",
				Message: "invalid date",
				RawData: r.date,
			})
			continue
		}

		description := normalizer.CleanDescription(r.description)
		// A detected supplier column enriches the description.
		if supplier := normalizer.CleanDescription(r.supplier); supplier != "" &&
			!strings.Contains(strings.ToLower(description), strings.ToLower(supplier)) {
			if description == "" {
				description = supplier
			} else {
				description = description + " - " + supplier
			}
		}
		if description == "" {
			result.Errors = append(result.Errors, RowError{
				Row:     r.rowNum,
				Column:  "description",
				Message: "missing description",
			})
			continue
		}

		amountCents, err := normalizer.ParseAmount(r.value)
		if err != nil {
			result.Errors = append(result.Errors, RowError{
				Row:     r.rowNum,
				Column:  "value",
				Message: "invalid value",
				RawData: r.value,
			})
			continue
		}
		if amountCents == 0 {
			result.SkippedRows++
			continue
		}

		txnType := classifyType(r.typeCell, amountCents, description, signedFile)

		// Normalize the sign to the classified type.
		if txnType == transactions.TypeExpense && amountCents > 0 {
			amountCents = -amountCents
		}
		if txnType == transactions.TypeIncome && amountCents < 0 {
			amountCents = -amountCents
		}

		result.Rows = append(result.Rows, ParsedRow{
			Date:        date,
			Description: description,
			AmountCents: amountCents,
			Type:        txnType,
			RowNum:      r.rowNum,
		})
		result.ParsedRows++
	}

	return result
}

// Vocabulary seen in "tipo"/"natureza" columns across BR bank exports.
var (
	expenseTypeWords = []string{"d", "db", "débito", "debito", "saída", "saida", "despesa", "pagamento", "debit"}
	incomeTypeWords  = []string{"c", "cr", "crédito", "credito", "entrada", "receita", "recebimento", "credit"}

	incomeHints  = []string{"recebido", "recebida", "recebimento", "depósito", "deposito", "rendimento", "resgate"}
	expenseHints = []string{"pagamento", "pago", "compra", "tarifa", "saque", "débito", "debito"}
)

// classifyType resolves a row's direction: explicit type column first, the
// value sign when the file is signed, then description hints, and expense
// as the final default.
func classifyType(typeCell string, amountCents int64, description string, signedFile bool) transactions.Type {
	if t, ok := typeFromCell(typeCell); ok {
		return t
	}

	if signedFile {
		if amountCents < 0 {
			return transactions.TypeExpense
		}
		return transactions.TypeIncome
	}

	lower := strings.ToLower(description)
	for _, hint := range incomeHints {
		if strings.Contains(lower, hint) {
			return transactions.TypeIncome
		}
	}
	for _, hint := range expenseHints {
		if strings.Contains(lower, hint) {
			return transactions.TypeExpense
		}
	}

	return transactions.TypeExpense
}

func typeFromCell(cell string) (transactions.Type, bool) {
	c := strings.ToLower(strings.TrimSpace(cell))
	if c == "" {
		return "", false
	}
	for _, w := range expenseTypeWords {
		if c == w {
			return transactions.TypeExpense, true
		}
	}
	for _, w := range incomeTypeWords {
		if c == w {
			return transactions.TypeIncome, true
		}
	}
	return "", false
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// skipLines returns a reader positioned after the first n lines.
func skipLines(r io.Reader, n int) io.Reader {
	return &lineSkipper{reader: r, skip: n}
}

type lineSkipper struct {
	reader  io.Reader
	skip    int
	skipped bool
}

func (ls *lineSkipper) Read(p []byte) (int, error) {
	if !ls.skipped {
		buf := make([]byte, 1)
		lines := 0
		for lines < ls.skip {
			n, err := ls.reader.Read(buf)
			if err != nil {
				return 0, err
			}
			if n > 0 && buf[0] == '\n' {
				lines++
			}
		}
		ls.skipped = true
	}
	return ls.reader.Read(p)
}
