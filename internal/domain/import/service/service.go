// Package service orchestrates statement imports: format detection, row
// parsing and classification, categorization, dedup, and persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/caixafacil/caixafacil/internal/domain/categorization"
	"github.com/caixafacil/caixafacil/internal/domain/import/parser"
	"github.com/caixafacil/caixafacil/internal/domain/import/repository"
	"github.com/caixafacil/caixafacil/internal/domain/import/sniffer"
	"github.com/caixafacil/caixafacil/pkg/metrics"
)

// Repo is the persistence surface the service depends on.
type Repo interface {
	CreateJob(ctx context.Context, job *repository.ImportJob) error
	FinishJob(ctx context.Context, job *repository.ImportJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error)
	ListJobs(ctx context.Context, limit int) ([]repository.ImportJob, error)
	ExistingKeys(ctx context.Context, accountID uuid.UUID) (map[string]struct{}, error)
	BulkInsert(ctx context.Context, accountID uuid.UUID, txns []repository.NewTransaction) (int, error)
}

// Categorizer assigns category labels to parsed rows.
type Categorizer interface {
	CategorizeAll(ctx context.Context, items []categorization.Item) []categorization.Result
}

// Analysis is the upload preview returned before an import is confirmed.
type Analysis struct {
	Headers        []string             `json:"headers"`
	SampleRows     [][]string           `json:"sample_rows"`
	Delimiter      string               `json:"delimiter"`
	SkipLines      int                  `json:"skip_lines"`
	Columns        *sniffer.ColumnMap   `json:"columns,omitempty"`
	Confidence     float64              `json:"confidence"`
	MissingColumns []string             `json:"missing_columns,omitempty"`
	// NeedsConfirmation is set when detection is too uncertain to import
	// without the user validating the column mapping.
	NeedsConfirmation bool `json:"needs_confirmation"`
}

// ColumnOverride is a user-confirmed column mapping that bypasses the
// confidence gate.
type ColumnOverride struct {
	Date        int `json:"date"`
	Description int `json:"description"`
	Value       int `json:"value"`
	Type        int `json:"type"`
}

// ErrNoValidRows marks a file in which every row was filtered out before
// categorization. Importing it would be indistinguishable from success, so
// the run aborts instead.
var ErrNoValidRows = errors.New("no valid rows after filtering")

// LowConfidenceError is returned when column detection scored below the
// configured threshold and no override was supplied.
type LowConfidenceError struct {
	Confidence float64
	Columns    sniffer.ColumnMap
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("column detection confidence %.2f below threshold; confirm the column mapping", e.Confidence)
}

// Service runs the import pipeline end to end. There is no retry at any
// stage: failures either drop a single row or fail the whole job.
type Service struct {
	repo          Repo
	parser        *parser.Parser
	categorizer   Categorizer
	minConfidence float64
	logger        *slog.Logger
	tracer        trace.Tracer
}

func NewService(repo Repo, categorizer Categorizer, minConfidence float64, logger *slog.Logger) *Service {
	return &Service{
		repo:          repo,
		parser:        parser.NewParser(),
		categorizer:   categorizer,
		minConfidence: minConfidence,
		logger:        logger,
		tracer:        otel.Tracer("import"),
	}
}

// Analyze inspects an uploaded file and reports the detected layout so the
// client can preview it and, when needed, confirm the column mapping.
func (s *Service) Analyze(ctx context.Context, data []byte) (*Analysis, error) {
	_, span := s.tracer.Start(ctx, "import.Analyze")
	defer span.End()

	data, err := s.toCSV(data)
	if err != nil {
		return nil, err
	}

	cfg, err := sniffer.DetectConfig(data)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		Headers:    cfg.Headers,
		SampleRows: cfg.SampleRows,
		Delimiter:  string(cfg.Delimiter),
		SkipLines:  cfg.SkipLines,
	}

	cols, err := sniffer.DetectColumns(cfg)
	if err != nil {
		var missing *sniffer.MissingColumnsError
		if errors.As(err, &missing) {
			analysis.MissingColumns = missing.Fields
			analysis.NeedsConfirmation = true
			return analysis, nil
		}
		return nil, err
	}

	analysis.Columns = cols
	analysis.Confidence = cols.Confidence
	analysis.NeedsConfirmation = cols.Confidence < s.minConfidence
	span.SetAttributes(attribute.Float64("import.confidence", cols.Confidence))

	return analysis, nil
}

// Import runs a full upload import for one account. override carries a
// user-confirmed column mapping and skips the confidence gate.
func (s *Service) Import(ctx context.Context, accountID uuid.UUID, fileName string, data []byte, override *ColumnOverride) (*repository.ImportJob, error) {
	ctx, span := s.tracer.Start(ctx, "import.Import",
		trace.WithAttributes(attribute.String("import.file_name", fileName)))
	defer span.End()

	data, err := s.toCSV(data)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("upload", "failed").Inc()
		return nil, err
	}

	cfg, err := sniffer.DetectConfig(data)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("upload", "failed").Inc()
		return nil, err
	}

	cols, err := s.resolveColumns(cfg, override)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("upload", "failed").Inc()
		return nil, err
	}

	job := &repository.ImportJob{AccountID: &accountID, Source: "upload", FileName: fileName}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		metrics.ImportsTotal.WithLabelValues("upload", "failed").Inc()
		return nil, err
	}

	parsed, err := s.parser.ParseCSV(data, cfg, cols)
	if err != nil {
		return nil, s.failJob(ctx, job, fmt.Errorf("parse file: %w", err))
	}

	// Files where every row was dropped abort here; dedup skips happen
	// later, so an all-duplicates re-import still succeeds.
	if parsed.ParsedRows == 0 {
		return nil, s.failJob(ctx, job, fmt.Errorf("%w (%d rows read, %d invalid, %d skipped)",
			ErrNoValidRows, parsed.TotalRows, len(parsed.Errors), parsed.SkippedRows))
	}

	if err := s.importParsed(ctx, job, accountID, parsed, ""); err != nil {
		return nil, s.failJob(ctx, job, err)
	}

	s.logger.Info("import finished",
		"job_id", job.ID,
		"file", fileName,
		"total", job.RowsTotal,
		"imported", job.RowsImported,
		"skipped", job.RowsSkipped,
		"failed", job.RowsFailed,
		"defaulted", job.RowsDefaulted)

	metrics.ImportsTotal.WithLabelValues("upload", "succeeded").Inc()
	return job, nil
}

// ImportRows runs the shared categorize/dedup/insert path for rows that
// did not come from a file upload, such as an open banking sync.
func (s *Service) ImportRows(ctx context.Context, accountID uuid.UUID, source string, rows []parser.ParsedRow, notes string) (*repository.ImportJob, error) {
	ctx, span := s.tracer.Start(ctx, "import.ImportRows",
		trace.WithAttributes(attribute.String("import.source", source)))
	defer span.End()

	job := &repository.ImportJob{AccountID: &accountID, Source: source}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	parsed := &parser.Result{Rows: rows, TotalRows: len(rows), ParsedRows: len(rows)}
	if err := s.importParsed(ctx, job, accountID, parsed, notes); err != nil {
		return nil, s.failJob(ctx, job, err)
	}
	return job, nil
}

// Job returns one import job.
func (s *Service) Job(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	return s.repo.GetJob(ctx, id)
}

// Jobs lists recent import jobs.
func (s *Service) Jobs(ctx context.Context, limit int) ([]repository.ImportJob, error) {
	return s.repo.ListJobs(ctx, limit)
}

// importParsed takes classified rows through dedup, categorization and
// insertion, then finishes the job with the resulting counters.
func (s *Service) importParsed(ctx context.Context, job *repository.ImportJob, accountID uuid.UUID, parsed *parser.Result, notes string) error {
	existing, err := s.repo.ExistingKeys(ctx, accountID)
	if err != nil {
		return err
	}

	duplicates := 0
	fresh := make([]parser.ParsedRow, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		key := repository.DedupKey(row.Date, row.Description, row.AmountCents)
		if _, ok := existing[key]; ok {
			duplicates++
			continue
		}
		// Files can repeat a row; count the second occurrence as a
		// duplicate too.
		existing[key] = struct{}{}
		fresh = append(fresh, row)
	}

	items := make([]categorization.Item, len(fresh))
	for i, row := range fresh {
		items[i] = categorization.Item{
			Description: row.Description,
			Type:        row.Type,
			AmountCents: row.AmountCents,
		}
	}
	categories := s.categorizer.CategorizeAll(ctx, items)

	defaulted := 0
	txns := make([]repository.NewTransaction, len(fresh))
	for i, row := range fresh {
		if categories[i].Defaulted {
			defaulted++
		}
		txns[i] = repository.NewTransaction{
			Date:        row.Date,
			Description: row.Description,
			AmountCents: row.AmountCents,
			Type:        row.Type,
			Category:    categories[i].Category,
			Notes:       notes,
		}
	}

	inserted, err := s.repo.BulkInsert(ctx, accountID, txns)
	if err != nil {
		return err
	}
	// Rows lost to a concurrent import land on the same unique index.
	duplicates += len(txns) - inserted

	job.Status = "succeeded"
	job.RowsTotal = parsed.TotalRows
	job.RowsImported = inserted
	job.RowsSkipped = parsed.SkippedRows + duplicates
	job.RowsFailed = len(parsed.Errors)
	job.RowsDefaulted = defaulted
	if err := s.repo.FinishJob(ctx, job); err != nil {
		s.logger.Warn("failed to finish import job", "job_id", job.ID, "error", err)
	}

	metrics.RowsImportedTotal.Add(float64(inserted))
	metrics.DuplicatesSkippedTotal.Add(float64(duplicates))
	metrics.RowsDefaultedTotal.Add(float64(defaulted))
	metrics.RowsFailedTotal.Add(float64(len(parsed.Errors)))

	return nil
}

func (s *Service) resolveColumns(cfg *sniffer.FileConfig, override *ColumnOverride) (*sniffer.ColumnMap, error) {
	if override != nil {
		if override.Date < 0 || override.Description < 0 || override.Value < 0 {
			return nil, fmt.Errorf("column override must map date, description and value")
		}
		return &sniffer.ColumnMap{
			Date:        override.Date,
			Description: override.Description,
			Value:       override.Value,
			Type:        override.Type,
			Supplier:    -1,
			Confidence:  1.0,
		}, nil
	}

	cols, err := sniffer.DetectColumns(cfg)
	if err != nil {
		return nil, err
	}
	if cols.Confidence < s.minConfidence {
		return nil, &LowConfidenceError{Confidence: cols.Confidence, Columns: *cols}
	}
	return cols, nil
}

func (s *Service) failJob(ctx context.Context, job *repository.ImportJob, cause error) error {
	msg := cause.Error()
	job.Status = "failed"
	job.ErrorMessage = &msg
	if err := s.repo.FinishJob(ctx, job); err != nil {
		s.logger.Warn("failed to mark import job as failed", "job_id", job.ID, "error", err)
	}
	metrics.ImportsTotal.WithLabelValues(job.Source, "failed").Inc()
	s.logger.Error("import failed", "job_id", job.ID, "error", cause)
	return cause
}

// toCSV routes XLSX uploads through the spreadsheet extractor so both
// formats share the CSV pipeline.
func (s *Service) toCSV(data []byte) ([]byte, error) {
	if parser.IsXLSX(data) {
		return parser.XLSXToCSV(data)
	}
	return data, nil
}
