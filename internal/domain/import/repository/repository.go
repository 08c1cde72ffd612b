// Package repository persists import jobs and imported transactions.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/caixafacil/caixafacil/internal/domain/import/normalizer"
	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

var ErrJobNotFound = errors.New("import job not found")

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ImportJob tracks one import run, whether from an upload or a bank sync.
type ImportJob struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     *uuid.UUID `json:"account_id,omitempty"`
	Source        string     `json:"source"`
	FileName      string     `json:"file_name,omitempty"`
	Status        string     `json:"status"`
	RowsTotal     int        `json:"rows_total"`
	RowsImported  int        `json:"rows_imported"`
	RowsSkipped   int        `json:"rows_skipped"`
	RowsFailed    int        `json:"rows_failed"`
	RowsDefaulted int        `json:"rows_defaulted"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// NewTransaction is a fully classified and categorized row ready to insert.
type NewTransaction struct {
	Date          time.Time
	Description   string
	AmountCents   int64
	Type          transactions.Type
	Category      string
	PaymentMethod string
	BankAccount   string
	Notes         string
}

// DedupKey builds the identity of a transaction for duplicate detection:
// ISO date, description as written, and the signed centavos value. It is
// recomputed on every run and never stored.
func DedupKey(date time.Time, description string, amountCents int64) string {
	return fmt.Sprintf("%s|%s|%d", normalizer.ISODate(date), description, amountCents)
}

// Repository handles import persistence with raw SQL over pgx.
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// CreateJob inserts a running import job and fills in its ID.
func (r *Repository) CreateJob(ctx context.Context, job *ImportJob) error {
	query := `
		INSERT INTO import_jobs (account_id, source, file_name, status)
		VALUES ($1, $2, $3, 'running')
		RETURNING id, started_at
	`
	if err := r.db.QueryRow(ctx, query, job.AccountID, job.Source, job.FileName).
		Scan(&job.ID, &job.StartedAt); err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	job.Status = "running"
	return nil
}

// FinishJob records the final counters and status of an import job.
func (r *Repository) FinishJob(ctx context.Context, job *ImportJob) error {
	query := `
		UPDATE import_jobs
		SET status = $2,
		    rows_total = $3,
		    rows_imported = $4,
		    rows_skipped = $5,
		    rows_failed = $6,
		    rows_defaulted = $7,
		    error_message = $8,
		    finished_at = now()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, job.ID, job.Status,
		job.RowsTotal, job.RowsImported, job.RowsSkipped, job.RowsFailed, job.RowsDefaulted,
		job.ErrorMessage)
	if err != nil {
		return fmt.Errorf("finish import job: %w", err)
	}
	return nil
}

// GetJob fetches one import job.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	query := `
		SELECT id, account_id, source, file_name, status,
		       rows_total, rows_imported, rows_skipped, rows_failed, rows_defaulted,
		       error_message, started_at, finished_at
		FROM import_jobs
		WHERE id = $1
	`
	job := &ImportJob{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.AccountID, &job.Source, &job.FileName, &job.Status,
		&job.RowsTotal, &job.RowsImported, &job.RowsSkipped, &job.RowsFailed, &job.RowsDefaulted,
		&job.ErrorMessage, &job.StartedAt, &job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recent import jobs.
func (r *Repository) ListJobs(ctx context.Context, limit int) ([]ImportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, account_id, source, file_name, status,
		       rows_total, rows_imported, rows_skipped, rows_failed, rows_defaulted,
		       error_message, started_at, finished_at
		FROM import_jobs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ImportJob
	for rows.Next() {
		var job ImportJob
		if err := rows.Scan(
			&job.ID, &job.AccountID, &job.Source, &job.FileName, &job.Status,
			&job.RowsTotal, &job.RowsImported, &job.RowsSkipped, &job.RowsFailed, &job.RowsDefaulted,
			&job.ErrorMessage, &job.StartedAt, &job.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ExistingKeys loads the dedup keys of every transaction already stored for
// an account.
func (r *Repository) ExistingKeys(ctx context.Context, accountID uuid.UUID) (map[string]struct{}, error) {
	query := `
		SELECT txn_date, description, amount_cents
		FROM transactions
		WHERE account_id = $1
	`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("load existing keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var date time.Time
		var description string
		var amountCents int64
		if err := rows.Scan(&date, &description, &amountCents); err != nil {
			return nil, fmt.Errorf("scan existing key: %w", err)
		}
		keys[DedupKey(date, description, amountCents)] = struct{}{}
	}
	return keys, rows.Err()
}

// BulkInsert inserts transactions in one round trip and returns how many
// rows were actually written. The unique index on (account_id, txn_date,
// description, amount_cents) backs ON CONFLICT, so concurrent imports of
// the same rows cannot double-insert.
func (r *Repository) BulkInsert(ctx context.Context, accountID uuid.UUID, txns []NewTransaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO transactions
			(account_id, txn_date, description, amount_cents, txn_type, category, payment_method, bank_account, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account_id, txn_date, description, amount_cents) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, t := range txns {
		batch.Queue(query, accountID, t.Date, t.Description, t.AmountCents,
			string(t.Type), t.Category, t.PaymentMethod, t.BankAccount, t.Notes)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range txns {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("bulk insert transactions: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
