package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caixafacil/caixafacil/internal/domain/categorization"
	"github.com/caixafacil/caixafacil/internal/domain/import/parser"
	"github.com/caixafacil/caixafacil/internal/domain/import/repository"
	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

type fakeRepo struct {
	existing map[string]struct{}
	inserted []repository.NewTransaction
	finished *repository.ImportJob
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{existing: map[string]struct{}{}}
}

func (f *fakeRepo) CreateJob(_ context.Context, job *repository.ImportJob) error {
	job.ID = uuid.New()
	job.Status = "running"
	return nil
}

func (f *fakeRepo) FinishJob(_ context.Context, job *repository.ImportJob) error {
	copied := *job
	f.finished = &copied
	return nil
}

func (f *fakeRepo) GetJob(_ context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	return nil, repository.ErrJobNotFound
}

func (f *fakeRepo) ListJobs(_ context.Context, _ int) ([]repository.ImportJob, error) {
	return nil, nil
}

func (f *fakeRepo) ExistingKeys(_ context.Context, _ uuid.UUID) (map[string]struct{}, error) {
	keys := make(map[string]struct{}, len(f.existing))
	for k := range f.existing {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func (f *fakeRepo) BulkInsert(_ context.Context, _ uuid.UUID, txns []repository.NewTransaction) (int, error) {
	f.inserted = append(f.inserted, txns...)
	return len(txns), nil
}

// fallbackCategorizer mimics the real service's guarantee: every item gets
// a label, unknown ones get the fallback with Defaulted set.
type fallbackCategorizer struct {
	known map[string]string
}

func (c *fallbackCategorizer) CategorizeAll(_ context.Context, items []categorization.Item) []categorization.Result {
	results := make([]categorization.Result, len(items))
	for i, item := range items {
		if label, ok := c.known[item.Description]; ok {
			results[i] = categorization.Result{Category: label}
		} else {
			results[i] = categorization.Result{Category: categorization.FallbackFor(item.Type), Defaulted: true}
		}
	}
	return results
}

func newService(repo Repo, minConfidence float64) *Service {
	cat := &fallbackCategorizer{known: map[string]string{
		"PIX RECEBIDO JOAO": "vendas",
		"TARIFA MENSAL":     "tarifas_bancarias",
	}}
	return NewService(repo, cat, minConfidence, slog.New(slog.DiscardHandler))
}

var statementCSV = []byte("data;descrição;valor\n" +
	"05/01/2026;PIX RECEBIDO JOAO;1.500,00\n" +
	"06/01/2026;TARIFA MENSAL;-19,90\n" +
	"07/01/2026;COMPRA MISTERIOSA;-80,00\n" +
	"99/99/2026;QUEBRADA;-1,00\n")

func TestImportHappyPath(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 0.6)

	job, err := svc.Import(context.Background(), uuid.New(), "extrato.csv", statementCSV, nil)
	require.NoError(t, err)

	assert.Equal(t, "succeeded", job.Status)
	assert.Equal(t, 4, job.RowsTotal)
	assert.Equal(t, 3, job.RowsImported)
	assert.Equal(t, 0, job.RowsSkipped)
	assert.Equal(t, 1, job.RowsFailed)
	assert.Equal(t, 1, job.RowsDefaulted)

	require.Len(t, repo.inserted, 3)
	assert.Equal(t, "vendas", repo.inserted[0].Category)
	assert.Equal(t, transactions.TypeIncome, repo.inserted[0].Type)
	assert.Equal(t, int64(150000), repo.inserted[0].AmountCents)
	assert.Equal(t, "tarifas_bancarias", repo.inserted[1].Category)
	// Unknown description degraded to the expense fallback.
	assert.Equal(t, categorization.FallbackExpense, repo.inserted[2].Category)

	require.NotNil(t, repo.finished)
	assert.Equal(t, "succeeded", repo.finished.Status)
}

func TestImportSkipsDuplicates(t *testing.T) {
	repo := newFakeRepo()
	// The first file row is already stored for this account.
	repo.existing["2026-01-05|PIX RECEBIDO JOAO|150000"] = struct{}{}
	svc := newService(repo, 0.6)

	job, err := svc.Import(context.Background(), uuid.New(), "extrato.csv", statementCSV, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, job.RowsImported)
	assert.Equal(t, 1, job.RowsSkipped)
	for _, tx := range repo.inserted {
		assert.NotEqual(t, "PIX RECEBIDO JOAO", tx.Description)
	}
}

func TestImportDeduplicatesWithinFile(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 0.6)

	data := []byte("data;descrição;valor\n" +
		"05/01/2026;TARIFA MENSAL;-19,90\n" +
		"05/01/2026;TARIFA MENSAL;-19,90\n")

	job, err := svc.Import(context.Background(), uuid.New(), "extrato.csv", data, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, job.RowsImported)
	assert.Equal(t, 1, job.RowsSkipped)
	assert.Len(t, repo.inserted, 1)
}

func TestImportFailsWhenEveryRowFiltered(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 0.6)

	// Bad date, empty description, zero amount: nothing survives the
	// validity filter.
	data := []byte("data;descrição;valor\n" +
		"99/99/2026;COMPRA RUIM;10,00\n" +
		"05/01/2026;;20,00\n" +
		"06/01/2026;ESTORNO ZERADO;0,00\n")

	_, err := svc.Import(context.Background(), uuid.New(), "extrato.csv", data, nil)
	require.ErrorIs(t, err, ErrNoValidRows)

	assert.Empty(t, repo.inserted, "structural failure writes no transactions")
	require.NotNil(t, repo.finished)
	assert.Equal(t, "failed", repo.finished.Status)
	require.NotNil(t, repo.finished.ErrorMessage)
	assert.Contains(t, *repo.finished.ErrorMessage, "no valid rows")
}

func TestImportAllDuplicatesStillSucceeds(t *testing.T) {
	repo := newFakeRepo()
	repo.existing["2026-01-05|TARIFA MENSAL|-1990"] = struct{}{}
	svc := newService(repo, 0.6)

	data := []byte("data;descrição;valor\n" +
		"05/01/2026;TARIFA MENSAL;-19,90\n")

	// Re-importing an already-stored file is a successful no-op, not a
	// structural failure.
	job, err := svc.Import(context.Background(), uuid.New(), "extrato.csv", data, nil)
	require.NoError(t, err)
	assert.Equal(t, "succeeded", job.Status)
	assert.Equal(t, 0, job.RowsImported)
	assert.Equal(t, 1, job.RowsSkipped)
}

func TestImportLowConfidenceRequiresOverride(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 0.99)

	_, err := svc.Import(context.Background(), uuid.New(), "extrato.csv", statementCSV, nil)
	var lowErr *LowConfidenceError
	require.ErrorAs(t, err, &lowErr)
	assert.Greater(t, lowErr.Confidence, 0.0)
	assert.Less(t, lowErr.Confidence, 0.99)

	// A confirmed mapping bypasses the gate.
	override := &ColumnOverride{Date: 0, Description: 1, Value: 2, Type: -1}
	job, err := svc.Import(context.Background(), uuid.New(), "extrato.csv", statementCSV, override)
	require.NoError(t, err)
	assert.Equal(t, 3, job.RowsImported)
}

func TestAnalyze(t *testing.T) {
	svc := newService(newFakeRepo(), 0.6)

	t.Run("detects canonical layout", func(t *testing.T) {
		analysis, err := svc.Analyze(context.Background(), statementCSV)
		require.NoError(t, err)
		assert.Equal(t, []string{"data", "descrição", "valor"}, analysis.Headers)
		assert.Equal(t, ";", analysis.Delimiter)
		require.NotNil(t, analysis.Columns)
		assert.False(t, analysis.NeedsConfirmation)
	})

	t.Run("missing columns need confirmation", func(t *testing.T) {
		data := []byte("data;saldo\n05/01/2026;1.000,00\n")
		analysis, err := svc.Analyze(context.Background(), data)
		require.NoError(t, err)
		assert.True(t, analysis.NeedsConfirmation)
		assert.Contains(t, analysis.MissingColumns, "value")
	})
}

func TestImportRows(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, 0.6)

	rows := []parser.ParsedRow{
		{
			Date:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			Description: "PIX RECEBIDO JOAO",
			AmountCents: 150000,
			Type:        transactions.TypeIncome,
		},
	}

	job, err := svc.ImportRows(context.Background(), uuid.New(), "sync", rows, "importado via open banking")
	require.NoError(t, err)

	assert.Equal(t, "sync", job.Source)
	assert.Equal(t, 1, job.RowsImported)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, "importado via open banking", repo.inserted[0].Notes)
}
