package transactions

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	txns        []Transaction
	monthly     []MonthSummary
	totals      []CategoryTotal
	accounts    []Account
	deleted     []uuid.UUID
	recategored map[uuid.UUID]string
}

func (f *fakeRepo) List(_ context.Context, _ ListFilter) ([]Transaction, error) {
	return f.txns, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepo) UpdateCategory(_ context.Context, id uuid.UUID, category string) error {
	if f.recategored == nil {
		f.recategored = make(map[uuid.UUID]string)
	}
	f.recategored[id] = category
	return nil
}

func (f *fakeRepo) MonthlySummary(_ context.Context, _ *uuid.UUID, _ int) ([]MonthSummary, error) {
	return f.monthly, nil
}

func (f *fakeRepo) CategoryTotals(_ context.Context, _ *uuid.UUID, _, _ time.Time) ([]CategoryTotal, error) {
	return f.totals, nil
}

func (f *fakeRepo) CreateAccount(_ context.Context, a *Account) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	f.accounts = append(f.accounts, *a)
	return nil
}

func (f *fakeRepo) GetAccount(_ context.Context, _ uuid.UUID) (*Account, error) {
	return nil, ErrAccountNotFound
}

func (f *fakeRepo) ListAccounts(_ context.Context) ([]Account, error) {
	return f.accounts, nil
}

func fakeTransaction() Transaction {
	return Transaction{
		ID:          uuid.New(),
		AccountID:   uuid.New(),
		Date:        gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now()),
		Description: gofakeit.Company(),
		AmountCents: -int64(gofakeit.Number(100, 500000)),
		Type:        TypeExpense,
		Category:    "fornecedores",
		CreatedAt:   time.Now(),
	}
}

func TestSummary(t *testing.T) {
	repo := &fakeRepo{
		monthly: []MonthSummary{
			{Month: "2025-11", IncomeCents: 500000, ExpenseCents: -300000, NetCents: 200000},
			{Month: "2025-12", IncomeCents: 400000, ExpenseCents: -350000, NetCents: 50000},
			{Month: "2026-01", IncomeCents: 600000, ExpenseCents: -400000, NetCents: 200000},
		},
		totals: []CategoryTotal{
			{Category: "fornecedores", Type: TypeExpense, TotalCents: -700000, Count: 12},
		},
	}
	svc := NewService(repo, slog.New(slog.DiscardHandler))

	summary, err := svc.Summary(context.Background(), nil, 6)
	require.NoError(t, err)

	assert.Equal(t, int64(1500000), summary.TotalIncomeCents)
	assert.Equal(t, int64(-1050000), summary.TotalExpenseCents)
	assert.Equal(t, int64(450000), summary.NetCents)

	// Projection averages the last three months.
	assert.Equal(t, int64(150000), summary.ProjectedNetCents)
	assert.NotEmpty(t, summary.NetDisplay)
	require.Len(t, summary.Categories, 1)
}

func TestSummaryEmpty(t *testing.T) {
	svc := NewService(&fakeRepo{}, slog.New(slog.DiscardHandler))

	summary, err := svc.Summary(context.Background(), nil, 6)
	require.NoError(t, err)
	assert.Zero(t, summary.NetCents)
	assert.Zero(t, summary.ProjectedNetCents)
}

func TestProjectNetWindow(t *testing.T) {
	monthly := []MonthSummary{
		{NetCents: 1000}, {NetCents: 2000}, {NetCents: 3000}, {NetCents: 4000}, {NetCents: 5000},
	}
	// Only the last three months count: (3000+4000+5000)/3.
	assert.Equal(t, int64(4000), projectNet(monthly))
	assert.Equal(t, int64(0), projectNet(nil))
	assert.Equal(t, int64(1000), projectNet(monthly[:1]))
}

func TestCreateAccountValidation(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, slog.New(slog.DiscardHandler))

	_, err := svc.CreateAccount(context.Background(), "", "Banco X")
	require.Error(t, err)

	account, err := svc.CreateAccount(context.Background(), "Conta PJ", "Banco X")
	require.NoError(t, err)
	assert.Equal(t, "BRL", account.CurrencyCode)
	assert.NotEqual(t, uuid.Nil, account.ID)
}

func TestRecategorizeValidatesVocabulary(t *testing.T) {
	repo := &fakeRepo{}
	known := map[string]bool{"fornecedores": true, "vendas": true}
	svc := NewService(repo, slog.New(slog.DiscardHandler)).
		WithCategoryValidator(func(c string) bool { return known[c] })

	id := uuid.New()

	err := svc.Recategorize(context.Background(), id, "")
	require.Error(t, err)

	err = svc.Recategorize(context.Background(), id, "lanchonete do zé")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
	assert.Empty(t, repo.recategored)

	err = svc.Recategorize(context.Background(), id, "fornecedores")
	require.NoError(t, err)
	assert.Equal(t, "fornecedores", repo.recategored[id])
}

func TestRecategorizeWithoutValidatorAcceptsAnyLabel(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, slog.New(slog.DiscardHandler))

	id := uuid.New()
	require.NoError(t, svc.Recategorize(context.Background(), id, "qualquer"))
	assert.Equal(t, "qualquer", repo.recategored[id])
}

func TestListPassesThrough(t *testing.T) {
	repo := &fakeRepo{txns: []Transaction{fakeTransaction(), fakeTransaction()}}
	svc := NewService(repo, slog.New(slog.DiscardHandler))

	txns, err := svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}
