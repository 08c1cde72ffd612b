package sync

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caixafacil/caixafacil/internal/domain/import/parser"
	"github.com/caixafacil/caixafacil/internal/domain/import/repository"
	"github.com/caixafacil/caixafacil/internal/domain/transactions"
)

type fakeAPI struct {
	accounts []PluggyAccount
	txns     map[string][]PluggyTransaction
	fetchErr error
	from     time.Time
}

func (f *fakeAPI) ListAccounts(_ context.Context, _ string) ([]PluggyAccount, error) {
	return f.accounts, nil
}

func (f *fakeAPI) ListTransactions(_ context.Context, accountID string, from time.Time) ([]PluggyTransaction, error) {
	f.from = from
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.txns[accountID], nil
}

type fakeAccounts struct {
	accounts []transactions.Account
	touched  []uuid.UUID
	created  []transactions.Account
}

func (f *fakeAccounts) ListAccounts(_ context.Context) ([]transactions.Account, error) {
	return f.accounts, nil
}

func (f *fakeAccounts) GetAccountByPluggyID(_ context.Context, pluggyAccountID string) (*transactions.Account, error) {
	for _, a := range f.accounts {
		if a.PluggyAccountID != nil && *a.PluggyAccountID == pluggyAccountID {
			return &a, nil
		}
	}
	return nil, transactions.ErrAccountNotFound
}

func (f *fakeAccounts) CreateAccount(_ context.Context, a *transactions.Account) error {
	a.ID = uuid.New()
	f.created = append(f.created, *a)
	return nil
}

func (f *fakeAccounts) TouchAccountSync(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeImporter struct {
	rows []parser.ParsedRow
	err  error
}

func (f *fakeImporter) ImportRows(_ context.Context, _ uuid.UUID, source string, rows []parser.ParsedRow, notes string) (*repository.ImportJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rows = rows
	return &repository.ImportJob{
		ID:           uuid.New(),
		Source:       source,
		RowsImported: len(rows),
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func connectedAccount(pluggyID string) transactions.Account {
	return transactions.Account{
		ID:              uuid.New(),
		Name:            "Conta PJ",
		PluggyAccountID: &pluggyID,
	}
}

func TestSyncAllImportsConnectedAccounts(t *testing.T) {
	account := connectedAccount("plg-1")
	api := &fakeAPI{
		txns: map[string][]PluggyTransaction{
			"plg-1": {
				{ID: "t1", Description: "PIX RECEBIDO CLIENTE", Amount: 150.00, Date: time.Date(2026, 1, 10, 14, 30, 0, 0, time.UTC), Type: "CREDIT"},
				{ID: "t2", Description: "PAGAMENTO FORNECEDOR", Amount: 89.90, Date: time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC), Type: "DEBIT"},
			},
		},
	}
	store := &fakeAccounts{accounts: []transactions.Account{account, {ID: uuid.New(), Name: "manual"}}}
	importer := &fakeImporter{}
	svc := NewService(api, store, importer, testLogger())

	results, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1, "accounts without a connection are skipped")

	assert.Equal(t, 2, results[0].Fetched)
	assert.Equal(t, 2, results[0].Imported)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, []uuid.UUID{account.ID}, store.touched)

	require.Len(t, importer.rows, 2)
	assert.Equal(t, int64(15000), importer.rows[0].AmountCents)
	assert.Equal(t, transactions.TypeIncome, importer.rows[0].Type)
	assert.Equal(t, int64(-8990), importer.rows[1].AmountCents)
	assert.Equal(t, transactions.TypeExpense, importer.rows[1].Type)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), importer.rows[0].Date)
}

func TestSyncAllFetchWindow(t *testing.T) {
	lastSync := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	account := connectedAccount("plg-1")
	account.LastSyncedAt = &lastSync

	api := &fakeAPI{txns: map[string][]PluggyTransaction{}}
	store := &fakeAccounts{accounts: []transactions.Account{account}}
	svc := NewService(api, store, &fakeImporter{}, testLogger())

	_, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	// Re-fetch a week before the last sync so late postings are caught.
	assert.Equal(t, lastSync.Add(-syncOverlap), api.from)
	assert.Equal(t, []uuid.UUID{account.ID}, store.touched)
}

func TestSyncAllReportsAccountFailure(t *testing.T) {
	account := connectedAccount("plg-1")
	api := &fakeAPI{fetchErr: errors.New("pluggy returned 503")}
	store := &fakeAccounts{accounts: []transactions.Account{account}}
	svc := NewService(api, store, &fakeImporter{}, testLogger())

	results, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "503")
	assert.Empty(t, store.touched, "failed accounts keep their sync cursor")
}

func TestConnectItemCreatesUnknownAccounts(t *testing.T) {
	existingID := "plg-known"
	api := &fakeAPI{
		accounts: []PluggyAccount{
			{ID: "plg-known", Name: "Conta Corrente", Type: "BANK"},
			{ID: "plg-new", Name: "Poupança", Type: "BANK"},
		},
	}
	store := &fakeAccounts{accounts: []transactions.Account{connectedAccount(existingID)}}
	svc := NewService(api, store, &fakeImporter{}, testLogger())

	connected, err := svc.ConnectItem(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Len(t, connected, 2)

	require.Len(t, store.created, 1)
	assert.Equal(t, "Poupança", store.created[0].Name)
	assert.Equal(t, "BRL", store.created[0].CurrencyCode)
	require.NotNil(t, store.created[0].PluggyAccountID)
	assert.Equal(t, "plg-new", *store.created[0].PluggyAccountID)
}

func TestToParsedRows(t *testing.T) {
	rows := toParsedRows([]PluggyTransaction{
		{Description: "  TARIFA   MENSAL  ", Amount: -19.90, Date: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		{Description: "TED RECEBIDA", Amount: 1200.50, Date: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
		{Description: "ESTORNO ZERADO", Amount: 0, Date: time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)},
	})

	require.Len(t, rows, 2, "zero-amount rows are dropped")
	assert.Equal(t, "TARIFA MENSAL", rows[0].Description)
	assert.Equal(t, int64(-1990), rows[0].AmountCents)
	assert.Equal(t, transactions.TypeExpense, rows[0].Type)
	assert.Equal(t, int64(120050), rows[1].AmountCents)
	assert.Equal(t, transactions.TypeIncome, rows[1].Type)
}
