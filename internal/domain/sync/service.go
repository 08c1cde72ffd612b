package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/caixafacil/caixafacil/internal/domain/import/normalizer"
	"github.com/caixafacil/caixafacil/internal/domain/import/parser"
	"github.com/caixafacil/caixafacil/internal/domain/import/repository"
	"github.com/caixafacil/caixafacil/internal/domain/transactions"
	"github.com/caixafacil/caixafacil/pkg/metrics"
)

// defaultLookback bounds the first sync of a freshly connected account.
const defaultLookback = 90 * 24 * time.Hour

// syncOverlap re-fetches a window before the last sync so late-posted
// transactions are not missed. Dedup absorbs the repeats.
const syncOverlap = 7 * 24 * time.Hour

// BankAPI is the open banking surface the service talks to.
type BankAPI interface {
	ListAccounts(ctx context.Context, itemID string) ([]PluggyAccount, error)
	ListTransactions(ctx context.Context, accountID string, from time.Time) ([]PluggyTransaction, error)
}

// AccountStore is the slice of the accounts repository the sync needs.
type AccountStore interface {
	ListAccounts(ctx context.Context) ([]transactions.Account, error)
	GetAccountByPluggyID(ctx context.Context, pluggyAccountID string) (*transactions.Account, error)
	CreateAccount(ctx context.Context, a *transactions.Account) error
	TouchAccountSync(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Importer is the shared import pipeline entry point for synced rows.
type Importer interface {
	ImportRows(ctx context.Context, accountID uuid.UUID, source string, rows []parser.ParsedRow, notes string) (*repository.ImportJob, error)
}

// AccountResult reports one account's outcome inside a sync run.
type AccountResult struct {
	AccountID   uuid.UUID  `json:"account_id"`
	AccountName string     `json:"account_name"`
	Fetched     int        `json:"fetched"`
	Imported    int        `json:"imported"`
	Skipped     int        `json:"skipped"`
	Error       string     `json:"error,omitempty"`
	JobID       *uuid.UUID `json:"job_id,omitempty"`
}

// Service pulls transactions from connected accounts and pushes them
// through the same categorize/dedup/insert path as file uploads.
type Service struct {
	api      BankAPI
	accounts AccountStore
	importer Importer
	logger   *slog.Logger
}

func NewService(api BankAPI, accounts AccountStore, importer Importer, logger *slog.Logger) *Service {
	return &Service{api: api, accounts: accounts, importer: importer, logger: logger}
}

// ConnectItem registers the accounts under a Pluggy item, creating local
// accounts for the ones not seen before.
func (s *Service) ConnectItem(ctx context.Context, itemID string) ([]transactions.Account, error) {
	remote, err := s.api.ListAccounts(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("connect item: %w", err)
	}

	var connected []transactions.Account
	for _, ra := range remote {
		existing, err := s.accounts.GetAccountByPluggyID(ctx, ra.ID)
		if err == nil {
			connected = append(connected, *existing)
			continue
		}
		if !errors.Is(err, transactions.ErrAccountNotFound) {
			return nil, err
		}

		pluggyID := ra.ID
		account := &transactions.Account{
			Name:            ra.Name,
			Institution:     strings.ToLower(ra.Type),
			CurrencyCode:    "BRL",
			PluggyAccountID: &pluggyID,
		}
		if err := s.accounts.CreateAccount(ctx, account); err != nil {
			return nil, fmt.Errorf("create synced account: %w", err)
		}
		s.logger.Info("connected bank account", "account_id", account.ID, "pluggy_account_id", ra.ID)
		connected = append(connected, *account)
	}
	return connected, nil
}

// SyncAll syncs every account that has an open banking connection. One
// account failing does not stop the others.
func (s *Service) SyncAll(ctx context.Context) ([]AccountResult, error) {
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	var results []AccountResult
	failed := false
	for _, account := range accounts {
		if account.PluggyAccountID == nil {
			continue
		}
		result := s.syncAccount(ctx, account)
		if result.Error != "" {
			failed = true
		}
		results = append(results, result)
	}

	status := "succeeded"
	if failed {
		status = "failed"
	}
	metrics.SyncRunsTotal.WithLabelValues(status).Inc()
	return results, nil
}

func (s *Service) syncAccount(ctx context.Context, account transactions.Account) AccountResult {
	result := AccountResult{AccountID: account.ID, AccountName: account.Name}

	from := time.Now().UTC().Add(-defaultLookback)
	if account.LastSyncedAt != nil {
		from = account.LastSyncedAt.Add(-syncOverlap)
	}

	remote, err := s.api.ListTransactions(ctx, *account.PluggyAccountID, from)
	if err != nil {
		s.logger.Error("sync fetch failed", "account_id", account.ID, "error", err)
		result.Error = err.Error()
		return result
	}
	result.Fetched = len(remote)

	rows := toParsedRows(remote)
	if len(rows) == 0 {
		if err := s.accounts.TouchAccountSync(ctx, account.ID, time.Now().UTC()); err != nil {
			s.logger.Warn("failed to stamp sync time", "account_id", account.ID, "error", err)
		}
		return result
	}

	job, err := s.importer.ImportRows(ctx, account.ID, "sync", rows, "importado via open banking")
	if err != nil {
		s.logger.Error("sync import failed", "account_id", account.ID, "error", err)
		result.Error = err.Error()
		return result
	}
	result.Imported = job.RowsImported
	result.Skipped = job.RowsSkipped
	result.JobID = &job.ID

	if err := s.accounts.TouchAccountSync(ctx, account.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to stamp sync time", "account_id", account.ID, "error", err)
	}

	s.logger.Info("account synced",
		"account_id", account.ID,
		"fetched", result.Fetched,
		"imported", result.Imported,
		"skipped", result.Skipped)
	return result
}

// toParsedRows converts connector transactions to the import pipeline's
// row shape. The connector already tells debit from credit, so rows arrive
// classified.
func toParsedRows(remote []PluggyTransaction) []parser.ParsedRow {
	rows := make([]parser.ParsedRow, 0, len(remote))
	for i, rt := range remote {
		cents := decimal.NewFromFloat(rt.Amount).Shift(2).Round(0).IntPart()
		if cents == 0 {
			continue
		}

		txnType := transactions.TypeIncome
		switch {
		case strings.EqualFold(rt.Type, "DEBIT"):
			txnType = transactions.TypeExpense
		case strings.EqualFold(rt.Type, "CREDIT"):
			txnType = transactions.TypeIncome
		case cents < 0:
			txnType = transactions.TypeExpense
		}
		if txnType == transactions.TypeExpense && cents > 0 {
			cents = -cents
		}
		if txnType == transactions.TypeIncome && cents < 0 {
			cents = -cents
		}

		date := rt.Date.UTC().Truncate(24 * time.Hour)
		rows = append(rows, parser.ParsedRow{
			Date:        date,
			Description: normalizer.CleanDescription(rt.Description),
			AmountCents: cents,
			Type:        txnType,
			RowNum:      i + 1,
		})
	}
	return rows
}
