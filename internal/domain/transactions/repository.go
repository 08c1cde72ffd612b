package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound        = errors.New("transaction not found")
	ErrAccountNotFound = errors.New("account not found")
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ListFilter narrows transaction listings. Nil fields are ignored.
type ListFilter struct {
	AccountID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Type      *Type
	Category  *string
	Search    *string
	Limit     int
	Offset    int
}

// MonthSummary aggregates one calendar month of cash flow.
type MonthSummary struct {
	Month        string `json:"month"` // "2026-01"
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"` // negative
	NetCents     int64  `json:"net_cents"`
}

// CategoryTotal aggregates spending or income for one category.
type CategoryTotal struct {
	Category   string `json:"category"`
	Type       Type   `json:"type"`
	TotalCents int64  `json:"total_cents"`
	Count      int    `json:"count"`
}

// Repository runs the transaction and account queries behind the dashboard.
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `id, account_id, txn_date, description, amount_cents, txn_type,
	category, payment_method, bank_account, notes, created_at`

// List returns transactions matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	var conditions []string
	var args []any

	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.AccountID != nil {
		add("account_id = $%d", *filter.AccountID)
	}
	if filter.From != nil {
		add("txn_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("txn_date <= $%d", *filter.To)
	}
	if filter.Type != nil {
		add("txn_type = $%d", string(*filter.Type))
	}
	if filter.Category != nil {
		add("category = $%d", *filter.Category)
	}
	if filter.Search != nil {
		add("description ILIKE $%d", "%"+*filter.Search+"%")
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY txn_date DESC, created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.AccountID, &t.Date, &t.Description, &t.AmountCents, &t.Type,
			&t.Category, &t.PaymentMethod, &t.BankAccount, &t.Notes, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// Delete removes one transaction. Deletion is the only mutation allowed
// after import.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCategory re-labels one transaction after manual review.
func (r *Repository) UpdateCategory(ctx context.Context, id uuid.UUID, category string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions SET category = $2 WHERE id = $1`, id, category)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MonthlySummary aggregates income and expenses per calendar month, oldest
// first, over the trailing N months.
func (r *Repository) MonthlySummary(ctx context.Context, accountID *uuid.UUID, months int) ([]MonthSummary, error) {
	if months <= 0 {
		months = 6
	}
	query := `
		SELECT to_char(date_trunc('month', txn_date), 'YYYY-MM') AS month,
		       COALESCE(SUM(amount_cents) FILTER (WHERE txn_type = 'income'), 0),
		       COALESCE(SUM(amount_cents) FILTER (WHERE txn_type = 'expense'), 0)
		FROM transactions
		WHERE txn_date >= date_trunc('month', now()) - make_interval(months => $1 - 1)
		  AND ($2::uuid IS NULL OR account_id = $2)
		GROUP BY 1
		ORDER BY 1
	`
	rows, err := r.db.Query(ctx, query, months, accountID)
	if err != nil {
		return nil, fmt.Errorf("monthly summary: %w", err)
	}
	defer rows.Close()

	var summaries []MonthSummary
	for rows.Next() {
		var s MonthSummary
		if err := rows.Scan(&s.Month, &s.IncomeCents, &s.ExpenseCents); err != nil {
			return nil, fmt.Errorf("scan monthly summary: %w", err)
		}
		s.NetCents = s.IncomeCents + s.ExpenseCents
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// CategoryTotals aggregates per-category totals inside a date range.
func (r *Repository) CategoryTotals(ctx context.Context, accountID *uuid.UUID, from, to time.Time) ([]CategoryTotal, error) {
	query := `
		SELECT category, txn_type, COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM transactions
		WHERE txn_date >= $1 AND txn_date <= $2
		  AND ($3::uuid IS NULL OR account_id = $3)
		GROUP BY category, txn_type
		ORDER BY SUM(amount_cents) ASC
	`
	rows, err := r.db.Query(ctx, query, from, to, accountID)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Category, &t.Type, &t.TotalCents, &t.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// CreateAccount inserts a bank account and fills in its ID.
func (r *Repository) CreateAccount(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO bank_accounts (name, institution, currency_code, pluggy_account_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRow(ctx, query, a.Name, a.Institution, a.CurrencyCode, a.PluggyAccountID).
		Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount fetches one account.
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `
		SELECT id, name, institution, currency_code, pluggy_account_id, last_synced_at, created_at
		FROM bank_accounts
		WHERE id = $1
	`
	a := &Account{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.Institution, &a.CurrencyCode, &a.PluggyAccountID, &a.LastSyncedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetAccountByPluggyID resolves the local account connected to a Pluggy
// account, if any.
func (r *Repository) GetAccountByPluggyID(ctx context.Context, pluggyAccountID string) (*Account, error) {
	query := `
		SELECT id, name, institution, currency_code, pluggy_account_id, last_synced_at, created_at
		FROM bank_accounts
		WHERE pluggy_account_id = $1
	`
	a := &Account{}
	err := r.db.QueryRow(ctx, query, pluggyAccountID).Scan(
		&a.ID, &a.Name, &a.Institution, &a.CurrencyCode, &a.PluggyAccountID, &a.LastSyncedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by pluggy id: %w", err)
	}
	return a, nil
}

// ListAccounts returns every account, oldest first.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	query := `
		SELECT id, name, institution, currency_code, pluggy_account_id, last_synced_at, created_at
		FROM bank_accounts
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Institution, &a.CurrencyCode, &a.PluggyAccountID, &a.LastSyncedAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// TouchAccountSync stamps the account's last successful sync time.
func (r *Repository) TouchAccountSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE bank_accounts SET last_synced_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch account sync: %w", err)
	}
	return nil
}
