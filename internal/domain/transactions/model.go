// Package transactions holds the persisted transaction model and the
// listing/cash-flow queries behind the dashboard.
package transactions

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates money in from money out.
type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

// Transaction is a persisted ledger row. Amounts are signed centavos:
// negative for expenses, positive for income. Rows are created once by an
// import or sync run and never mutated afterwards; deletion is an explicit
// user action.
type Transaction struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
	AmountCents   int64     `json:"amount_cents"`
	Type          Type      `json:"type"`
	Category      string    `json:"category"`
	PaymentMethod string    `json:"payment_method"`
	BankAccount   string    `json:"bank_account"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

// Account is a connected or manually created bank account.
type Account struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Institution     string     `json:"institution"`
	CurrencyCode    string     `json:"currency_code"`
	PluggyAccountID *string    `json:"pluggy_account_id,omitempty"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
