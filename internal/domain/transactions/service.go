package transactions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caixafacil/caixafacil/pkg/money"
)

// Repo is the persistence surface the service depends on.
type Repo interface {
	List(ctx context.Context, filter ListFilter) ([]Transaction, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateCategory(ctx context.Context, id uuid.UUID, category string) error
	MonthlySummary(ctx context.Context, accountID *uuid.UUID, months int) ([]MonthSummary, error)
	CategoryTotals(ctx context.Context, accountID *uuid.UUID, from, to time.Time) ([]CategoryTotal, error)
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
}

// Summary is the dashboard cash-flow view: monthly history, totals, and a
// naive projection for the coming month.
type Summary struct {
	Months []MonthSummary `json:"months"`

	TotalIncomeCents  int64 `json:"total_income_cents"`
	TotalExpenseCents int64 `json:"total_expense_cents"`
	NetCents          int64 `json:"net_cents"`

	// Projection is the average net of the trailing months, shown as a
	// rough guide, not a forecast.
	ProjectedNetCents int64 `json:"projected_net_cents"`

	NetDisplay       string `json:"net_display"`
	ProjectedDisplay string `json:"projected_display"`

	Categories []CategoryTotal `json:"categories"`
}

// Service answers the dashboard queries over imported transactions.
type Service struct {
	repo          Repo
	logger        *slog.Logger
	validCategory func(category string) bool
}

func NewService(repo Repo, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// WithCategoryValidator restricts manual re-labeling to a known category
// vocabulary. Without it any non-empty label is accepted.
func (s *Service) WithCategoryValidator(valid func(category string) bool) *Service {
	s.validCategory = valid
	return s
}

// List returns transactions matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a transaction.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Recategorize assigns a category chosen by the user.
func (s *Service) Recategorize(ctx context.Context, id uuid.UUID, category string) error {
	if category == "" {
		return fmt.Errorf("category is required")
	}
	if s.validCategory != nil && !s.validCategory(category) {
		return fmt.Errorf("unknown category %q", category)
	}
	return s.repo.UpdateCategory(ctx, id, category)
}

// Summary builds the cash-flow summary over the trailing months.
func (s *Service) Summary(ctx context.Context, accountID *uuid.UUID, months int) (*Summary, error) {
	if months <= 0 {
		months = 6
	}

	monthly, err := s.repo.MonthlySummary(ctx, accountID, months)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Months: monthly}
	for _, m := range monthly {
		summary.TotalIncomeCents += m.IncomeCents
		summary.TotalExpenseCents += m.ExpenseCents
	}
	summary.NetCents = summary.TotalIncomeCents + summary.TotalExpenseCents
	summary.ProjectedNetCents = projectNet(monthly)

	summary.NetDisplay = money.New(summary.NetCents, money.BRL).Display()
	summary.ProjectedDisplay = money.New(summary.ProjectedNetCents, money.BRL).Display()

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	totals, err := s.repo.CategoryTotals(ctx, accountID, from, now)
	if err != nil {
		return nil, err
	}
	summary.Categories = totals

	return summary, nil
}

// projectNet averages the net of up to the last three months.
func projectNet(monthly []MonthSummary) int64 {
	if len(monthly) == 0 {
		return 0
	}
	window := monthly
	if len(window) > 3 {
		window = window[len(window)-3:]
	}
	var sum int64
	for _, m := range window {
		sum += m.NetCents
	}
	return sum / int64(len(window))
}

// CreateAccount registers a manually managed bank account.
func (s *Service) CreateAccount(ctx context.Context, name, institution string) (*Account, error) {
	if name == "" {
		return nil, fmt.Errorf("account name is required")
	}
	a := &Account{Name: name, Institution: institution, CurrencyCode: money.BRL}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("account created", "account_id", a.ID, "name", a.Name)
	return a, nil
}

// Account fetches one account.
func (s *Service) Account(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// Accounts lists every account.
func (s *Service) Accounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}
