package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/accounting/accounts"
)

// AccountPort resolves accounts for sign-aware balance answers.
type AccountPort interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
}

// Service answers read-side reporting questions.
type Service struct {
	repo     Repository
	accounts AccountPort
}

// NewService builds Service.
func NewService(repo Repository, accountPort AccountPort) *Service {
	return &Service{repo: repo, accounts: accountPort}
}

// TrialBalance aggregates posted activity through asOf.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	activity, err := s.repo.AccountActivity(ctx, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(asOf, activity), nil
}

// AccountBalanceAsOf reconstructs an account's balance from posted lines
// through asOf, oriented to the account's normal side.
func (s *Service) AccountBalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	debit, credit, err := s.repo.AccountBalanceAsOf(ctx, accountID, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if accounts.NormalSide(account.Type) == accounts.SideDebit {
		return debit.Sub(credit), nil
	}
	return credit.Sub(debit), nil
}
