package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/shared"
)

// MetricsPort reports concurrency retries.
type MetricsPort interface {
	ConflictRetry()
}

// Service owns the chart of accounts and is the only writer of balances.
type Service struct {
	repo     Repository
	auditor  *audit.Interceptor
	metrics  MetricsPort
	attempts int
}

// NewService builds Service.
func NewService(repo Repository, auditor *audit.Interceptor, metrics MetricsPort) *Service {
	return &Service{repo: repo, auditor: auditor, metrics: metrics, attempts: shared.DefaultRetryAttempts}
}

// Create inserts a new account with a zero balance.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	if input.Code == "" || input.Name == "" {
		return Account{}, errors.New("accounting: code and name required")
	}
	if _, ok := normalSides[input.Type]; !ok {
		return Account{}, fmt.Errorf("accounting: unknown account type %q", input.Type)
	}
	if input.Currency == "" {
		return Account{}, errors.New("accounting: currency required")
	}
	if input.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *input.ParentID)
		if err != nil {
			return Account{}, err
		}
		if parent.Type != input.Type {
			return Account{}, accshared.ErrTypeMismatch
		}
	}
	var created Account
	err := s.auditor.Create(ctx, "account", func(ctx context.Context) (string, any, error) {
		inserted, err := s.repo.Insert(ctx, Account{
			Code:     input.Code,
			Name:     input.Name,
			Type:     input.Type,
			Currency: input.Currency,
			ParentID: input.ParentID,
			Status:   AccountStatusActive,
			IsSystem: input.IsSystem,
		})
		if err != nil {
			return "", nil, err
		}
		created = inserted
		return strconv.FormatInt(inserted.ID, 10), inserted, nil
	})
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCode fetches one account by its code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns all accounts ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// ApplyDebit adjusts the balance according to the account's normal side.
// Concurrent writers are detected via the version column and retried.
func (s *Service) ApplyDebit(ctx context.Context, accountID int64, amount decimal.Decimal) (Account, error) {
	return s.apply(ctx, accountID, amount, SideDebit)
}

// ApplyCredit adjusts the balance according to the account's normal side.
func (s *Service) ApplyCredit(ctx context.Context, accountID int64, amount decimal.Decimal) (Account, error) {
	return s.apply(ctx, accountID, amount, SideCredit)
}

func (s *Service) apply(ctx context.Context, accountID int64, amount decimal.Decimal, side Side) (Account, error) {
	if amount.Sign() < 0 {
		return Account{}, errors.New("accounting: amount must not be negative")
	}
	var result Account
	attempt := 0
	err := shared.RetryOnConflict(ctx, s.attempts, func(ctx context.Context) error {
		attempt++
		if attempt > 1 && s.metrics != nil {
			s.metrics.ConflictRetry()
		}
		account, err := s.repo.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		if account.Status != AccountStatusActive {
			return accshared.ErrAccountInactive
		}
		next := account.DebitApplied(amount)
		if side == SideCredit {
			next = account.CreditApplied(amount)
		}
		next = shared.Round2(next)
		if err := s.repo.UpdateBalance(ctx, account.ID, next, account.Version); err != nil {
			return err
		}
		account.Balance = next
		account.Version++
		result = account
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return result, nil
}

// Deactivate flips the account to inactive. Balances are untouched.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.auditor.Update(ctx, "account", strconv.FormatInt(id, 10),
		func(ctx context.Context) (any, error) {
			return s.repo.GetByID(ctx, id)
		},
		func(ctx context.Context) (any, error) {
			if err := s.repo.SetStatus(ctx, id, AccountStatusInactive); err != nil {
				return nil, err
			}
			return s.repo.GetByID(ctx, id)
		})
}

// Delete removes an account. System accounts are protected.
func (s *Service) Delete(ctx context.Context, id int64) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if account.IsSystem {
		return accshared.ErrSystemAccount
	}
	return s.auditor.Delete(ctx, "account", strconv.FormatInt(id, 10),
		func(ctx context.Context) (any, error) { return account, nil },
		func(ctx context.Context) error {
			return s.repo.Delete(ctx, id)
		})
}
