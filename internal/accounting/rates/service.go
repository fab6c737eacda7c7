package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
	"github.com/meridian-erp/meridian/internal/shared"
)

// CachePort collapses repeated lookups for the same pair/date. The cache is
// a value injected by the caller; there is no package-level state.
type CachePort interface {
	Fetch(ctx context.Context, from, to string, asOf time.Time, load func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error)
	Invalidate(ctx context.Context, from, to string) error
}

// Service answers currency conversion questions.
type Service struct {
	repo  Repository
	cache CachePort
}

// NewService builds Service. cache may be nil.
func NewService(repo Repository, cache CachePort) *Service {
	return &Service{repo: repo, cache: cache}
}

// RateFor returns the conversion rate from -> to effective at asOf. The
// identical pair is always 1. A missing pair is a hard data error: exchange
// rate gaps are an operational problem, never silently defaulted.
func (s *Service) RateFor(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == "" || to == "" {
		return decimal.Decimal{}, errors.New("accounting: currency codes required")
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	load := func(ctx context.Context) (decimal.Decimal, error) {
		rate, err := s.repo.Lookup(ctx, from, to, asOf)
		if err != nil {
			if errors.Is(err, accshared.ErrRateNotFound) {
				return decimal.Decimal{}, fmt.Errorf("%w: %s/%s as of %s", accshared.ErrRateNotFound, from, to, asOf.Format("2006-01-02"))
			}
			return decimal.Decimal{}, err
		}
		return rate.Rate, nil
	}
	if s.cache != nil {
		return s.cache.Fetch(ctx, from, to, asOf, load)
	}
	return load(ctx)
}

// Convert translates amount from one currency to another as of a date,
// rounded half up to two places.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, err := s.RateFor(ctx, from, to, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return shared.Round2(amount.Mul(rate)), nil
}

// Put records a new rate and invalidates cached lookups for the pair.
func (s *Service) Put(ctx context.Context, from, to string, rate decimal.Decimal, effectiveDate time.Time) (Rate, error) {
	if from == "" || to == "" {
		return Rate{}, errors.New("accounting: currency codes required")
	}
	if from == to {
		return Rate{}, errors.New("accounting: identical currency pair needs no rate")
	}
	if rate.Sign() <= 0 {
		return Rate{}, errors.New("accounting: rate must be positive")
	}
	inserted, err := s.repo.Insert(ctx, Rate{
		FromCurrency:  from,
		ToCurrency:    to,
		Rate:          rate,
		EffectiveDate: effectiveDate,
	})
	if err != nil {
		return Rate{}, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, from, to); err != nil {
			return inserted, fmt.Errorf("accounting: rate cached stale: %w", err)
		}
	}
	return inserted, nil
}
