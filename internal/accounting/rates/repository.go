package rates

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
)

// Repository encapsulates DB operations for exchange rates.
type Repository interface {
	Insert(ctx context.Context, rate Rate) (Rate, error)
	// Lookup returns the latest rate with effective_date <= asOf for the pair.
	Lookup(ctx context.Context, from, to string, asOf time.Time) (Rate, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, rate Rate) (Rate, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO exchange_rates (from_currency, to_currency, rate, effective_date)
VALUES ($1,$2,$3,$4) RETURNING id, created_at`,
		rate.FromCurrency, rate.ToCurrency, rate.Rate.String(), rate.EffectiveDate)
	if err := row.Scan(&rate.ID, &rate.CreatedAt); err != nil {
		return Rate{}, err
	}
	return rate, nil
}

func (r *repository) Lookup(ctx context.Context, from, to string, asOf time.Time) (Rate, error) {
	row := r.db.QueryRow(ctx, `SELECT id, from_currency, to_currency, rate::text, effective_date, created_at
FROM exchange_rates WHERE from_currency=$1 AND to_currency=$2 AND effective_date <= $3
ORDER BY effective_date DESC, id DESC LIMIT 1`, from, to, asOf)
	var rate Rate
	var raw string
	err := row.Scan(&rate.ID, &rate.FromCurrency, &rate.ToCurrency, &raw, &rate.EffectiveDate, &rate.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rate{}, accshared.ErrRateNotFound
		}
		return Rate{}, err
	}
	rate.Rate, err = decimal.NewFromString(raw)
	if err != nil {
		return Rate{}, err
	}
	return rate, nil
}
