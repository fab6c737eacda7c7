package reports

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AccountActivity models a general ledger account with posted debit and
// credit totals in base currency.
type AccountActivity struct {
	AccountID int64
	Code      string
	Name      string
	Type      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// GroupKey returns a key used for grouping trial balance rows. Codes use a
// hierarchical dotted/prefix convention.
func (a AccountActivity) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// TrialBalanceRow is one account row in the trial balance.
type TrialBalanceRow struct {
	Code   string
	Name   string
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// TrialBalanceGroup aggregates rows for presentation.
type TrialBalanceGroup struct {
	Key    string
	Rows   []TrialBalanceRow
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// TrialBalance is the aggregate report. TotalDebit and TotalCredit must
// agree for a healthy ledger.
type TrialBalance struct {
	AsOf        time.Time
	Groups      []TrialBalanceGroup
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether posted debits equal posted credits.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// BuildTrialBalance converts account activity into grouped report data.
func BuildTrialBalance(asOf time.Time, activity []AccountActivity) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range activity {
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceRow{Code: acc.Code, Name: acc.Name, Debit: acc.Debit, Credit: acc.Credit}
		grp.Rows = append(grp.Rows, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	sort.Strings(keys)
	result := TrialBalance{AsOf: asOf}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Rows, func(i, j int) bool {
			return grp.Rows[i].Code < grp.Rows[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}

// Repository reads report data. Reports are read-only; snapshot consistency
// from the store is the only concurrency requirement.
type Repository interface {
	AccountActivity(ctx context.Context, asOf time.Time) ([]AccountActivity, error)
	AccountBalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) AccountActivity(ctx context.Context, asOf time.Time) ([]AccountActivity, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
COALESCE(p.debit, 0)::text, COALESCE(p.credit, 0)::text
FROM accounts a
LEFT JOIN (
	SELECT l.account_id, SUM(l.base_debit) AS debit, SUM(l.base_credit) AS credit
	FROM journal_lines l
	JOIN journal_entries e ON e.id = l.je_id
	WHERE e.status = 'POSTED' AND e.date <= $1
	GROUP BY l.account_id
) p ON p.account_id = a.id
ORDER BY a.code ASC`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountActivity
	for rows.Next() {
		var a AccountActivity
		var debit, credit string
		if err := rows.Scan(&a.AccountID, &a.Code, &a.Name, &a.Type, &debit, &credit); err != nil {
			return nil, err
		}
		if a.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if a.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) AccountBalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	row := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.base_debit), 0)::text, COALESCE(SUM(l.base_credit), 0)::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.je_id
WHERE l.account_id = $1 AND e.status = 'POSTED' AND e.date <= $2`, accountID, asOf)
	var debit, credit string
	if err := row.Scan(&debit, &credit); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	d, err := decimal.NewFromString(debit)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	c, err := decimal.NewFromString(credit)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return d, c, nil
}
