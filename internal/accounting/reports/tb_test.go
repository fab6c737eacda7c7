package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/accounting/accounts"
	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildTrialBalanceGroupsByCodePrefix(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	activity := []AccountActivity{
		{AccountID: 1, Code: "1000", Name: "Cash", Type: "ASSET", Debit: amt("500"), Credit: amt("0")},
		{AccountID: 2, Code: "1200", Name: "Receivable", Type: "ASSET", Debit: amt("300"), Credit: amt("100")},
		{AccountID: 3, Code: "4000", Name: "Revenue", Type: "REVENUE", Debit: amt("0"), Credit: amt("700")},
	}

	tb := BuildTrialBalance(asOf, activity)
	require.Equal(t, asOf, tb.AsOf)
	require.Len(t, tb.Groups, 2)
	require.Equal(t, "10", tb.Groups[0].Key)
	require.Len(t, tb.Groups[0].Rows, 2)
	require.True(t, tb.Groups[0].Debit.Equal(amt("800")))
	require.Equal(t, "40", tb.Groups[1].Key)

	require.True(t, tb.TotalDebit.Equal(amt("800")))
	require.True(t, tb.TotalCredit.Equal(amt("800")))
	require.True(t, tb.Balanced())
}

func TestBuildTrialBalanceDetectsImbalance(t *testing.T) {
	tb := BuildTrialBalance(time.Now(), []AccountActivity{
		{Code: "1000", Debit: amt("500")},
		{Code: "4000", Credit: amt("400")},
	})
	require.False(t, tb.Balanced())
}

func TestGroupKey(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"1000", "10"},
		{"1000.01", "1000"},
		{"9", "9"},
	}
	for _, tc := range cases {
		a := AccountActivity{Code: tc.code}
		require.Equal(t, tc.want, a.GroupKey(), "code %s", tc.code)
	}
}

type memoryReportRepo struct {
	activity []AccountActivity
	debit    decimal.Decimal
	credit   decimal.Decimal
}

func (m *memoryReportRepo) AccountActivity(_ context.Context, _ time.Time) ([]AccountActivity, error) {
	return m.activity, nil
}

func (m *memoryReportRepo) AccountBalanceAsOf(_ context.Context, _ int64, _ time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return m.debit, m.credit, nil
}

type accountPort map[int64]accounts.Account

func (p accountPort) Get(_ context.Context, id int64) (accounts.Account, error) {
	account, ok := p[id]
	if !ok {
		return accounts.Account{}, accshared.ErrAccountNotFound
	}
	return account, nil
}

func TestAccountBalanceAsOfOrientsToNormalSide(t *testing.T) {
	repo := &memoryReportRepo{debit: amt("300"), credit: amt("100")}
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	svc := NewService(repo, accountPort{1: {ID: 1, Type: accounts.AccountTypeAsset}})
	balance, err := svc.AccountBalanceAsOf(context.Background(), 1, asOf)
	require.NoError(t, err)
	require.True(t, balance.Equal(amt("200")), "asset: debit - credit, got %s", balance)

	svc = NewService(repo, accountPort{1: {ID: 1, Type: accounts.AccountTypeRevenue}})
	balance, err = svc.AccountBalanceAsOf(context.Background(), 1, asOf)
	require.NoError(t, err)
	require.True(t, balance.Equal(amt("-200")), "revenue: credit - debit, got %s", balance)
}

type entryRow struct {
	status string
	date   time.Time
}

type lineRow struct {
	entryID   int64
	accountID int64
	debit     decimal.Decimal
	credit    decimal.Decimal
}

// ledgerRepo aggregates lines the way the SQL repository must: a line
// counts only when its entry is POSTED with a date at or before asOf.
type ledgerRepo struct {
	accounts []AccountActivity
	entries  map[int64]entryRow
	lines    []lineRow
}

func (r *ledgerRepo) counts(l lineRow, asOf time.Time) bool {
	entry := r.entries[l.entryID]
	return entry.status == "POSTED" && !entry.date.After(asOf)
}

func (r *ledgerRepo) AccountActivity(_ context.Context, asOf time.Time) ([]AccountActivity, error) {
	out := append([]AccountActivity(nil), r.accounts...)
	for _, l := range r.lines {
		if !r.counts(l, asOf) {
			continue
		}
		for i := range out {
			if out[i].AccountID == l.accountID {
				out[i].Debit = out[i].Debit.Add(l.debit)
				out[i].Credit = out[i].Credit.Add(l.credit)
			}
		}
	}
	return out, nil
}

func (r *ledgerRepo) AccountBalanceAsOf(_ context.Context, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	for _, l := range r.lines {
		if l.accountID != accountID || !r.counts(l, asOf) {
			continue
		}
		debit = debit.Add(l.debit)
		credit = credit.Add(l.credit)
	}
	return debit, credit, nil
}

func TestTrialBalanceCountsOnlyPostedActivityThroughAsOf(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	repo := &ledgerRepo{
		accounts: []AccountActivity{
			{AccountID: 1, Code: "1000", Name: "Cash", Type: "ASSET"},
			{AccountID: 2, Code: "4000", Name: "Revenue", Type: "REVENUE"},
		},
		entries: map[int64]entryRow{
			1: {status: "POSTED", date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
			2: {status: "DRAFT", date: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
			3: {status: "CANCELLED", date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
			4: {status: "POSTED", date: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		},
		lines: []lineRow{
			{entryID: 1, accountID: 1, debit: amt("500")},
			{entryID: 1, accountID: 2, credit: amt("500")},
			{entryID: 2, accountID: 1, debit: amt("300")},
			{entryID: 2, accountID: 2, credit: amt("300")},
			{entryID: 3, accountID: 1, debit: amt("200")},
			{entryID: 3, accountID: 2, credit: amt("200")},
			{entryID: 4, accountID: 1, debit: amt("100")},
			{entryID: 4, accountID: 2, credit: amt("100")},
		},
	}

	svc := NewService(repo, accountPort{})
	tb, err := svc.TrialBalance(context.Background(), asOf)
	require.NoError(t, err)

	require.True(t, tb.TotalDebit.Equal(amt("500")), "drafts, cancellations and later postings excluded, got %s", tb.TotalDebit)
	require.True(t, tb.TotalCredit.Equal(amt("500")))
	require.True(t, tb.Balanced())
	require.Equal(t, "1000", tb.Groups[0].Rows[0].Code)
	require.True(t, tb.Groups[0].Rows[0].Debit.Equal(amt("500")))

	svc = NewService(repo, accountPort{1: {ID: 1, Type: accounts.AccountTypeAsset}})
	balance, err := svc.AccountBalanceAsOf(context.Background(), 1, asOf)
	require.NoError(t, err)
	require.True(t, balance.Equal(amt("500")), "got %s", balance)
}

func TestAccountBalanceAsOfUnknownAccount(t *testing.T) {
	svc := NewService(&memoryReportRepo{}, accountPort{})
	_, err := svc.AccountBalanceAsOf(context.Background(), 9, time.Now())
	require.ErrorIs(t, err, accshared.ErrAccountNotFound)
}
