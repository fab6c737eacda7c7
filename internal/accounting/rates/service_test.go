package rates

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
)

type memoryRepository struct {
	nextID int64
	rates  []Rate
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{nextID: 1}
}

func (m *memoryRepository) Insert(_ context.Context, rate Rate) (Rate, error) {
	rate.ID = m.nextID
	m.nextID++
	m.rates = append(m.rates, rate)
	return rate, nil
}

func (m *memoryRepository) Lookup(_ context.Context, from, to string, asOf time.Time) (Rate, error) {
	var best *Rate
	for i := range m.rates {
		rate := m.rates[i]
		if rate.FromCurrency != from || rate.ToCurrency != to || rate.EffectiveDate.After(asOf) {
			continue
		}
		if best == nil ||
			rate.EffectiveDate.After(best.EffectiveDate) ||
			(rate.EffectiveDate.Equal(best.EffectiveDate) && rate.ID > best.ID) {
			best = &m.rates[i]
		}
	}
	if best == nil {
		return Rate{}, accshared.ErrRateNotFound
	}
	return *best, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedRate(t *testing.T, svc *Service, from, to, rate, effective string) {
	t.Helper()
	_, err := svc.Put(context.Background(), from, to, decimal.RequireFromString(rate), day(effective))
	require.NoError(t, err)
}

func TestRateForIdenticalPairIsOne(t *testing.T) {
	svc := NewService(newMemoryRepository(), nil)

	rate, err := svc.RateFor(context.Background(), "USD", "USD", day("2025-03-01"))
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestRateForPicksLatestEffectiveRate(t *testing.T) {
	svc := NewService(newMemoryRepository(), nil)
	seedRate(t, svc, "EUR", "USD", "1.05", "2025-01-01")
	seedRate(t, svc, "EUR", "USD", "1.10", "2025-02-01")
	seedRate(t, svc, "EUR", "USD", "1.20", "2025-04-01")

	rate, err := svc.RateFor(context.Background(), "EUR", "USD", day("2025-03-01"))
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("1.10")), "got %s", rate)
}

func TestRateForSameDayLatestInsertWins(t *testing.T) {
	svc := NewService(newMemoryRepository(), nil)
	seedRate(t, svc, "EUR", "USD", "1.05", "2025-02-01")
	seedRate(t, svc, "EUR", "USD", "1.07", "2025-02-01")

	rate, err := svc.RateFor(context.Background(), "EUR", "USD", day("2025-02-01"))
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("1.07")), "got %s", rate)
}

func TestRateForMissingPairFails(t *testing.T) {
	svc := NewService(newMemoryRepository(), nil)
	seedRate(t, svc, "EUR", "USD", "1.10", "2025-02-01")

	_, err := svc.RateFor(context.Background(), "GBP", "USD", day("2025-03-01"))
	require.ErrorIs(t, err, accshared.ErrRateNotFound)

	// A rate effective only after the query date does not apply either.
	_, err = svc.RateFor(context.Background(), "EUR", "USD", day("2025-01-15"))
	require.ErrorIs(t, err, accshared.ErrRateNotFound)
}

func TestConvertRoundsHalfUp(t *testing.T) {
	svc := NewService(newMemoryRepository(), nil)
	seedRate(t, svc, "EUR", "USD", "1.005", "2025-01-01")

	// 10.10 * 1.005 = 10.1505 -> 10.15
	got, err := svc.Convert(context.Background(), decimal.RequireFromString("10.10"), "EUR", "USD", day("2025-02-01"))
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("10.15")), "got %s", got)

	// 10.50 * 1.005 = 10.5525 -> 10.55
	got, err = svc.Convert(context.Background(), decimal.RequireFromString("10.50"), "EUR", "USD", day("2025-02-01"))
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("10.55")), "got %s", got)
}

func TestConvertIdenticalPairPassesAmountThrough(t *testing.T) {
	svc := NewService(newMemoryRepository(), nil)

	amount := decimal.RequireFromString("123.456")
	got, err := svc.Convert(context.Background(), amount, "USD", "USD", day("2025-02-01"))
	require.NoError(t, err)
	require.True(t, got.Equal(amount))
}

func TestPutValidatesInput(t *testing.T) {
	svc := NewService(newMemoryRepository(), nil)

	_, err := svc.Put(context.Background(), "USD", "USD", decimal.NewFromInt(1), day("2025-01-01"))
	require.Error(t, err)

	_, err = svc.Put(context.Background(), "EUR", "USD", decimal.Zero, day("2025-01-01"))
	require.Error(t, err)

	_, err = svc.Put(context.Background(), "", "USD", decimal.NewFromInt(1), day("2025-01-01"))
	require.Error(t, err)
}

type recordingCache struct {
	fetches     int
	invalidated [][2]string
	stored      map[string]decimal.Decimal
}

func (c *recordingCache) Fetch(ctx context.Context, from, to string, asOf time.Time, load func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	c.fetches++
	key := from + "/" + to + "/" + asOf.Format("2006-01-02")
	if cached, ok := c.stored[key]; ok {
		return cached, nil
	}
	rate, err := load(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if c.stored == nil {
		c.stored = map[string]decimal.Decimal{}
	}
	c.stored[key] = rate
	return rate, nil
}

func (c *recordingCache) Invalidate(_ context.Context, from, to string) error {
	c.invalidated = append(c.invalidated, [2]string{from, to})
	c.stored = nil
	return nil
}

func TestPutInvalidatesCachedPair(t *testing.T) {
	cache := &recordingCache{}
	svc := NewService(newMemoryRepository(), cache)
	seedRate(t, svc, "EUR", "USD", "1.10", "2025-01-01")

	rate, err := svc.RateFor(context.Background(), "EUR", "USD", day("2025-02-01"))
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("1.10")))

	seedRate(t, svc, "EUR", "USD", "1.20", "2025-01-15")
	require.Equal(t, [][2]string{{"EUR", "USD"}, {"EUR", "USD"}}, cache.invalidated)

	rate, err = svc.RateFor(context.Background(), "EUR", "USD", day("2025-02-01"))
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("1.20")), "got %s", rate)
}

func TestRateForIdenticalPairSkipsCache(t *testing.T) {
	cache := &recordingCache{}
	svc := NewService(newMemoryRepository(), cache)

	_, err := svc.RateFor(context.Background(), "USD", "USD", day("2025-02-01"))
	require.NoError(t, err)
	require.Zero(t, cache.fetches)
}
