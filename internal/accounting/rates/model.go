package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate stores the conversion rate between two currencies effective from a
// given date. Lookups pick the latest rate effective on or before the query
// date.
type Rate struct {
	ID            int64
	FromCurrency  string
	ToCurrency    string
	Rate          decimal.Decimal
	EffectiveDate time.Time
	CreatedAt     time.Time
}
