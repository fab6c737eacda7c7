package journals

import (
	"time"

	"github.com/shopspring/decimal"

	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
	"github.com/meridian-erp/meridian/internal/shared"
)

// JournalStatus enumerates journal lifecycle values. Posted and Cancelled
// are terminal: a posted entry is only ever undone by a reversing entry.
type JournalStatus string

const (
	JournalStatusDraft     JournalStatus = "DRAFT"
	JournalStatusPosted    JournalStatus = "POSTED"
	JournalStatusCancelled JournalStatus = "CANCELLED"
)

// JournalEntry captures posting metadata. Base amounts on the lines are the
// entry amounts translated at ExchangeRateToBase.
type JournalEntry struct {
	ID                 int64
	Date               time.Time
	Description        string
	Reference          string
	SourceModule       string
	Currency           string
	ExchangeRateToBase decimal.Decimal
	Status             JournalStatus
	PostedAt           *time.Time
	CreatedBy          int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Lines              []JournalLine
}

// JournalLine stores a debit or credit amount for an account, in both the
// entry currency and the base currency. Exactly one of Debit/Credit is
// non-zero.
type JournalLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	BaseDebit   decimal.Decimal
	BaseCredit  decimal.Decimal
	Description string
}

// LineInput describes one requested line.
type LineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// DraftInput describes a requested journal entry.
type DraftInput struct {
	Date         time.Time
	Description  string
	Reference    string
	SourceModule string
	Currency     string
	CreatedBy    int64
	Lines        []LineInput
}

// Validate checks line shape: at least two lines, each carrying exactly one
// positive amount.
func (in DraftInput) Validate() error {
	if len(in.Lines) < 2 {
		return accshared.ErrTooFewLines
	}
	for _, line := range in.Lines {
		if line.AccountID == 0 {
			return accshared.ErrInvalidLine
		}
		if line.Debit.Sign() < 0 || line.Credit.Sign() < 0 {
			return accshared.ErrInvalidLine
		}
		hasDebit := line.Debit.Sign() > 0
		hasCredit := line.Credit.Sign() > 0
		if hasDebit == hasCredit {
			return accshared.ErrInvalidLine
		}
	}
	return nil
}

// checkBalanced verifies the double-entry invariant in both the entry
// currency and the base currency, within the shared epsilon.
func checkBalanced(lines []JournalLine) error {
	var debits, credits, baseDebits, baseCredits decimal.Decimal
	for _, line := range lines {
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
		baseDebits = baseDebits.Add(line.BaseDebit)
		baseCredits = baseCredits.Add(line.BaseCredit)
	}
	if !shared.WithinEpsilon(debits, credits) {
		return accshared.ErrUnbalancedEntry
	}
	if !shared.WithinEpsilon(baseDebits, baseCredits) {
		return accshared.ErrUnbalancedEntry
	}
	return nil
}
