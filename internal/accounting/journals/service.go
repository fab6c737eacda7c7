package journals

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/accounting/accounts"
	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/shared"
)

// RatePort answers conversion-rate lookups for base translation.
type RatePort interface {
	RateFor(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error)
}

// MetricsPort records journal counters.
type MetricsPort interface {
	JournalPosted(source string)
	JournalCancelled()
}

// Service owns the journal entry lifecycle: Draft -> Posted, or
// Draft -> Cancelled. Posted entries never change; they are undone by
// reversing entries.
type Service struct {
	repo         Repository
	ratePort     RatePort
	auditor      *audit.Interceptor
	metrics      MetricsPort
	baseCurrency string
	now          func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, ratePort RatePort, auditor *audit.Interceptor, metrics MetricsPort, baseCurrency string) *Service {
	return &Service{
		repo:         repo,
		ratePort:     ratePort,
		auditor:      auditor,
		metrics:      metrics,
		baseCurrency: baseCurrency,
		now:          time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns entries without lines.
func (s *Service) List(ctx context.Context) ([]JournalEntry, error) {
	return s.repo.List(ctx)
}

// Get returns one entry with its lines.
func (s *Service) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.GetWithLines(ctx, entryID)
}

// CreateDraft validates line shape and the balance invariant, translates
// amounts to base currency, and persists the entry as a Draft. An entry
// that fails the balance check is never persisted.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if input.Currency == "" {
		input.Currency = s.baseCurrency
	}
	if input.Date.IsZero() {
		input.Date = s.now().UTC()
	}
	rate, err := s.ratePort.RateFor(ctx, input.Currency, s.baseCurrency, input.Date)
	if err != nil {
		return JournalEntry{}, err
	}
	lines := make([]JournalLine, 0, len(input.Lines))
	for _, in := range input.Lines {
		lines = append(lines, JournalLine{
			AccountID:   in.AccountID,
			Debit:       shared.Round2(in.Debit),
			Credit:      shared.Round2(in.Credit),
			BaseDebit:   shared.Round2(in.Debit.Mul(rate)),
			BaseCredit:  shared.Round2(in.Credit.Mul(rate)),
			Description: in.Description,
		})
	}
	if err := checkBalanced(lines); err != nil {
		return JournalEntry{}, err
	}
	entry := JournalEntry{
		Date:               input.Date,
		Description:        input.Description,
		Reference:          input.Reference,
		SourceModule:       input.SourceModule,
		Currency:           input.Currency,
		ExchangeRateToBase: rate,
		Status:             JournalStatusDraft,
		CreatedBy:          input.CreatedBy,
	}
	var created JournalEntry
	err = s.auditor.Create(ctx, "journal_entry", func(ctx context.Context) (string, any, error) {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inserted, err := tx.InsertEntry(ctx, entry)
			if err != nil {
				return err
			}
			if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
				return err
			}
			inserted.Lines = lines
			created = inserted
			return nil
		})
		if err != nil {
			return "", nil, err
		}
		return strconv.FormatInt(created.ID, 10), created, nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return created, nil
}

// Post atomically applies every line to its account and flips the entry to
// Posted. The balance invariant is re-validated first: a Draft may have
// drifted since creation. All effects share one transaction; a failure at
// any point leaves no balance touched and the entry still Draft.
func (s *Service) Post(ctx context.Context, entryID int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("accounting: entry id required")
	}
	var posted JournalEntry
	err := s.auditor.Update(ctx, "journal_entry", strconv.FormatInt(entryID, 10),
		func(ctx context.Context) (any, error) {
			return s.repo.GetWithLines(ctx, entryID)
		},
		func(ctx context.Context) (any, error) {
			err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				entry, err := tx.GetEntryForUpdate(ctx, entryID)
				if err != nil {
					return err
				}
				if entry.Status != JournalStatusDraft {
					return fmt.Errorf("%w: %s is terminal", accshared.ErrInvalidStatus, entry.Status)
				}
				lines, err := tx.GetLines(ctx, entryID)
				if err != nil {
					return err
				}
				if err := checkBalanced(lines); err != nil {
					return err
				}
				for _, line := range lines {
					if err := applyLine(ctx, tx, line); err != nil {
						return err
					}
				}
				now := s.now().UTC()
				if err := tx.UpdateStatus(ctx, entryID, JournalStatusPosted, &now); err != nil {
					return err
				}
				entry.Status = JournalStatusPosted
				entry.PostedAt = &now
				entry.Lines = lines
				posted = entry
				return nil
			})
			if err != nil {
				return nil, err
			}
			return posted, nil
		})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.metrics != nil {
		s.metrics.JournalPosted(posted.SourceModule)
	}
	return posted, nil
}

// applyLine adjusts one account under the row lock taken by the posting
// transaction. Direction comes from the account type's normal side.
func applyLine(ctx context.Context, tx TxRepository, line JournalLine) error {
	account, err := tx.GetAccountForUpdate(ctx, line.AccountID)
	if err != nil {
		return err
	}
	if account.Status != accounts.AccountStatusActive {
		return fmt.Errorf("%w: account %s", accshared.ErrAccountInactive, account.Code)
	}
	next := account.Balance
	if line.Debit.Sign() > 0 {
		next = account.DebitApplied(line.Debit)
	} else {
		next = account.CreditApplied(line.Credit)
	}
	return tx.UpdateAccountBalance(ctx, line.AccountID, shared.Round2(next))
}

// Cancel transitions a Draft to Cancelled. Posted entries are rejected;
// the ledger stays append-only.
func (s *Service) Cancel(ctx context.Context, entryID int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("accounting: entry id required")
	}
	var cancelled JournalEntry
	err := s.auditor.Update(ctx, "journal_entry", strconv.FormatInt(entryID, 10),
		func(ctx context.Context) (any, error) {
			return s.repo.GetWithLines(ctx, entryID)
		},
		func(ctx context.Context) (any, error) {
			err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				entry, err := tx.GetEntryForUpdate(ctx, entryID)
				if err != nil {
					return err
				}
				switch entry.Status {
				case JournalStatusDraft:
				case JournalStatusPosted:
					return accshared.ErrCannotCancelPostedEntry
				default:
					return fmt.Errorf("%w: %s is terminal", accshared.ErrInvalidStatus, entry.Status)
				}
				if err := tx.UpdateStatus(ctx, entryID, JournalStatusCancelled, nil); err != nil {
					return err
				}
				entry.Status = JournalStatusCancelled
				cancelled = entry
				return nil
			})
			if err != nil {
				return nil, err
			}
			return cancelled, nil
		})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.metrics != nil {
		s.metrics.JournalCancelled()
	}
	return cancelled, nil
}

// CreateReversal builds and posts a new entry with debits and credits
// swapped, undoing a Posted entry without touching it. The original's
// exchange rate is reused so base amounts reverse exactly.
func (s *Service) CreateReversal(ctx context.Context, entryID int64, memo string, actorID int64) (JournalEntry, error) {
	original, err := s.repo.GetWithLines(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if original.Status != JournalStatusPosted {
		return JournalEntry{}, fmt.Errorf("%w: only posted entries reverse", accshared.ErrInvalidStatus)
	}
	reversal := JournalEntry{
		Date:               s.now().UTC(),
		Description:        defaultReversalMemo(memo, original.ID),
		Reference:          fmt.Sprintf("REV-%d", original.ID),
		SourceModule:       original.SourceModule + ":REVERSAL",
		Currency:           original.Currency,
		ExchangeRateToBase: original.ExchangeRateToBase,
		Status:             JournalStatusDraft,
		CreatedBy:          actorID,
	}
	lines := reverseLines(original.Lines)
	var draft JournalEntry
	err = s.auditor.Create(ctx, "journal_entry", func(ctx context.Context) (string, any, error) {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inserted, err := tx.InsertEntry(ctx, reversal)
			if err != nil {
				return err
			}
			if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
				return err
			}
			inserted.Lines = lines
			draft = inserted
			return nil
		})
		if err != nil {
			return "", nil, err
		}
		return strconv.FormatInt(draft.ID, 10), draft, nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return s.Post(ctx, draft.ID)
}

func reverseLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			BaseDebit:   line.BaseCredit,
			BaseCredit:  line.BaseDebit,
			Description: line.Description,
		})
	}
	return out
}

func defaultReversalMemo(memo string, originalID int64) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of JE %d", originalID)
}
