package shared

import "errors"

var (
	// ErrUnbalancedEntry indicates debit != credit in entry or base currency.
	ErrUnbalancedEntry = errors.New("accounting: journal lines must balance")
	// ErrInvalidLine indicates a line with both or neither amount set.
	ErrInvalidLine = errors.New("accounting: line must carry exactly one of debit or credit")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrDuplicateCode indicates the account code already exists.
	ErrDuplicateCode = errors.New("accounting: account code already exists")
	// ErrTypeMismatch indicates a child account whose type differs from its parent.
	ErrTypeMismatch = errors.New("accounting: account type must match parent type")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrJournalNotFound indicates a missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrCannotCancelPostedEntry indicates cancel called on a posted entry.
	// Posted entries are undone with a reversing entry, never in place.
	ErrCannotCancelPostedEntry = errors.New("accounting: posted entry cannot be cancelled, create a reversal")
	// ErrInvalidStatus indicates an illegal state transition.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrRateNotFound indicates a missing exchange rate pair.
	ErrRateNotFound = errors.New("accounting: exchange rate not found")
	// ErrSystemAccount indicates a protected account.
	ErrSystemAccount = errors.New("accounting: system account is protected")
	// ErrAccountInactive indicates posting against a deactivated account.
	ErrAccountInactive = errors.New("accounting: account is inactive")
	// ErrMappingNotFound indicates a required default account mapping is absent.
	ErrMappingNotFound = errors.New("accounting: default account mapping not found")
)
