package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountStatus enumerates account lifecycle values.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
)

// Side identifies which posting side grows an account.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// normalSides drives the sign convention for every balance mutation. The
// journal engine applies lines uniformly; the table, not the call sites,
// decides direction.
var normalSides = map[AccountType]Side{
	AccountTypeAsset:     SideDebit,
	AccountTypeExpense:   SideDebit,
	AccountTypeLiability: SideCredit,
	AccountTypeEquity:    SideCredit,
	AccountTypeRevenue:   SideCredit,
}

// NormalSide returns the side on which the given account type increases.
func NormalSide(t AccountType) Side {
	return normalSides[t]
}

// Account models a chart of accounts node. Balance is derived state: only
// debit/credit application mutates it, never direct assignment.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	Currency  string
	ParentID  *int64
	Balance   decimal.Decimal
	Status    AccountStatus
	IsSystem  bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DebitApplied returns the balance after a debit of amount.
func (a Account) DebitApplied(amount decimal.Decimal) decimal.Decimal {
	if NormalSide(a.Type) == SideDebit {
		return a.Balance.Add(amount)
	}
	return a.Balance.Sub(amount)
}

// CreditApplied returns the balance after a credit of amount.
func (a Account) CreditApplied(amount decimal.Decimal) decimal.Decimal {
	if NormalSide(a.Type) == SideCredit {
		return a.Balance.Add(amount)
	}
	return a.Balance.Sub(amount)
}

// TreeNode is one node of the parent->children forest.
type TreeNode struct {
	Account  Account
	Children []*TreeNode
}

// CreateInput describes a new account.
type CreateInput struct {
	Code     string
	Name     string
	Type     AccountType
	Currency string
	ParentID *int64
	IsSystem bool
}
