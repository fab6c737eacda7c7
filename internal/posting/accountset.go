package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-erp/meridian/internal/accounting/accounts"
	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
)

// AccountCodes names the GL accounts the poster needs, by chart code.
// These come from configuration; resolution happens once at startup.
type AccountCodes struct {
	Receivable string
	Revenue    string
	TaxPayable string
	Cash       string
	Inventory  string
	COGS       string
	Payable    string
}

// DefaultAccountSet is the resolved, typed mapping injected into the
// poster. A missing mapping is an explicit startup error, not a deferred
// string lookup at posting time.
type DefaultAccountSet struct {
	Receivable int64
	Revenue    int64
	TaxPayable int64
	Cash       int64
	Inventory  int64
	COGS       int64
	Payable    int64
}

// AccountLookup resolves chart codes to accounts.
type AccountLookup interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// ResolveAccountSet looks up every configured code. Any absent account
// fails resolution with the offending code named.
func ResolveAccountSet(ctx context.Context, lookup AccountLookup, codes AccountCodes) (DefaultAccountSet, error) {
	var set DefaultAccountSet
	for _, binding := range []struct {
		name string
		code string
		dst  *int64
	}{
		{"receivable", codes.Receivable, &set.Receivable},
		{"revenue", codes.Revenue, &set.Revenue},
		{"tax_payable", codes.TaxPayable, &set.TaxPayable},
		{"cash", codes.Cash, &set.Cash},
		{"inventory", codes.Inventory, &set.Inventory},
		{"cogs", codes.COGS, &set.COGS},
		{"payable", codes.Payable, &set.Payable},
	} {
		if binding.code == "" {
			return DefaultAccountSet{}, fmt.Errorf("%w: %s code not configured", accshared.ErrMappingNotFound, binding.name)
		}
		account, err := lookup.GetByCode(ctx, binding.code)
		if err != nil {
			if errors.Is(err, accshared.ErrAccountNotFound) {
				return DefaultAccountSet{}, fmt.Errorf("%w: %s (%s)", accshared.ErrMappingNotFound, binding.name, binding.code)
			}
			return DefaultAccountSet{}, err
		}
		*binding.dst = account.ID
	}
	return set, nil
}
