// Package balances implements the reservable currency collaborator that
// creature deposits are charged against. Accounts live in the ledger store, so
// a reservation rolls back with the transaction that made it.
package balances

import (
	"fmt"
	"math"

	"ledgercore/internal/storage"
	"ledgercore/pkg/domain"
)

// TableAccounts stores free and reserved balances per account.
const TableAccounts domain.Table = "balances.accounts"

var _ domain.Currency = (*Ledger)(nil)

// Ledger is the balances module.
type Ledger struct {
	accounts storage.Map[domain.AccountID, domain.Account]
}

// NewLedger constructs the balances module.
func NewLedger() *Ledger {
	return &Ledger{
		accounts: storage.NewMap[domain.AccountID, domain.Account](TableAccounts, storage.StringKey[domain.AccountID]{}),
	}
}

// Tables lists the tables owned by the module.
func (l *Ledger) Tables() []domain.Table {
	return []domain.Table{TableAccounts}
}

// Account returns the balances of who. Unknown accounts read as empty.
func (l *Ledger) Account(r domain.KVReader, who domain.AccountID) (domain.Account, error) {
	account, _, err := l.accounts.Get(r, who)
	return account, err
}

// Endow credits amount to the free balance of who.
func (l *Ledger) Endow(tx domain.Transaction, who domain.AccountID, amount domain.Balance) error {
	if who == "" {
		return domain.ErrEmptyAccountID
	}
	before, err := l.Account(tx, who)
	if err != nil {
		return err
	}
	if before.Free > math.MaxUint64-amount {
		return fmt.Errorf("endow %s: %w", who, domain.ErrBalanceOverflow)
	}
	after := before
	after.Free += amount
	return l.write(tx, who, before, after)
}

// Reserve moves amount from the free to the reserved balance of who.
func (l *Ledger) Reserve(tx domain.Transaction, who domain.AccountID, amount domain.Balance) error {
	before, err := l.Account(tx, who)
	if err != nil {
		return err
	}
	if before.Free < amount {
		return domain.ErrInsufficientFunds
	}
	if before.Reserved > math.MaxUint64-amount {
		return fmt.Errorf("reserve %s: %w", who, domain.ErrBalanceOverflow)
	}
	after := domain.Account{Free: before.Free - amount, Reserved: before.Reserved + amount}
	return l.write(tx, who, before, after)
}

func (l *Ledger) write(tx domain.Transaction, who domain.AccountID, before, after domain.Account) error {
	if err := l.accounts.Put(tx, who, after); err != nil {
		return err
	}
	tx.RecordChange(domain.Change{
		Entity: domain.EntityBalance,
		Action: domain.ActionUpdate,
		Before: domain.AccountChange{Who: who, Account: before},
		After:  domain.AccountChange{Who: who, Account: after},
	})
	return nil
}
