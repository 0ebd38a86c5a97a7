// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package currency

import (
	"context"
	"sync"

	"filebank.io/filebank/bank"
	"filebank.io/filebank/internal/checked"
)

// Ledger is an in-memory Currency used by tests and single-process runs.
type Ledger struct {
	mu       sync.Mutex
	balances map[bank.Account]uint64
	reserved map[bank.Account]uint64
}

// NewLedger creates an in-memory currency ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: map[bank.Account]uint64{},
		reserved: map[bank.Account]uint64{},
	}
}

// Mint credits amount to the account.
func (ledger *Ledger) Mint(acct bank.Account, amount uint64) {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	ledger.balances[acct] += amount
}

// Balance returns the spendable balance of the account.
func (ledger *Ledger) Balance(acct bank.Account) uint64 {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return ledger.balances[acct]
}

// Reserved returns the reserved balance of the account.
func (ledger *Ledger) Reserved(acct bank.Account) uint64 {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return ledger.reserved[acct]
}

// Transfer implements Currency.
func (ledger *Ledger) Transfer(ctx context.Context, from, to bank.Account, amount uint64) error {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	balance := ledger.balances[from]
	if balance < amount {
		return ErrInsufficientFunds.New("account %q has %d, needs %d", from, balance, amount)
	}
	credited, ok := checked.Add64(ledger.balances[to], amount)
	if !ok {
		return bank.ErrOverflow.New("crediting %q", to)
	}
	ledger.balances[from] = balance - amount
	ledger.balances[to] = credited
	return nil
}

// Reserve implements Currency.
func (ledger *Ledger) Reserve(ctx context.Context, acct bank.Account, amount uint64) error {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	balance := ledger.balances[acct]
	if balance < amount {
		return ErrInsufficientFunds.New("account %q has %d, needs %d", acct, balance, amount)
	}
	ledger.balances[acct] = balance - amount
	ledger.reserved[acct] += amount
	return nil
}

// Unreserve implements Currency.
func (ledger *Ledger) Unreserve(ctx context.Context, acct bank.Account, amount uint64) error {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	if ledger.reserved[acct] < amount {
		amount = ledger.reserved[acct]
	}
	ledger.reserved[acct] -= amount
	ledger.balances[acct] += amount
	return nil
}
