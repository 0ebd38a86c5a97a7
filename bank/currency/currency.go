// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package currency defines the currency collaborator the accounting core
// charges through. The core only consumes this interface; transfer
// mechanics live outside of it.
package currency

import (
	"context"

	"github.com/zeebo/errs"

	"filebank.io/filebank/bank"
)

// ErrInsufficientFunds is returned when an account cannot cover a
// transfer or reservation.
var ErrInsufficientFunds = errs.Class("insufficient funds")

// Currency moves and reserves balances between accounts.
type Currency interface {
	// Transfer moves amount from one account to another.
	Transfer(ctx context.Context, from, to bank.Account, amount uint64) error
	// Reserve locks amount on the account so it cannot be spent.
	Reserve(ctx context.Context, acct bank.Account, amount uint64) error
	// Unreserve releases a previously reserved amount.
	Unreserve(ctx context.Context, acct bank.Account, amount uint64) error
}
