// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package ledger

import (
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	// Error is the default ledger errs class.
	Error = errs.Class("ledger error")

	// ErrNotPurchasedSpace is returned when an account has no space record.
	ErrNotPurchasedSpace = errs.Class("space not purchased")

	// ErrInsufficientStorage is returned when a reservation exceeds the
	// account's remaining capacity.
	ErrInsufficientStorage = errs.Class("insufficient storage")

	// ErrLeaseExpired is returned when an operation requires a currently
	// valid lease and the account's totals indicate expiry.
	ErrLeaseExpired = errs.Class("lease expired")

	// ErrExceedExpectations is returned when the current unit price is
	// above the buyer's stated maximum.
	ErrExceedExpectations = errs.Class("price exceeds expectation")

	// ErrAlreadyReceived is returned when an account claims the free
	// grant twice.
	ErrAlreadyReceived = errs.Class("free space already received")

	mon = monkit.Package()
)
