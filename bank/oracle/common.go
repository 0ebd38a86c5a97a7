// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package oracle

import (
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	// Error is the default oracle errs class.
	Error = errs.Class("oracle error")

	// ErrFetch is returned when the remote price endpoint cannot be
	// fetched or returns an unusable response.
	ErrFetch = errs.Class("price fetch error")

	// ErrNoIdentity is returned when no local identity is available to
	// sign the price submission.
	ErrNoIdentity = errs.Class("no local identity for signing")

	// ErrSubmit is returned when the signed price submission fails.
	ErrSubmit = errs.Class("signed submission error")

	mon = monkit.Package()
)
