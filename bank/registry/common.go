// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package registry

import (
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	// Error is the default registry errs class.
	Error = errs.Class("registry error")

	// ErrFileExists is returned when uploading an already used file id.
	ErrFileExists = errs.Class("file already exists")

	// ErrFileNotFound is returned when the file id has no record.
	ErrFileNotFound = errs.Class("file does not exist")

	// ErrNotOwner is returned when a caller tries to delete a file it
	// does not own.
	ErrNotOwner = errs.Class("not the file owner")

	// ErrAlreadyRepairing is returned on a repairing to repairing state
	// transition, to prevent duplicate repair scheduling.
	ErrAlreadyRepairing = errs.Class("file already repairing")

	// ErrNotUser is returned when a delegated operation names an
	// unregistered user.
	ErrNotUser = errs.Class("not a registered user")

	mon = monkit.Package()
)
