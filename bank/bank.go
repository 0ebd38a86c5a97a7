// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package bank contains the shared types of the storage accounting core.
package bank

import "github.com/zeebo/errs"

// ErrOverflow is returned when capacity or price arithmetic overflows.
// Operations that fail with it leave all state unchanged.
var ErrOverflow = errs.Class("arithmetic overflow")

// Account identifies a participant of the storage market.
type Account string

// IsZero returns true if the account is not set.
func (a Account) IsZero() bool { return a == "" }

// FileID identifies a stored file record.
type FileID string

// IsZero returns true if the file id is not set.
func (id FileID) IsZero() bool { return id == "" }
