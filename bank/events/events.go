// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package events defines the notifications the accounting core emits for
// external consumption.
package events

import (
	"context"

	"filebank.io/filebank/bank"
)

// Event is a notification emitted by the accounting core.
type Event interface {
	// Name returns the notification name.
	Name() string
}

// Publisher delivers events to external consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// FileUploaded is emitted after a file record has been created.
type FileUploaded struct {
	Account bank.Account
	FileID  bank.FileID
}

// FileUpdated is emitted after a file's duplicate descriptors change.
type FileUpdated struct {
	Account bank.Account
	FileID  bank.FileID
}

// FileStateChanged is emitted after a file state transition.
type FileStateChanged struct {
	Account bank.Account
	FileID  bank.FileID
}

// FileBought is emitted when a download purchase charges the buyer.
type FileBought struct {
	Account bank.Account
	FileID  bank.FileID
	Amount  uint64
}

// AlreadyPurchased is emitted when a download purchase deduplicates
// against an existing invoice.
type AlreadyPurchased struct {
	Account bank.Account
	FileID  bank.FileID
}

// SpaceBought is emitted after a successful space purchase.
type SpaceBought struct {
	Account bank.Account
	Size    uint64
	Fee     uint64
}

// LeaseExpired is emitted for every lease removed by the expiry sweep,
// and with Size zero when an operation is rejected on an expired lease.
type LeaseExpired struct {
	Account bank.Account
	Size    uint64
}

// LeaseExpiringSoon aggregates the leases of one account expiring within
// the next day, once per sweep pass.
type LeaseExpiringSoon struct {
	Account bank.Account
	Size    uint64
}

// FileDeleted is emitted after a file record has been removed.
type FileDeleted struct {
	Account bank.Account
	FileID  bank.FileID
}

// UserAuthorized is emitted after a user deposits collateral for
// gateway-delegated operations.
type UserAuthorized struct {
	Account    bank.Account
	Collateral uint64
	Random     uint32
}

// Name implements Event.
func (FileUploaded) Name() string { return "file-uploaded" }

// Name implements Event.
func (FileUpdated) Name() string { return "file-updated" }

// Name implements Event.
func (FileStateChanged) Name() string { return "file-state-changed" }

// Name implements Event.
func (FileBought) Name() string { return "file-bought" }

// Name implements Event.
func (AlreadyPurchased) Name() string { return "already-purchased" }

// Name implements Event.
func (SpaceBought) Name() string { return "space-bought" }

// Name implements Event.
func (LeaseExpired) Name() string { return "lease-expired" }

// Name implements Event.
func (LeaseExpiringSoon) Name() string { return "lease-expiring-soon" }

// Name implements Event.
func (FileDeleted) Name() string { return "file-deleted" }

// Name implements Event.
func (UserAuthorized) Name() string { return "user-authorized" }
