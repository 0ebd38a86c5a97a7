// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package registry implements the stored-file registry with
// ownership-gated mutation and idempotent purchase accounting.
package registry

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"filebank.io/filebank/bank"
	"filebank.io/filebank/bank/currency"
	"filebank.io/filebank/bank/events"
	"filebank.io/filebank/bank/ledger"
	"filebank.io/filebank/internal/checked"
	"filebank.io/filebank/storage"
)

// Config contains configurable values for the file registry.
type Config struct {
	Treasury       string `help:"account receiving the platform share of download fees" default:"filebank-treasury"`
	GatewayDeposit uint64 `help:"deposit paid out to the gateway per delegated operation" default:"780000000000"`
}

// SpaceLedger is the capacity accounting the registry reserves against.
type SpaceLedger interface {
	Reserve(ctx context.Context, acct bank.Account, size uint64, kind ledger.Kind) error
	IsLeaseValid(ctx context.Context, acct bank.Account) (bool, error)
	HasRecord(ctx context.Context, acct bank.Account) (bool, error)
}

// Metadata describes a file being uploaded.
type Metadata struct {
	FileID      bank.FileID
	Name        string
	Hash        string
	Public      bool
	Backups     uint8
	Size        uint64
	DownloadFee uint64
}

// Service implements the file registry.
//
// architecture: Service
type Service struct {
	log    *zap.Logger
	store  storage.KeyValueStore
	ledger SpaceLedger
	pay    currency.Currency
	events events.Publisher
	config Config

	// mu serializes registry mutations.
	mu sync.Mutex
}

// NewService creates a new file registry.
func NewService(log *zap.Logger, store storage.KeyValueStore, spaces SpaceLedger, pay currency.Currency, publisher events.Publisher, config Config) *Service {
	return &Service{
		log:    log,
		store:  store,
		ledger: spaces,
		pay:    pay,
		events: publisher,
		config: config,
	}
}

// Upload creates the file record for meta, reserving size times backups
// capacity on the owner's ledger. The owner's own invoice marker is
// written so a later download purchase to the owner's address cannot
// charge twice.
func (service *Service) Upload(ctx context.Context, owner bank.Account, meta Metadata) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	if err := service.upload(ctx, owner, meta); err != nil {
		return err
	}
	service.events.Publish(ctx, events.FileUploaded{Account: owner, FileID: meta.FileID})
	return nil
}

func (service *Service) upload(ctx context.Context, owner bank.Account, meta Metadata) error {
	hasSpace, err := service.ledger.HasRecord(ctx, owner)
	if err != nil {
		return err
	}
	if !hasSpace {
		return ledger.ErrNotPurchasedSpace.New("account %q", owner)
	}
	if _, err := service.store.Get(ctx, fileKey(meta.FileID)); err == nil {
		return ErrFileExists.New("%q", meta.FileID)
	} else if !storage.ErrKeyNotFound.Has(err) {
		return Error.Wrap(err)
	}

	required, ok := checked.Mul64(meta.Size, uint64(meta.Backups))
	if !ok {
		return bank.ErrOverflow.New("size by backups")
	}
	if err := service.ledger.Reserve(ctx, owner, required, ledger.Consume); err != nil {
		return err
	}

	rec := FileRecord{
		Name:        meta.Name,
		Size:        meta.Size,
		Hash:        meta.Hash,
		Public:      meta.Public,
		Owner:       owner,
		State:       StateNormal,
		Backups:     meta.Backups,
		DownloadFee: meta.DownloadFee,
	}
	if err := service.putFile(ctx, meta.FileID, rec); err != nil {
		return err
	}
	if err := service.store.Put(ctx, invoiceKey(meta.FileID, string(owner)), storage.Value{1}); err != nil {
		return Error.Wrap(err)
	}

	files, err := service.getUserFiles(ctx, owner)
	if err != nil {
		return err
	}
	if err := service.putUserFiles(ctx, owner, append(files, meta.FileID)); err != nil {
		return err
	}

	total, err := service.getUserSize(ctx, owner)
	if err != nil {
		return err
	}
	newTotal, ok := checked.Add64(total, meta.Size)
	if !ok {
		return bank.ErrOverflow.New("user file size")
	}
	if err := service.putUserSize(ctx, owner, newTotal); err != nil {
		return err
	}

	service.log.Info("file uploaded",
		zap.String("owner", string(owner)),
		zap.String("fileid", string(meta.FileID)),
		zap.Uint64("size", meta.Size))
	return nil
}

// UpdateDuplicateDescriptors replaces the file's replica descriptors and
// marks it active. Any caller may update any file's descriptors; the
// consensus layer is expected to gate who submits them.
func (service *Service) UpdateDuplicateDescriptors(ctx context.Context, caller bank.Account, fileid bank.FileID, duplicates []DuplicateDescriptor) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	rec, err := service.getFile(ctx, fileid)
	if err != nil {
		return err
	}
	rec.State = StateActive
	rec.Duplicates = duplicates
	if err := service.putFile(ctx, fileid, rec); err != nil {
		return err
	}

	service.events.Publish(ctx, events.FileUpdated{Account: caller, FileID: fileid})
	return nil
}

// UpdateState transitions the file to state. A repairing to repairing
// transition is rejected to prevent duplicate repair scheduling; every
// other transition is accepted.
func (service *Service) UpdateState(ctx context.Context, caller bank.Account, fileid bank.FileID, state State) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	rec, err := service.getFile(ctx, fileid)
	if err != nil {
		return err
	}
	if rec.State == StateRepairing && state == StateRepairing {
		return ErrAlreadyRepairing.New("%q", fileid)
	}
	rec.State = state
	if err := service.putFile(ctx, fileid, rec); err != nil {
		return err
	}

	service.events.Publish(ctx, events.FileStateChanged{Account: caller, FileID: fileid})
	return nil
}

// Delete removes the caller's file and releases its capacity back to the
// ledger.
func (service *Service) Delete(ctx context.Context, caller bank.Account, fileid bank.FileID) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	if err := service.delete(ctx, caller, fileid); err != nil {
		return err
	}
	service.events.Publish(ctx, events.FileDeleted{Account: caller, FileID: fileid})
	return nil
}

func (service *Service) delete(ctx context.Context, owner bank.Account, fileid bank.FileID) error {
	rec, err := service.getFile(ctx, fileid)
	if err != nil {
		return err
	}
	if rec.Owner != owner {
		return ErrNotOwner.New("account %q", owner)
	}

	released, ok := checked.Mul64(rec.Size, uint64(rec.Backups))
	if !ok {
		return bank.ErrOverflow.New("size by backups")
	}
	if err := service.ledger.Reserve(ctx, owner, released, ledger.Release); err != nil {
		return err
	}

	if err := service.store.Delete(ctx, fileKey(fileid)); err != nil {
		return Error.Wrap(err)
	}

	files, err := service.getUserFiles(ctx, owner)
	if err != nil {
		return err
	}
	kept := files[:0]
	for _, id := range files {
		if id != fileid {
			kept = append(kept, id)
		}
	}
	if err := service.putUserFiles(ctx, owner, kept); err != nil {
		return err
	}

	total, err := service.getUserSize(ctx, owner)
	if err != nil {
		return err
	}
	if rec.Size > total {
		total = rec.Size
	}
	if err := service.putUserSize(ctx, owner, total-rec.Size); err != nil {
		return err
	}

	service.log.Info("file deleted",
		zap.String("owner", string(owner)),
		zap.String("fileid", string(fileid)))
	return nil
}

// PurchaseDownload charges the buyer the file's download fee, splitting
// it 80/20 between the owner and the platform treasury. The charge is
// idempotent per (file, destination) pair: a repeated purchase emits an
// already-purchased notification and charges nothing.
func (service *Service) PurchaseDownload(ctx context.Context, buyer bank.Account, fileid bank.FileID, destination string) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	rec, err := service.getFile(ctx, fileid)
	if err != nil {
		return err
	}
	valid, err := service.ledger.IsLeaseValid(ctx, rec.Owner)
	if err != nil {
		return err
	}
	if !valid {
		return ledger.ErrLeaseExpired.New("owner %q", rec.Owner)
	}

	invoice := invoiceKey(fileid, destination)
	if _, err := service.store.Get(ctx, invoice); err == nil {
		service.events.Publish(ctx, events.AlreadyPurchased{Account: buyer, FileID: fileid})
		return nil
	} else if !storage.ErrKeyNotFound.Has(err) {
		return Error.Wrap(err)
	}

	ownerShare, ok := checked.Mul64(rec.DownloadFee, 8)
	if !ok {
		return bank.ErrOverflow.New("download fee")
	}
	ownerShare /= 10

	if err := service.pay.Transfer(ctx, buyer, rec.Owner, ownerShare); err != nil {
		return err
	}
	if err := service.pay.Transfer(ctx, buyer, bank.Account(service.config.Treasury), rec.DownloadFee-ownerShare); err != nil {
		return err
	}
	if err := service.store.Put(ctx, invoice, storage.Value{1}); err != nil {
		return Error.Wrap(err)
	}

	service.log.Info("file bought",
		zap.String("buyer", string(buyer)),
		zap.String("fileid", string(fileid)),
		zap.Uint64("fee", rec.DownloadFee))
	service.events.Publish(ctx, events.FileBought{Account: buyer, FileID: fileid, Amount: rec.DownloadFee})
	return nil
}

// File returns the record of fileid.
func (service *Service) File(ctx context.Context, fileid bank.FileID) (FileRecord, error) {
	return service.getFile(ctx, fileid)
}

// UserFiles returns the file ids held by the account.
func (service *Service) UserFiles(ctx context.Context, acct bank.Account) ([]bank.FileID, error) {
	return service.getUserFiles(ctx, acct)
}

// UserSize returns the total uploaded size of the account's files.
func (service *Service) UserSize(ctx context.Context, acct bank.Account) (uint64, error) {
	return service.getUserSize(ctx, acct)
}
