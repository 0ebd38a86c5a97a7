// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package registry

import (
	"context"
	"encoding/json"

	"filebank.io/filebank/bank"
	"filebank.io/filebank/storage"
)

const (
	filePrefix     = "file/"
	invoicePrefix  = "invoice/"
	userFilePrefix = "files/"
	userSizePrefix = "size/"
	userInfoPrefix = "user/"
)

// State is the lifecycle state of a file record.
type State string

const (
	// StateNormal is the state of a freshly uploaded file.
	StateNormal State = "normal"
	// StateActive marks a file whose duplicates have been placed.
	StateActive State = "active"
	// StateRepairing marks a file scheduled for repair.
	StateRepairing State = "repairing"
)

// DuplicateDescriptor describes one stored replica of a file.
type DuplicateDescriptor struct {
	ID    string       `json:"id"`
	Miner bank.Account `json:"miner"`
	Hash  string       `json:"hash"`
}

// FileRecord is the registry entry of one stored file.
type FileRecord struct {
	Name        string                `json:"name"`
	Size        uint64                `json:"size"`
	Hash        string                `json:"hash"`
	Public      bool                  `json:"public"`
	Owner       bank.Account          `json:"owner"`
	State       State                 `json:"state"`
	Backups     uint8                 `json:"backups"`
	DownloadFee uint64                `json:"download_fee"`
	Duplicates  []DuplicateDescriptor `json:"duplicates,omitempty"`
}

// UserInfo tracks the collateral a registered user has deposited for
// gateway-delegated operations.
type UserInfo struct {
	Collateral uint64 `json:"collateral"`
}

func fileKey(fileid bank.FileID) storage.Key {
	return storage.Key(filePrefix + string(fileid))
}

// invoiceKey derives the idempotency marker of a (file, destination)
// pair. It is written on upload for the owner's own address and on the
// first download purchase per destination, and never removed.
func invoiceKey(fileid bank.FileID, destination string) storage.Key {
	return storage.Key(invoicePrefix + string(fileid) + ":" + destination)
}

func userFilesKey(acct bank.Account) storage.Key {
	return storage.Key(userFilePrefix + string(acct))
}

func userSizeKey(acct bank.Account) storage.Key {
	return storage.Key(userSizePrefix + string(acct))
}

func userInfoKey(acct bank.Account) storage.Key {
	return storage.Key(userInfoPrefix + string(acct))
}

func (service *Service) getFile(ctx context.Context, fileid bank.FileID) (rec FileRecord, err error) {
	data, err := service.store.Get(ctx, fileKey(fileid))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return FileRecord{}, ErrFileNotFound.New("%q", fileid)
		}
		return FileRecord{}, Error.Wrap(err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return FileRecord{}, Error.Wrap(err)
	}
	return rec, nil
}

func (service *Service) putFile(ctx context.Context, fileid bank.FileID, rec FileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(service.store.Put(ctx, fileKey(fileid), data))
}

func (service *Service) getUserFiles(ctx context.Context, acct bank.Account) ([]bank.FileID, error) {
	data, err := service.store.Get(ctx, userFilesKey(acct))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	var files []bank.FileID
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, Error.Wrap(err)
	}
	return files, nil
}

func (service *Service) putUserFiles(ctx context.Context, acct bank.Account, files []bank.FileID) error {
	data, err := json.Marshal(files)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(service.store.Put(ctx, userFilesKey(acct), data))
}

func (service *Service) getUserSize(ctx context.Context, acct bank.Account) (uint64, error) {
	data, err := service.store.Get(ctx, userSizeKey(acct))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return 0, nil
		}
		return 0, Error.Wrap(err)
	}
	var size uint64
	if err := json.Unmarshal(data, &size); err != nil {
		return 0, Error.Wrap(err)
	}
	return size, nil
}

func (service *Service) putUserSize(ctx context.Context, acct bank.Account, size uint64) error {
	data, err := json.Marshal(size)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(service.store.Put(ctx, userSizeKey(acct), data))
}

func (service *Service) getUserInfo(ctx context.Context, acct bank.Account) (info UserInfo, found bool, err error) {
	data, err := service.store.Get(ctx, userInfoKey(acct))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return UserInfo{}, false, nil
		}
		return UserInfo{}, false, Error.Wrap(err)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return UserInfo{}, false, Error.Wrap(err)
	}
	return info, true, nil
}

func (service *Service) putUserInfo(ctx context.Context, acct bank.Account, info UserInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(service.store.Put(ctx, userInfoKey(acct), data))
}
