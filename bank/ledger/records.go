// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package ledger

import (
	"context"
	"encoding/json"
	"time"

	"filebank.io/filebank/bank"
	"filebank.io/filebank/storage"
)

const (
	spacePrefix = "space/"
	leasePrefix = "lease/"
	freePrefix  = "free/"
)

// SpaceRecord holds the capacity accounting of one account. For every
// account with a record, Purchased == Used + Remaining, except transiently
// while the expiry sweep trims an account whose remaining capacity no
// longer covers the expired lease.
type SpaceRecord struct {
	Purchased uint64 `json:"purchased"`
	Used      uint64 `json:"used"`
	Remaining uint64 `json:"remaining"`
}

// LeaseEntry is one purchase's capacity grant and its expiry point.
type LeaseEntry struct {
	Size     uint64    `json:"size"`
	Deadline time.Time `json:"deadline"`
}

func spaceKey(acct bank.Account) storage.Key {
	return storage.Key(spacePrefix + string(acct))
}

func leaseKey(acct bank.Account) storage.Key {
	return storage.Key(leasePrefix + string(acct))
}

func freeKey(acct bank.Account) storage.Key {
	return storage.Key(freePrefix + string(acct))
}

func (service *Service) getRecord(ctx context.Context, acct bank.Account) (rec SpaceRecord, found bool, err error) {
	data, err := service.store.Get(ctx, spaceKey(acct))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return SpaceRecord{}, false, nil
		}
		return SpaceRecord{}, false, Error.Wrap(err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return SpaceRecord{}, false, Error.Wrap(err)
	}
	return rec, true, nil
}

func (service *Service) putRecord(ctx context.Context, acct bank.Account, rec SpaceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(service.store.Put(ctx, spaceKey(acct), data))
}

func (service *Service) getLeases(ctx context.Context, acct bank.Account) ([]LeaseEntry, error) {
	data, err := service.store.Get(ctx, leaseKey(acct))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	var leases []LeaseEntry
	if err := json.Unmarshal(data, &leases); err != nil {
		return nil, Error.Wrap(err)
	}
	return leases, nil
}

func (service *Service) putLeases(ctx context.Context, acct bank.Account, leases []LeaseEntry) error {
	data, err := json.Marshal(leases)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(service.store.Put(ctx, leaseKey(acct), data))
}

func decodeLeases(data storage.Value) ([]LeaseEntry, error) {
	var leases []LeaseEntry
	if err := json.Unmarshal(data, &leases); err != nil {
		return nil, Error.Wrap(err)
	}
	return leases, nil
}
