// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package ledger implements the per-account space ledger with time-bounded
// leases and the periodic expiry sweep.
package ledger

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"filebank.io/filebank/bank"
	"filebank.io/filebank/bank/currency"
	"filebank.io/filebank/bank/events"
	"filebank.io/filebank/internal/checked"
	"filebank.io/filebank/storage"
)

// PricePrecision is the token precision the buyer's maximum price is
// scaled by before comparing against the capacity-derived unit price.
const PricePrecision = 1_000_000_000_000

// oneDay is the look-ahead window of the "expiring soon" tally.
const oneDay = 24 * time.Hour

// internalUnit converts purchased capacity units to internal accounting
// units.
const internalUnit = 1024

// Config contains configurable values for the space ledger.
type Config struct {
	Treasury       string        `help:"account receiving space purchase fees" default:"filebank-treasury"`
	LeasePeriod    time.Duration `help:"length of one lease period" default:"720h"`
	PriceConstant  uint64        `help:"numerator of the capacity-derived unit price" default:"1024000000000000000"`
	FreeGrantUnits uint64        `help:"capacity units granted by the one-time free allowance" default:"1024"`
}

// CapacityPool tracks the network-wide allocatable capacity. The ledger
// reserves on purchase and releases on expiry.
type CapacityPool interface {
	Reserve(ctx context.Context, units uint64) error
	Release(ctx context.Context, units uint64) error
	Total(ctx context.Context) (uint64, error)
}

// PriceSource exposes the most recent external price observation. It must
// never block on a fresh fetch.
type PriceSource interface {
	Observation(ctx context.Context) (price uint64, ok bool)
}

// Kind selects the direction of a capacity reservation.
type Kind int

const (
	// Consume moves capacity from remaining to used.
	Consume Kind = 1 + iota
	// Release moves capacity from used back to remaining.
	Release
)

// Service implements the space ledger.
//
// architecture: Service
type Service struct {
	log    *zap.Logger
	store  storage.KeyValueStore
	pool   CapacityPool
	pay    currency.Currency
	events events.Publisher
	price  PriceSource
	config Config

	// mu serializes all ledger mutations so every operation reads and
	// writes an account's record and lease list as one logical
	// transaction.
	mu sync.Mutex
}

// NewService creates a new space ledger. price may be nil when no oracle
// runs in the process.
func NewService(log *zap.Logger, store storage.KeyValueStore, pool CapacityPool, pay currency.Currency, publisher events.Publisher, price PriceSource, config Config) *Service {
	return &Service{
		log:    log,
		store:  store,
		pool:   pool,
		pay:    pay,
		events: publisher,
		price:  price,
		config: config,
	}
}

// UnitPrice derives the current unit price from the network-wide capacity.
func (service *Service) UnitPrice(ctx context.Context) (_ uint64, err error) {
	defer mon.Task()(&ctx)(&err)

	total, err := service.pool.Total(ctx)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if total == 0 {
		return 0, bank.ErrOverflow.New("division by zero total capacity")
	}
	return service.config.PriceConstant / total, nil
}

// Purchase buys spaceUnits of capacity for leaseUnits lease periods.
// A non-zero maxUnitPrice caps the accepted unit price. The buyer is
// charged at a third of the gross price, since every file is stored with
// threefold replication.
func (service *Service) Purchase(ctx context.Context, acct bank.Account, spaceUnits, leaseUnits, maxUnitPrice uint64) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	price, err := service.UnitPrice(ctx)
	if err != nil {
		return err
	}
	if maxUnitPrice != 0 {
		limit, ok := checked.Mul64(maxUnitPrice, PricePrecision)
		if !ok {
			return bank.ErrOverflow.New("max unit price")
		}
		if price > limit {
			return ErrExceedExpectations.New("unit price %d exceeds limit %d", price, limit)
		}
	}

	gross, ok := checked.Mul64(price, spaceUnits)
	if !ok {
		return bank.ErrOverflow.New("price by space")
	}
	gross, ok = checked.Mul64(gross, leaseUnits)
	if !ok {
		return bank.ErrOverflow.New("price by lease count")
	}
	cost := gross / 3

	internal, ok := checked.Mul64(spaceUnits, internalUnit)
	if !ok {
		return bank.ErrOverflow.New("space units")
	}

	span, ok := checked.Mul64(leaseUnits, uint64(service.config.LeasePeriod))
	if !ok || span > math.MaxInt64 {
		return bank.ErrOverflow.New("lease duration")
	}

	rec, _, err := service.getRecord(ctx, acct)
	if err != nil {
		return err
	}
	newPurchased, ok := checked.Add64(rec.Purchased, internal)
	if !ok {
		return bank.ErrOverflow.New("purchased space")
	}
	newRemaining, ok := checked.Add64(rec.Remaining, internal)
	if !ok {
		return bank.ErrOverflow.New("remaining space")
	}
	leases, err := service.getLeases(ctx, acct)
	if err != nil {
		return err
	}

	if service.price != nil {
		if observed, ok := service.price.Observation(ctx); ok {
			service.log.Debug("latest market price observation",
				zap.Uint64("observed", observed),
				zap.Uint64("unit price", price))
		}
	}

	if err := service.pool.Reserve(ctx, spaceUnits); err != nil {
		return err
	}
	if err := service.pay.Transfer(ctx, acct, bank.Account(service.config.Treasury), cost); err != nil {
		return errs.Combine(err, service.pool.Release(ctx, spaceUnits))
	}

	now := time.Now()
	rec.Purchased = newPurchased
	rec.Remaining = newRemaining
	leases = append(leases, LeaseEntry{
		Size:     spaceUnits,
		Deadline: now.Add(time.Duration(span)),
	})

	if err := service.putLeases(ctx, acct, leases); err != nil {
		return err
	}
	if err := service.putRecord(ctx, acct, rec); err != nil {
		return err
	}

	service.log.Info("space bought",
		zap.String("account", string(acct)),
		zap.Uint64("units", spaceUnits),
		zap.Uint64("cost", cost))
	service.events.Publish(ctx, events.SpaceBought{Account: acct, Size: spaceUnits, Fee: cost})
	return nil
}

// ReceiveFreeGrant grants a fixed small allocation with a far-future
// deadline, once per account.
func (service *Service) ReceiveFreeGrant(ctx context.Context, acct bank.Account) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	if _, err := service.store.Get(ctx, freeKey(acct)); err == nil {
		return ErrAlreadyReceived.New("account %q", acct)
	} else if !storage.ErrKeyNotFound.Has(err) {
		return Error.Wrap(err)
	}

	units := service.config.FreeGrantUnits
	internal, ok := checked.Mul64(units, internalUnit)
	if !ok {
		return bank.ErrOverflow.New("free grant units")
	}

	rec, _, err := service.getRecord(ctx, acct)
	if err != nil {
		return err
	}
	newPurchased, ok := checked.Add64(rec.Purchased, internal)
	if !ok {
		return bank.ErrOverflow.New("purchased space")
	}
	newRemaining, ok := checked.Add64(rec.Remaining, internal)
	if !ok {
		return bank.ErrOverflow.New("remaining space")
	}
	leases, err := service.getLeases(ctx, acct)
	if err != nil {
		return err
	}

	if err := service.pool.Reserve(ctx, units); err != nil {
		return err
	}

	rec.Purchased = newPurchased
	rec.Remaining = newRemaining
	leases = append(leases, LeaseEntry{
		Size:     units,
		Deadline: time.Now().AddDate(100, 0, 0),
	})

	if err := service.putLeases(ctx, acct, leases); err != nil {
		return err
	}
	if err := service.putRecord(ctx, acct, rec); err != nil {
		return err
	}
	if err := service.store.Put(ctx, freeKey(acct), storage.Value{1}); err != nil {
		return Error.Wrap(err)
	}

	service.log.Info("free grant received", zap.String("account", string(acct)))
	return nil
}

// Reserve moves size internal units between remaining and used capacity.
// Consume requires an existing record, enough remaining space and a
// currently valid lease. Release performs the inverse update.
func (service *Service) Reserve(ctx context.Context, acct bank.Account, size uint64, kind Kind) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	rec, found, err := service.getRecord(ctx, acct)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotPurchasedSpace.New("account %q", acct)
	}

	switch kind {
	case Consume:
		if size > rec.Remaining {
			return ErrInsufficientStorage.New("%d requested, %d remaining", size, rec.Remaining)
		}
		if !leaseValid(rec) {
			service.events.Publish(ctx, events.LeaseExpired{Account: acct})
			return ErrLeaseExpired.New("account %q", acct)
		}
		newUsed, ok := checked.Add64(rec.Used, size)
		if !ok {
			return bank.ErrOverflow.New("used space")
		}
		rec.Remaining -= size
		rec.Used = newUsed

	case Release:
		newRemaining, ok := checked.Add64(rec.Remaining, size)
		if !ok {
			return bank.ErrOverflow.New("remaining space")
		}
		newUsed, ok := checked.Sub64(rec.Used, size)
		if !ok {
			return bank.ErrOverflow.New("used space underflow")
		}
		rec.Remaining = newRemaining
		rec.Used = newUsed

	default:
		return Error.New("unknown reservation kind %d", kind)
	}

	return service.putRecord(ctx, acct, rec)
}

// HasRecord reports whether the account has purchased any space.
func (service *Service) HasRecord(ctx context.Context, acct bank.Account) (bool, error) {
	_, found, err := service.getRecord(ctx, acct)
	return found, err
}

// Record returns the account's space record.
func (service *Service) Record(ctx context.Context, acct bank.Account) (SpaceRecord, error) {
	rec, found, err := service.getRecord(ctx, acct)
	if err != nil {
		return SpaceRecord{}, err
	}
	if !found {
		return SpaceRecord{}, ErrNotPurchasedSpace.New("account %q", acct)
	}
	return rec, nil
}

// Leases returns the account's active lease entries.
func (service *Service) Leases(ctx context.Context, acct bank.Account) ([]LeaseEntry, error) {
	return service.getLeases(ctx, acct)
}

// IsLeaseValid reports whether the account's lease is currently valid.
// It is a running-totals proxy: the account counts as expired once the
// sweep has trimmed more purchased capacity than it could reclaim, so it
// can report true even when every individual lease deadline has passed.
func (service *Service) IsLeaseValid(ctx context.Context, acct bank.Account) (bool, error) {
	rec, found, err := service.getRecord(ctx, acct)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return leaseValid(rec), nil
}

func leaseValid(rec SpaceRecord) bool {
	total, ok := checked.Add64(rec.Used, rec.Remaining)
	if !ok {
		return false
	}
	return total <= rec.Purchased
}

// Reset removes the account's space record and lease list.
func (service *Service) Reset(ctx context.Context, acct bank.Account) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	if err := service.store.Delete(ctx, spaceKey(acct)); err != nil && !storage.ErrKeyNotFound.Has(err) {
		return Error.Wrap(err)
	}
	if err := service.store.Delete(ctx, leaseKey(acct)); err != nil && !storage.ErrKeyNotFound.Has(err) {
		return Error.Wrap(err)
	}
	return nil
}

// SweepExpiredLeases removes every lease with a deadline at or before now,
// trims the owning account's capacity, returns the expired units to the
// capacity pool, and tallies the leases expiring within the next day.
// Each account's update is atomic; the pass itself is not cancellable.
func (service *Service) SweepExpiredLeases(ctx context.Context, now time.Time) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	type accountLeases struct {
		acct   bank.Account
		leases []LeaseEntry
	}
	var all []accountLeases

	err = service.store.Iterate(ctx, storage.IterateOptions{Prefix: storage.Key(leasePrefix)},
		func(ctx context.Context, it storage.Iterator) error {
			var item storage.ListItem
			for it.Next(ctx, &item) {
				leases, err := decodeLeases(item.Value)
				if err != nil {
					return err
				}
				acct := bank.Account(strings.TrimPrefix(string(item.Key), leasePrefix))
				all = append(all, accountLeases{acct: acct, leases: leases})
			}
			return nil
		})
	if err != nil {
		return Error.Wrap(err)
	}

	var group errs.Group
	for _, entry := range all {
		if err := service.sweepAccount(ctx, entry.acct, entry.leases, now); err != nil {
			service.log.Error("sweep failed for account",
				zap.String("account", string(entry.acct)), zap.Error(err))
			group.Add(err)
		}
	}
	return group.Err()
}

func (service *Service) sweepAccount(ctx context.Context, acct bank.Account, leases []LeaseEntry, now time.Time) error {
	var survivors []LeaseEntry
	var expired []LeaseEntry
	var expiringSoon uint64
	for _, lease := range leases {
		switch {
		case !lease.Deadline.After(now):
			expired = append(expired, lease)
		case !lease.Deadline.After(now.Add(oneDay)):
			expiringSoon++
			survivors = append(survivors, lease)
		default:
			survivors = append(survivors, lease)
		}
	}
	if len(expired) == 0 && expiringSoon == 0 {
		return nil
	}

	if len(expired) > 0 {
		rec, found, err := service.getRecord(ctx, acct)
		if err != nil {
			return err
		}
		for _, lease := range expired {
			internal := lease.Size * internalUnit
			if trimmed, ok := checked.Sub64(rec.Purchased, internal); ok {
				rec.Purchased = trimmed
			} else {
				rec.Purchased = 0
			}
			if internal > rec.Remaining {
				rec.Remaining = 0
			} else {
				rec.Remaining -= internal
			}
			if err := service.pool.Release(ctx, lease.Size); err != nil {
				return err
			}
			service.events.Publish(ctx, events.LeaseExpired{Account: acct, Size: lease.Size})
		}
		if err := service.putLeases(ctx, acct, survivors); err != nil {
			return err
		}
		if found {
			if err := service.putRecord(ctx, acct, rec); err != nil {
				return err
			}
		}
		service.log.Info("expired leases removed",
			zap.String("account", string(acct)),
			zap.Int("count", len(expired)))
	}

	if expiringSoon > 0 {
		service.events.Publish(ctx, events.LeaseExpiringSoon{
			Account: acct,
			Size:    internalUnit * expiringSoon,
		})
	}
	return nil
}
