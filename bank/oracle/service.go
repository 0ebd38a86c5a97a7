// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package oracle fetches the external market price and publishes signed
// observations, coordinating concurrent fetchers through an advisory
// lock in the shared store.
package oracle

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"filebank.io/filebank/storage"
)

const (
	lockKey  = "oracle/lock"
	priceKey = "oracle/price"

	// pricePrecision scales the fetched USD price into integer token
	// precision.
	pricePrecision = 1_000_000_000_000
)

// Config contains configurable values for the price oracle.
type Config struct {
	Endpoint     string        `help:"price endpoint to fetch the market price from" default:"https://api.coincap.io/v2/assets/polkadot"`
	FetchTimeout time.Duration `help:"timeout of a single price fetch" default:"10s"`
	LockDuration time.Duration `help:"wall-clock bound of the fetch advisory lock" default:"11s"`
	LockTicks    uint64        `help:"tick-count bound of the fetch advisory lock" default:"3"`
}

// Signer submits signed price observations on behalf of the local
// identity.
type Signer interface {
	// AvailableIdentity reports the local signing identity, if any.
	AvailableIdentity() (identity string, ok bool)
	// SubmitPrice submits a signed price observation.
	SubmitPrice(ctx context.Context, price uint64) error
}

// lockRecord is the advisory lock stored under lockKey. The lock is held
// while the wall clock is before ExpiresAt and the tick counter is below
// ExpiresTick; a crashed holder is superseded once either bound passes.
type lockRecord struct {
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresTick uint64    `json:"expires_tick"`
}

func (lock lockRecord) held(now time.Time, tick uint64) bool {
	return now.Before(lock.ExpiresAt) && tick < lock.ExpiresTick
}

// Service fetches and republishes the external market price.
//
// architecture: Service
type Service struct {
	log    *zap.Logger
	store  storage.KeyValueStore
	client *http.Client
	signer Signer
	config Config

	mu       sync.Mutex
	observed uint64
	ok       bool
}

// NewService creates a new price oracle. signer may be nil when the
// process has no signing identity.
func NewService(log *zap.Logger, store storage.KeyValueStore, signer Signer, config Config) *Service {
	return &Service{
		log:    log,
		store:  store,
		client: &http.Client{Timeout: config.FetchTimeout},
		signer: signer,
		config: config,
	}
}

// Tick runs one oracle pass: it takes the advisory lock, fetches the
// market price, records the observation and submits it signed. Losing
// the lock race is not an error; every failure is confined to this tick.
func (service *Service) Tick(ctx context.Context, tick uint64) (err error) {
	defer mon.Task()(&ctx)(&err)

	acquired, release, err := service.tryLock(ctx, tick)
	if err != nil {
		return err
	}
	if !acquired {
		service.log.Debug("price fetch lock held elsewhere", zap.Uint64("tick", tick))
		return nil
	}
	defer release()

	price, err := service.fetchPrice(ctx)
	if err != nil {
		return err
	}
	if err := service.setObservation(ctx, price); err != nil {
		return err
	}
	service.log.Info("market price fetched",
		zap.Uint64("price", price),
		zap.Uint64("tick", tick))

	return service.submit(ctx, price)
}

// tryLock acquires the advisory lock for this tick. It returns a release
// func that removes the lock; release failures only mean the next holder
// waits out the lock bounds.
func (service *Service) tryLock(ctx context.Context, tick uint64) (acquired bool, release func(), err error) {
	now := time.Now()
	next := lockRecord{
		ExpiresAt:   now.Add(service.config.LockDuration),
		ExpiresTick: tick + service.config.LockTicks,
	}
	nextData, err := json.Marshal(next)
	if err != nil {
		return false, nil, Error.Wrap(err)
	}

	var oldData storage.Value
	data, err := service.store.Get(ctx, storage.Key(lockKey))
	switch {
	case err == nil:
		var current lockRecord
		if err := json.Unmarshal(data, &current); err != nil {
			return false, nil, Error.Wrap(err)
		}
		if current.held(now, tick) {
			return false, nil, nil
		}
		oldData = data
	case storage.ErrKeyNotFound.Has(err):
		oldData = nil
	default:
		return false, nil, Error.Wrap(err)
	}

	err = service.store.CompareAndSwap(ctx, storage.Key(lockKey), oldData, nextData)
	if err != nil {
		if storage.ErrValueChanged.Has(err) || storage.ErrKeyNotFound.Has(err) {
			return false, nil, nil
		}
		return false, nil, Error.Wrap(err)
	}

	return true, func() {
		if err := service.store.CompareAndSwap(ctx, storage.Key(lockKey), nextData, nil); err != nil {
			service.log.Warn("failed to release price fetch lock", zap.Error(err))
		}
	}, nil
}

// fetchPrice fetches the market price from the configured endpoint and
// scales it to integer token precision.
func (service *Service) fetchPrice(ctx context.Context) (_ uint64, err error) {
	defer mon.Task()(&ctx)(&err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service.config.Endpoint, nil)
	if err != nil {
		return 0, ErrFetch.Wrap(err)
	}
	resp, err := service.client.Do(req)
	if err != nil {
		return 0, ErrFetch.Wrap(err)
	}
	defer func() { err = errs.Combine(err, resp.Body.Close()) }()

	if resp.StatusCode != http.StatusOK {
		return 0, ErrFetch.New("unexpected status %d from %q", resp.StatusCode, service.config.Endpoint)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, ErrFetch.Wrap(err)
	}

	var payload struct {
		Data struct {
			PriceUSD string `json:"priceUsd"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, ErrFetch.Wrap(err)
	}
	usd, err := strconv.ParseFloat(payload.Data.PriceUSD, 64)
	if err != nil {
		return 0, ErrFetch.Wrap(err)
	}
	// the scaled price must fit uint64; conversion of an out-of-range
	// float is implementation-defined
	if usd < 0 || usd >= math.MaxUint64/pricePrecision {
		return 0, ErrFetch.New("price %v out of range", usd)
	}
	return uint64(usd * pricePrecision), nil
}

func (service *Service) setObservation(ctx context.Context, price uint64) error {
	service.mu.Lock()
	service.observed = price
	service.ok = true
	service.mu.Unlock()

	data, err := json.Marshal(price)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(service.store.Put(ctx, storage.Key(priceKey), data))
}

func (service *Service) submit(ctx context.Context, price uint64) error {
	if service.signer == nil {
		return ErrNoIdentity.New("no signer configured")
	}
	identity, ok := service.signer.AvailableIdentity()
	if !ok {
		return ErrNoIdentity.New("no local account available")
	}
	if err := service.signer.SubmitPrice(ctx, price); err != nil {
		return ErrSubmit.Wrap(err)
	}
	service.log.Debug("signed price submitted", zap.String("identity", identity))
	return nil
}

// Observation returns the most recent observed market price. It never
// fetches; when no observation was made in this process it falls back to
// the last price persisted in the store.
func (service *Service) Observation(ctx context.Context) (price uint64, ok bool) {
	service.mu.Lock()
	price, ok = service.observed, service.ok
	service.mu.Unlock()
	if ok {
		return price, true
	}

	data, err := service.store.Get(ctx, storage.Key(priceKey))
	if err != nil {
		return 0, false
	}
	if err := json.Unmarshal(data, &price); err != nil {
		return 0, false
	}
	return price, true
}
