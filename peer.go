// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package filebank assembles the storage accounting core: the capacity
// pool, the space ledger, the file registry, the price oracle and the
// heartbeat scheduler driving the periodic jobs.
package filebank

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"filebank.io/filebank/bank"
	"filebank.io/filebank/bank/capacity"
	"filebank.io/filebank/bank/currency"
	"filebank.io/filebank/bank/events"
	"filebank.io/filebank/bank/ledger"
	"filebank.io/filebank/bank/oracle"
	"filebank.io/filebank/bank/registry"
	"filebank.io/filebank/storage"
)

// Config is the combined configuration of all accounting components.
type Config struct {
	Capacity  capacity.Config
	Ledger    ledger.Config
	Registry  registry.Config
	Oracle    oracle.Config
	Scheduler bank.SchedulerConfig
}

// Peer is the accounting core process.
//
// architecture: Peer
type Peer struct {
	Log   *zap.Logger
	Store storage.KeyValueStore

	Capacity *capacity.Pool
	Currency currency.Currency
	Events   events.Publisher

	Oracle    *oracle.Service
	Ledger    *ledger.Service
	Registry  *registry.Service
	Scheduler *bank.Scheduler
}

// New creates a new accounting core peer. signer may be nil when the
// process has no signing identity.
func New(log *zap.Logger, store storage.KeyValueStore, pay currency.Currency, signer oracle.Signer, config Config) (*Peer, error) {
	peer := &Peer{
		Log:      log,
		Store:    store,
		Currency: pay,
		Events:   events.NewLogPublisher(log.Named("events")),
	}

	peer.Capacity = capacity.NewPool(config.Capacity)
	peer.Oracle = oracle.NewService(log.Named("oracle"), store, signer, config.Oracle)
	peer.Ledger = ledger.NewService(log.Named("ledger"), store, peer.Capacity, pay, peer.Events, peer.Oracle, config.Ledger)
	peer.Registry = registry.NewService(log.Named("registry"), store, peer.Ledger, pay, peer.Events, config.Registry)
	peer.Scheduler = bank.NewScheduler(log.Named("scheduler"), peer.Ledger, peer.Oracle, config.Scheduler)

	return peer, nil
}

// Run runs the peer's periodic jobs until ctx is done.
func (peer *Peer) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return ignoreCancel(peer.Scheduler.Run(ctx))
	})
	return group.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the peer's resources. The store is owned by the caller
// and stays open.
func (peer *Peer) Close() error {
	return peer.Scheduler.Close()
}
