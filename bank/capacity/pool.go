// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package capacity tracks the network-wide allocatable storage capacity.
package capacity

import (
	"context"
	"sync"

	"github.com/zeebo/errs"
)

// ErrExhausted is returned when the network has no capacity left to sell.
var ErrExhausted = errs.Class("network capacity exhausted")

// Config contains configurable values for the capacity pool.
type Config struct {
	Total uint64 `help:"total network capacity available for purchase, in capacity units" default:"1048576"`
}

// Pool is an in-memory view of the network-wide allocatable capacity.
type Pool struct {
	mu        sync.Mutex
	total     uint64
	allocated uint64
}

// NewPool creates a pool with the given total capacity.
func NewPool(config Config) *Pool {
	return &Pool{total: config.Total}
}

// Reserve marks units of network capacity as sold.
func (pool *Pool) Reserve(ctx context.Context, units uint64) error {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if pool.allocated+units < pool.allocated || pool.allocated+units > pool.total {
		return ErrExhausted.New("requested %d, %d of %d allocated", units, pool.allocated, pool.total)
	}
	pool.allocated += units
	return nil
}

// Release returns units of network capacity to the pool.
func (pool *Pool) Release(ctx context.Context, units uint64) error {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if units > pool.allocated {
		units = pool.allocated
	}
	pool.allocated -= units
	return nil
}

// Total returns the total network capacity.
func (pool *Pool) Total(ctx context.Context) (uint64, error) {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return pool.total, nil
}

// Allocated returns the currently allocated capacity.
func (pool *Pool) Allocated() uint64 {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return pool.allocated
}
