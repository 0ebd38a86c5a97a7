// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package bank

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"filebank.io/filebank/internal/sync2"
)

var mon = monkit.Package()

// SchedulerConfig contains configurable values for the heartbeat
// scheduler.
type SchedulerConfig struct {
	TickInterval time.Duration `help:"how often the scheduler heartbeat fires" default:"6s"`
	SweepEvery   uint64        `help:"run the lease expiry sweep every this many ticks" default:"28800"`
	OracleEvery  uint64        `help:"run the price oracle every this many ticks" default:"10"`
}

// Sweeper removes expired leases.
type Sweeper interface {
	SweepExpiredLeases(ctx context.Context, now time.Time) error
}

// OracleTicker runs one price oracle pass for the given tick.
type OracleTicker interface {
	Tick(ctx context.Context, tick uint64) error
}

// Scheduler drives the periodic jobs of the accounting core off a single
// heartbeat. Job failures are logged and confined to their tick; the
// heartbeat itself only stops on context cancellation.
//
// architecture: Chore
type Scheduler struct {
	log     *zap.Logger
	sweeper Sweeper
	oracle  OracleTicker
	config  SchedulerConfig

	Loop *sync2.Cycle

	tick uint64
}

// NewScheduler creates a new scheduler. oracle may be nil when no oracle
// runs in the process.
func NewScheduler(log *zap.Logger, sweeper Sweeper, oracle OracleTicker, config SchedulerConfig) *Scheduler {
	return &Scheduler{
		log:     log,
		sweeper: sweeper,
		oracle:  oracle,
		config:  config,
		Loop:    sync2.NewCycle(config.TickInterval),
	}
}

// Run runs the heartbeat until ctx is done.
func (scheduler *Scheduler) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	return scheduler.Loop.Run(ctx, scheduler.RunOnce)
}

// RunOnce advances the tick counter and runs the jobs due at this tick.
func (scheduler *Scheduler) RunOnce(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	scheduler.tick++
	tick := scheduler.tick

	if scheduler.oracle != nil && tick%scheduler.config.OracleEvery == 0 {
		if err := scheduler.oracle.Tick(ctx, tick); err != nil {
			scheduler.log.Error("oracle pass failed",
				zap.Uint64("tick", tick), zap.Error(err))
		}
	}
	if tick%scheduler.config.SweepEvery == 0 {
		if err := scheduler.sweeper.SweepExpiredLeases(ctx, time.Now()); err != nil {
			scheduler.log.Error("lease expiry sweep failed",
				zap.Uint64("tick", tick), zap.Error(err))
		}
	}
	return ctx.Err()
}

// Close stops the heartbeat.
func (scheduler *Scheduler) Close() error {
	scheduler.Loop.Stop()
	return nil
}
