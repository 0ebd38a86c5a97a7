// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package filebank_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"filebank.io/filebank"
	"filebank.io/filebank/bank"
	"filebank.io/filebank/bank/capacity"
	"filebank.io/filebank/bank/currency"
	"filebank.io/filebank/bank/ledger"
	"filebank.io/filebank/bank/oracle"
	"filebank.io/filebank/bank/registry"
	"filebank.io/filebank/internal/testcontext"
	"filebank.io/filebank/storage/teststore"
)

func TestPeer(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	log := zaptest.NewLogger(t)
	pay := currency.NewLedger()
	signer := oracle.NewLocalSigner(log, "local", nil)

	peer, err := filebank.New(log, teststore.New(), pay, signer, filebank.Config{
		Capacity: capacity.Config{Total: 1048576},
		Ledger: ledger.Config{
			Treasury:       "treasury",
			LeasePeriod:    720 * time.Hour,
			PriceConstant:  1024000000000000000,
			FreeGrantUnits: 1024,
		},
		Registry: registry.Config{
			Treasury:       "treasury",
			GatewayDeposit: 780000000000,
		},
		Oracle: oracle.Config{
			Endpoint:     "http://localhost:0",
			FetchTimeout: time.Second,
			LockDuration: time.Second,
			LockTicks:    3,
		},
		Scheduler: bank.SchedulerConfig{
			TickInterval: time.Hour,
			SweepEvery:   28800,
			OracleEvery:  10,
		},
	})
	require.NoError(t, err)
	defer ctx.Check(peer.Close)

	owner := bank.Account("alice")
	pay.Mint(owner, 1e18)
	require.NoError(t, peer.Ledger.Purchase(ctx, owner, 10, 1, 0))

	require.NoError(t, peer.Registry.Upload(ctx, owner, registry.Metadata{
		FileID:  "file-1",
		Name:    "report.pdf",
		Backups: 3,
		Size:    100,
	}))

	rec, err := peer.Ledger.Record(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), rec.Used)
	assert.Equal(t, uint64(10), peer.Capacity.Allocated())
}
