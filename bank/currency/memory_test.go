// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package currency_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filebank.io/filebank/bank/currency"
	"filebank.io/filebank/internal/testcontext"
)

func TestTransfer(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	ledger := currency.NewLedger()
	ledger.Mint("alice", 100)

	require.NoError(t, ledger.Transfer(ctx, "alice", "bob", 30))
	assert.Equal(t, uint64(70), ledger.Balance("alice"))
	assert.Equal(t, uint64(30), ledger.Balance("bob"))

	err := ledger.Transfer(ctx, "alice", "bob", 1000)
	require.Error(t, err)
	assert.True(t, currency.ErrInsufficientFunds.Has(err))
	assert.Equal(t, uint64(70), ledger.Balance("alice"))
}

func TestReserve(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	ledger := currency.NewLedger()
	ledger.Mint("alice", 100)

	require.NoError(t, ledger.Reserve(ctx, "alice", 60))
	assert.Equal(t, uint64(40), ledger.Balance("alice"))
	assert.Equal(t, uint64(60), ledger.Reserved("alice"))

	err := ledger.Reserve(ctx, "alice", 50)
	require.Error(t, err)
	assert.True(t, currency.ErrInsufficientFunds.Has(err))

	// unreserving clamps to what is actually reserved
	require.NoError(t, ledger.Unreserve(ctx, "alice", 100))
	assert.Equal(t, uint64(100), ledger.Balance("alice"))
	assert.Equal(t, uint64(0), ledger.Reserved("alice"))
}
