// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"filebank.io/filebank/bank"
	"filebank.io/filebank/bank/capacity"
	"filebank.io/filebank/bank/currency"
	"filebank.io/filebank/bank/events"
	"filebank.io/filebank/internal/testcontext"
	"filebank.io/filebank/storage/teststore"
)

const testTotalCapacity = 1048576

func newTestService(t *testing.T) (*Service, *teststore.Client, *capacity.Pool, *currency.Ledger, *events.Recorder) {
	store := teststore.New()
	pool := capacity.NewPool(capacity.Config{Total: testTotalCapacity})
	pay := currency.NewLedger()
	recorder := events.NewRecorder()

	service := NewService(zaptest.NewLogger(t), store, pool, pay, recorder, nil, Config{
		Treasury:       "treasury",
		LeasePeriod:    720 * time.Hour,
		PriceConstant:  1024000000000000000,
		FreeGrantUnits: 1024,
	})
	return service, store, pool, pay, recorder
}

func TestUnitPrice(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, _, _, _ := newTestService(t)

	price, err := service.UnitPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024000000000000000/testTotalCapacity), price)
}

func TestPurchase(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, pool, pay, recorder := newTestService(t)
	buyer := bank.Account("alice")
	pay.Mint(buyer, 1e18)

	require.NoError(t, service.Purchase(ctx, buyer, 10, 5, 0))

	rec, err := service.Record(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, uint64(10240), rec.Purchased)
	assert.Equal(t, uint64(10240), rec.Remaining)
	assert.Equal(t, uint64(0), rec.Used)

	leases, err := service.Leases(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, uint64(10), leases[0].Size)
	assert.WithinDuration(t, time.Now().Add(5*720*time.Hour), leases[0].Deadline, time.Minute)

	price := uint64(1024000000000000000 / testTotalCapacity)
	cost := price * 10 * 5 / 3
	assert.Equal(t, cost, pay.Balance("treasury"))
	assert.Equal(t, uint64(1e18)-cost, pay.Balance(buyer))
	assert.Equal(t, uint64(10), pool.Allocated())

	bought := recorder.Named("space-bought")
	require.Len(t, bought, 1)
	assert.Equal(t, events.SpaceBought{Account: buyer, Size: 10, Fee: cost}, bought[0])
}

func TestPurchaseMaxPrice(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, _, pay, _ := newTestService(t)
	buyer := bank.Account("alice")
	pay.Mint(buyer, 1e18)

	// the unit price is well below one full token
	err := service.Purchase(ctx, buyer, 10, 5, 1)
	require.NoError(t, err)

	// a zero-token limit cannot be expressed; the smallest is rejected
	// when the derived price exceeds it
	service.config.PriceConstant = 2 * PricePrecision * testTotalCapacity
	err = service.Purchase(ctx, buyer, 10, 5, 1)
	require.Error(t, err)
	assert.True(t, ErrExceedExpectations.Has(err))
}

func TestPurchaseLeaseDurationOverflow(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, pool, pay, _ := newTestService(t)
	buyer := bank.Account("alice")
	pay.Mint(buyer, 1e18)

	// 5000 periods of 720h exceed the nanosecond range; without a
	// checked product the deadline wraps into the past
	err := service.Purchase(ctx, buyer, 1, 5000, 0)
	require.Error(t, err)
	assert.True(t, bank.ErrOverflow.Has(err))

	assert.Equal(t, uint64(1e18), pay.Balance(buyer))
	assert.Equal(t, uint64(0), pool.Allocated())
	has, err := service.HasRecord(ctx, buyer)
	require.NoError(t, err)
	assert.False(t, has)
	leases, err := service.Leases(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, leases)

	// the largest representable span still works
	maxUnits := uint64(math.MaxInt64) / uint64(720*time.Hour)
	require.NoError(t, service.Purchase(ctx, buyer, 1, maxUnits, 0))
	leases, err = service.Leases(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.True(t, leases[0].Deadline.After(time.Now()))
}

func TestPurchaseOverflowLeavesStateUnchanged(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, pool, pay, recorder := newTestService(t)
	buyer := bank.Account("alice")
	pay.Mint(buyer, 1e18)
	require.NoError(t, service.Purchase(ctx, buyer, 10, 1, 0))

	before, err := service.Record(ctx, buyer)
	require.NoError(t, err)
	leasesBefore, err := service.Leases(ctx, buyer)
	require.NoError(t, err)
	balanceBefore := pay.Balance(buyer)
	treasuryBefore := pay.Balance("treasury")
	boughtBefore := len(recorder.Named("space-bought"))

	err = service.Purchase(ctx, buyer, 1<<63, 1, 0)
	require.Error(t, err)
	assert.True(t, bank.ErrOverflow.Has(err))

	after, err := service.Record(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	leasesAfter, err := service.Leases(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, leasesBefore, leasesAfter)
	assert.Equal(t, balanceBefore, pay.Balance(buyer))
	assert.Equal(t, treasuryBefore, pay.Balance("treasury"))
	assert.Equal(t, uint64(10), pool.Allocated())
	assert.Len(t, recorder.Named("space-bought"), boughtBefore)
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, pool, pay, _ := newTestService(t)
	buyer := bank.Account("broke")
	pay.Mint(buyer, 1)

	err := service.Purchase(ctx, buyer, 10, 5, 0)
	require.Error(t, err)
	assert.True(t, currency.ErrInsufficientFunds.Has(err))

	// the failed purchase must not leak pool capacity or create a record
	assert.Equal(t, uint64(0), pool.Allocated())
	has, err := service.HasRecord(ctx, buyer)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestReserve(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, _, pay, _ := newTestService(t)
	acct := bank.Account("alice")
	pay.Mint(acct, 1e18)
	require.NoError(t, service.Purchase(ctx, acct, 10, 1, 0))

	require.NoError(t, service.Reserve(ctx, acct, 300, Consume))
	rec, err := service.Record(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), rec.Used)
	assert.Equal(t, uint64(9940), rec.Remaining)
	assert.Equal(t, uint64(10240), rec.Purchased)

	require.NoError(t, service.Reserve(ctx, acct, 300, Release))
	rec, err = service.Record(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rec.Used)
	assert.Equal(t, uint64(10240), rec.Remaining)
}

func TestReserveErrors(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, _, pay, _ := newTestService(t)

	err := service.Reserve(ctx, "nobody", 1, Consume)
	require.Error(t, err)
	assert.True(t, ErrNotPurchasedSpace.Has(err))

	acct := bank.Account("alice")
	pay.Mint(acct, 1e18)
	require.NoError(t, service.Purchase(ctx, acct, 1, 1, 0))

	err = service.Reserve(ctx, acct, 2000, Consume)
	require.Error(t, err)
	assert.True(t, ErrInsufficientStorage.Has(err))

	// releasing more than used underflows; the record must stay unchanged
	before, err := service.Record(ctx, acct)
	require.NoError(t, err)
	err = service.Reserve(ctx, acct, 1, Release)
	require.Error(t, err)
	assert.True(t, bank.ErrOverflow.Has(err))
	after, err := service.Record(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReserveExpiredLease(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, _, _, recorder := newTestService(t)
	acct := bank.Account("alice")

	// a trimmed account has purchased < used + remaining
	require.NoError(t, service.putRecord(ctx, acct, SpaceRecord{
		Purchased: 1024,
		Used:      1024,
		Remaining: 1024,
	}))

	err := service.Reserve(ctx, acct, 1, Consume)
	require.Error(t, err)
	assert.True(t, ErrLeaseExpired.Has(err))
	assert.Len(t, recorder.Named("lease-expired"), 1)
}

func TestReceiveFreeGrant(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, pool, _, _ := newTestService(t)
	acct := bank.Account("alice")

	require.NoError(t, service.ReceiveFreeGrant(ctx, acct))

	rec, err := service.Record(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024*1024), rec.Purchased)
	assert.Equal(t, uint64(1024*1024), rec.Remaining)
	assert.Equal(t, uint64(1024), pool.Allocated())

	leases, err := service.Leases(ctx, acct)
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.True(t, leases[0].Deadline.After(time.Now().AddDate(99, 0, 0)))

	err = service.ReceiveFreeGrant(ctx, acct)
	require.Error(t, err)
	assert.True(t, ErrAlreadyReceived.Has(err))
}

func TestIsLeaseValid(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, _, pay, _ := newTestService(t)

	valid, err := service.IsLeaseValid(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, valid)

	acct := bank.Account("alice")
	pay.Mint(acct, 1e18)
	require.NoError(t, service.Purchase(ctx, acct, 10, 1, 0))

	valid, err = service.IsLeaseValid(ctx, acct)
	require.NoError(t, err)
	assert.True(t, valid)

	require.NoError(t, service.putRecord(ctx, acct, SpaceRecord{
		Purchased: 100,
		Used:      90,
		Remaining: 20,
	}))
	valid, err = service.IsLeaseValid(ctx, acct)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestSweepExpiredLeases(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, pool, _, recorder := newTestService(t)
	acct := bank.Account("alice")
	now := time.Now()

	require.NoError(t, pool.Reserve(ctx, 22))
	require.NoError(t, service.putRecord(ctx, acct, SpaceRecord{
		Purchased: 22 * 1024,
		Used:      0,
		Remaining: 22 * 1024,
	}))
	require.NoError(t, service.putLeases(ctx, acct, []LeaseEntry{
		{Size: 10, Deadline: now.Add(-time.Hour)},
		{Size: 5, Deadline: now.Add(2 * time.Hour)},
		{Size: 7, Deadline: now.Add(48 * time.Hour)},
	}))

	require.NoError(t, service.SweepExpiredLeases(ctx, now))

	rec, err := service.Record(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, uint64(12*1024), rec.Purchased)
	assert.Equal(t, uint64(12*1024), rec.Remaining)
	assert.Equal(t, uint64(12), pool.Allocated())

	leases, err := service.Leases(ctx, acct)
	require.NoError(t, err)
	require.Len(t, leases, 2)
	assert.Equal(t, uint64(5), leases[0].Size)
	assert.Equal(t, uint64(7), leases[1].Size)

	expired := recorder.Named("lease-expired")
	require.Len(t, expired, 1)
	assert.Equal(t, events.LeaseExpired{Account: acct, Size: 10}, expired[0])

	soon := recorder.Named("lease-expiring-soon")
	require.Len(t, soon, 1)
	assert.Equal(t, events.LeaseExpiringSoon{Account: acct, Size: 1024}, soon[0])
}

func TestSweepTrimsBeyondRemaining(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, pool, _, _ := newTestService(t)
	acct := bank.Account("alice")
	now := time.Now()

	// most of the capacity is in use; the expired lease is larger than
	// what remains
	require.NoError(t, pool.Reserve(ctx, 10))
	require.NoError(t, service.putRecord(ctx, acct, SpaceRecord{
		Purchased: 10 * 1024,
		Used:      9 * 1024,
		Remaining: 1024,
	}))
	require.NoError(t, service.putLeases(ctx, acct, []LeaseEntry{
		{Size: 10, Deadline: now.Add(-time.Hour)},
	}))

	require.NoError(t, service.SweepExpiredLeases(ctx, now))

	rec, err := service.Record(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rec.Purchased)
	assert.Equal(t, uint64(0), rec.Remaining)
	assert.Equal(t, uint64(9*1024), rec.Used)

	// the trimmed account now fails the lease validity check
	valid, err := service.IsLeaseValid(ctx, acct)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestSweepSkipsUntouchedAccounts(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, store, _, pay, recorder := newTestService(t)
	acct := bank.Account("alice")
	pay.Mint(acct, 1e18)
	require.NoError(t, service.Purchase(ctx, acct, 10, 1, 0))

	writes := store.CallCount.Put
	require.NoError(t, service.SweepExpiredLeases(ctx, time.Now()))
	assert.Equal(t, writes, store.CallCount.Put)
	assert.Empty(t, recorder.Named("lease-expired"))
	assert.Empty(t, recorder.Named("lease-expiring-soon"))
}

func TestReset(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, _, pay, _ := newTestService(t)
	acct := bank.Account("alice")
	pay.Mint(acct, 1e18)
	require.NoError(t, service.Purchase(ctx, acct, 10, 1, 0))

	require.NoError(t, service.Reset(ctx, acct))

	has, err := service.HasRecord(ctx, acct)
	require.NoError(t, err)
	assert.False(t, has)
	leases, err := service.Leases(ctx, acct)
	require.NoError(t, err)
	assert.Empty(t, leases)

	// resetting an unknown account is a no-op
	require.NoError(t, service.Reset(ctx, "nobody"))
}
