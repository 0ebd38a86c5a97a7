// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package boltdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filebank.io/filebank/internal/testcontext"
	"filebank.io/filebank/storage"
)

func newTestClient(t *testing.T, ctx *testcontext.Context) *Client {
	client, err := New(ctx.File("bolt", "test.db"), "bucket")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Fatal(err)
		}
	})
	return client
}

func TestBasic(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client := newTestClient(t, ctx)

	require.NoError(t, client.Put(ctx, storage.Key("a"), storage.Value("1")))
	require.NoError(t, client.Put(ctx, storage.Key("b"), storage.Value("2")))
	require.NoError(t, client.Put(ctx, storage.Key("c"), storage.Value("3")))

	value, err := client.Get(ctx, storage.Key("b"))
	require.NoError(t, err)
	assert.Equal(t, storage.Value("2"), value)

	_, err = client.Get(ctx, storage.Key("missing"))
	require.Error(t, err)
	assert.True(t, storage.ErrKeyNotFound.Has(err))

	err = client.Put(ctx, storage.Key(""), storage.Value("x"))
	require.Error(t, err)
	assert.True(t, storage.ErrEmptyKey.Has(err))

	keys, err := client.List(ctx, storage.Key("b"), 10)
	require.NoError(t, err)
	assert.Equal(t, storage.Keys{storage.Key("b"), storage.Key("c")}, keys)

	require.NoError(t, client.Delete(ctx, storage.Key("b")))
	_, err = client.Get(ctx, storage.Key("b"))
	assert.True(t, storage.ErrKeyNotFound.Has(err))
}

func TestIterate(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client := newTestClient(t, ctx)

	require.NoError(t, client.Put(ctx, storage.Key("lease/alice"), storage.Value("a")))
	require.NoError(t, client.Put(ctx, storage.Key("lease/bob"), storage.Value("b")))
	require.NoError(t, client.Put(ctx, storage.Key("space/alice"), storage.Value("s")))

	var keys []string
	err := client.Iterate(ctx, storage.IterateOptions{Prefix: storage.Key("lease/")},
		func(ctx context.Context, it storage.Iterator) error {
			var item storage.ListItem
			for it.Next(ctx, &item) {
				keys = append(keys, string(item.Key))
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"lease/alice", "lease/bob"}, keys)
}

func TestCompareAndSwap(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	client := newTestClient(t, ctx)
	key := storage.Key("lock")

	// nil old value means the key must not exist yet
	require.NoError(t, client.CompareAndSwap(ctx, key, nil, storage.Value("one")))

	err := client.CompareAndSwap(ctx, key, nil, storage.Value("two"))
	require.Error(t, err)
	assert.True(t, storage.ErrValueChanged.Has(err))

	err = client.CompareAndSwap(ctx, key, storage.Value("stale"), storage.Value("two"))
	require.Error(t, err)
	assert.True(t, storage.ErrValueChanged.Has(err))

	require.NoError(t, client.CompareAndSwap(ctx, key, storage.Value("one"), storage.Value("two")))

	value, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, storage.Value("two"), value)

	// nil new value deletes the key
	require.NoError(t, client.CompareAndSwap(ctx, key, storage.Value("two"), nil))
	_, err = client.Get(ctx, key)
	assert.True(t, storage.ErrKeyNotFound.Has(err))

	err = client.CompareAndSwap(ctx, storage.Key("missing"), storage.Value("x"), storage.Value("y"))
	require.Error(t, err)
	assert.True(t, storage.ErrKeyNotFound.Has(err))
}
