// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package teststore implements an in-memory key value store for tests.
package teststore

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"filebank.io/filebank/storage"
)

// ErrForced is returned when the store is configured to fail.
var ErrForced = errors.New("forced error")

// Client implements an in-memory key value store.
type Client struct {
	mu    sync.Mutex
	items []storage.ListItem

	// ForceError makes the next ForceError calls fail with ErrForced.
	ForceError int

	CallCount struct {
		Get            int
		Put            int
		List           int
		Delete         int
		Iterate        int
		CompareAndSwap int
		Close          int
	}
}

// New creates a new in-memory key-value store.
func New() *Client { return &Client{} }

func (store *Client) forcedError() bool {
	if store.ForceError > 0 {
		store.ForceError--
		return true
	}
	return false
}

// indexOf finds the index of key or where it could be inserted.
func (store *Client) indexOf(key storage.Key) (int, bool) {
	i := sort.Search(len(store.items), func(k int) bool {
		return bytes.Compare(store.items[k].Key, key) >= 0
	})
	if i >= len(store.items) {
		return i, false
	}
	return i, bytes.Equal(store.items[i].Key, key)
}

func (store *Client) put(key storage.Key, value storage.Value) {
	keyIndex, found := store.indexOf(key)
	if found {
		store.items[keyIndex].Value = storage.CloneValue(value)
		return
	}
	store.items = append(store.items, storage.ListItem{})
	copy(store.items[keyIndex+1:], store.items[keyIndex:])
	store.items[keyIndex] = storage.ListItem{
		Key:   storage.CloneKey(key),
		Value: storage.CloneValue(value),
	}
}

func (store *Client) delete(keyIndex int) {
	copy(store.items[keyIndex:], store.items[keyIndex+1:])
	store.items = store.items[:len(store.items)-1]
}

// Put adds a value to the store.
func (store *Client) Put(ctx context.Context, key storage.Key, value storage.Value) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.CallCount.Put++
	if store.forcedError() {
		return ErrForced
	}
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	store.put(key, value)
	return nil
}

// Get returns the value for a key.
func (store *Client) Get(ctx context.Context, key storage.Key) (storage.Value, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.CallCount.Get++
	if store.forcedError() {
		return nil, ErrForced
	}
	keyIndex, found := store.indexOf(key)
	if !found {
		return nil, storage.ErrKeyNotFound.New("%q", key)
	}
	return storage.CloneValue(store.items[keyIndex].Value), nil
}

// Delete deletes a key and its value.
func (store *Client) Delete(ctx context.Context, key storage.Key) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.CallCount.Delete++
	if store.forcedError() {
		return ErrForced
	}
	keyIndex, found := store.indexOf(key)
	if !found {
		return storage.ErrKeyNotFound.New("%q", key)
	}
	store.delete(keyIndex)
	return nil
}

// List returns up to limit keys at or after first.
func (store *Client) List(ctx context.Context, first storage.Key, limit int) (storage.Keys, error) {
	store.mu.Lock()
	store.CallCount.List++
	forced := store.forcedError()
	store.mu.Unlock()
	if forced {
		return nil, ErrForced
	}
	return storage.ListKeys(ctx, store, first, limit)
}

// Iterate walks a snapshot of the items.
func (store *Client) Iterate(ctx context.Context, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) error {
	store.mu.Lock()
	store.CallCount.Iterate++
	if store.forcedError() {
		store.mu.Unlock()
		return ErrForced
	}

	first := opts.First
	if first == nil || bytes.Compare(first, opts.Prefix) < 0 {
		first = opts.Prefix
	}
	start, _ := store.indexOf(first)

	snapshot := make([]storage.ListItem, 0, len(store.items)-start)
	for _, item := range store.items[start:] {
		if opts.Prefix != nil && !bytes.HasPrefix(item.Key, opts.Prefix) {
			break
		}
		snapshot = append(snapshot, storage.ListItem{
			Key:   storage.CloneKey(item.Key),
			Value: storage.CloneValue(item.Value),
		})
	}
	store.mu.Unlock()

	next := 0
	return fn(ctx, storage.IteratorFunc(func(ctx context.Context, item *storage.ListItem) bool {
		if next >= len(snapshot) {
			return false
		}
		*item = snapshot[next]
		next++
		return true
	}))
}

// CompareAndSwap atomically replaces oldValue with newValue.
func (store *Client) CompareAndSwap(ctx context.Context, key storage.Key, oldValue, newValue storage.Value) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.CallCount.CompareAndSwap++
	if store.forcedError() {
		return ErrForced
	}
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	keyIndex, found := store.indexOf(key)
	if !found {
		if oldValue != nil {
			return storage.ErrKeyNotFound.New("%q", key)
		}
		if newValue == nil {
			return nil
		}
		store.put(key, newValue)
		return nil
	}

	if oldValue == nil || !bytes.Equal(store.items[keyIndex].Value, oldValue) {
		return storage.ErrValueChanged.New("%q", key)
	}
	if newValue == nil {
		store.delete(keyIndex)
		return nil
	}
	store.items[keyIndex].Value = storage.CloneValue(newValue)
	return nil
}

// Close closes the store.
func (store *Client) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Close++
	return nil
}
