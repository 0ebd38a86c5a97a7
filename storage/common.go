// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package storage defines the keyed store the accounting core persists into.
package storage

import (
	"context"

	"github.com/zeebo/errs"
)

var (
	// ErrKeyNotFound is returned when a lookup misses.
	ErrKeyNotFound = errs.Class("key not found")
	// ErrEmptyKey is returned when an empty key is passed to a store.
	ErrEmptyKey = errs.Class("empty key")
	// ErrValueChanged is returned by CompareAndSwap when the stored value
	// no longer matches the expected one.
	ErrValueChanged = errs.Class("value changed")
)

// Key is the type for the keys in a KeyValueStore.
type Key []byte

// Value is the type for the values in a KeyValueStore.
type Value []byte

// Keys is a slice of keys.
type Keys []Key

// KeyValueStore describes the keyed stores the accounting core runs on,
// like boltdb in production and teststore in tests.
type KeyValueStore interface {
	// Put adds a value to the provided key, replacing any existing value.
	Put(ctx context.Context, key Key, value Value) error
	// Get returns the value for a key, or ErrKeyNotFound.
	Get(ctx context.Context, key Key) (Value, error)
	// Delete removes a key and its value, or returns ErrKeyNotFound.
	Delete(ctx context.Context, key Key) error
	// List returns up to limit keys at or after first, in order.
	List(ctx context.Context, first Key, limit int) (Keys, error)
	// Iterate walks items according to opts.
	Iterate(ctx context.Context, opts IterateOptions, fn func(context.Context, Iterator) error) error
	// CompareAndSwap atomically replaces oldValue with newValue.
	// A nil oldValue means the key must not exist yet; a nil newValue
	// deletes the key. Returns ErrValueChanged when the stored value
	// does not match oldValue.
	CompareAndSwap(ctx context.Context, key Key, oldValue, newValue Value) error
	Close() error
}

// IsZero returns true if the value is the zero value.
func (v Value) IsZero() bool { return len(v) == 0 }

// IsZero returns true if the key is the zero value.
func (k Key) IsZero() bool { return len(k) == 0 }

// String implements the Stringer interface.
func (k Key) String() string { return string(k) }

// Strings converts keys to a slice of strings.
func (k Keys) Strings() []string {
	result := make([]string, 0, len(k))
	for _, key := range k {
		result = append(result, key.String())
	}
	return result
}
