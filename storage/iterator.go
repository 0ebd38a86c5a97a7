// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package storage

import "context"

// ListItem is a single item in an iteration.
type ListItem struct {
	Key   Key
	Value Value
}

// IterateOptions configures an iteration over a store.
type IterateOptions struct {
	// Prefix restricts iteration to keys with this prefix.
	Prefix Key
	// First, when set, positions the iteration at this key or the next one.
	First Key
}

// Iterator iterates over a sequence of ListItems.
type Iterator interface {
	// Next updates item with the next value in the sequence and
	// returns false when the sequence is exhausted.
	Next(ctx context.Context, item *ListItem) bool
}

// IteratorFunc adapts a function to the Iterator interface.
type IteratorFunc func(ctx context.Context, item *ListItem) bool

// Next implements the Iterator interface.
func (fn IteratorFunc) Next(ctx context.Context, item *ListItem) bool { return fn(ctx, item) }
