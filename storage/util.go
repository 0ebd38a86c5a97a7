// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package storage

import "context"

// CloneKey creates a copy of key.
func CloneKey(key Key) Key { return append(Key{}, key...) }

// CloneValue creates a copy of value.
func CloneValue(value Value) Value { return append(Value{}, value...) }

// PutAll adds multiple items to the store.
func PutAll(ctx context.Context, store KeyValueStore, items ...ListItem) error {
	for _, item := range items {
		if err := store.Put(ctx, item.Key, item.Value); err != nil {
			return err
		}
	}
	return nil
}

// ListKeys implements List in terms of Iterate.
func ListKeys(ctx context.Context, store KeyValueStore, first Key, limit int) (Keys, error) {
	keys := make(Keys, 0, limit)
	err := store.Iterate(ctx, IterateOptions{First: first},
		func(ctx context.Context, it Iterator) error {
			var item ListItem
			for ; limit > 0 && it.Next(ctx, &item); limit-- {
				if item.Key != nil {
					keys = append(keys, CloneKey(item.Key))
				}
			}
			return nil
		})
	return keys, err
}
