// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

// Package boltdb implements the keyed store on top of an embedded bolt file.
package boltdb

import (
	"bytes"
	"context"
	"time"

	"github.com/boltdb/bolt"
	"github.com/zeebo/errs"

	"filebank.io/filebank/storage"
)

var defaultTimeout = 1 * time.Second

const (
	// fileMode sets permissions so only the owner can read and write.
	fileMode = 0600
)

// Error is the default boltdb errs class.
var Error = errs.Class("boltdb error")

// Client is the storage interface for the bolt database.
type Client struct {
	db     *bolt.DB
	Path   string
	Bucket []byte
}

// New instantiates a new bolt-backed client at path using bucket.
func New(path, bucket string) (*Client, error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}

	return &Client{
		db:     db,
		Path:   path,
		Bucket: []byte(bucket),
	}, nil
}

func (client *Client) update(fn func(*bolt.Bucket) error) error {
	return Error.Wrap(client.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	}))
}

func (client *Client) view(fn func(*bolt.Bucket) error) error {
	return Error.Wrap(client.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	}))
}

// Put adds a value to the provided key, replacing any existing value.
func (client *Client) Put(ctx context.Context, key storage.Key, value storage.Value) error {
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	return client.update(func(bucket *bolt.Bucket) error {
		return bucket.Put(key, value)
	})
}

// Get returns the value for a key.
func (client *Client) Get(ctx context.Context, key storage.Key) (storage.Value, error) {
	if key.IsZero() {
		return nil, storage.ErrEmptyKey.New("")
	}
	var value storage.Value
	err := client.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(client.Bucket).Get(key)
		if data == nil {
			return storage.ErrKeyNotFound.New("%q", key)
		}
		value = storage.CloneValue(data)
		return nil
	})
	return value, err
}

// Delete removes a key and its value.
func (client *Client) Delete(ctx context.Context, key storage.Key) error {
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	return client.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(client.Bucket)
		if bucket.Get(key) == nil {
			return storage.ErrKeyNotFound.New("%q", key)
		}
		return bucket.Delete(key)
	})
}

// List returns up to limit keys at or after first.
func (client *Client) List(ctx context.Context, first storage.Key, limit int) (storage.Keys, error) {
	return storage.ListKeys(ctx, client, first, limit)
}

// Iterate walks items according to opts inside a single view transaction.
func (client *Client) Iterate(ctx context.Context, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) error {
	return client.view(func(bucket *bolt.Bucket) error {
		cursor := bucket.Cursor()

		start := opts.First
		if start == nil || bytes.Compare(start, opts.Prefix) < 0 {
			start = opts.Prefix
		}

		var key, value []byte
		if start == nil {
			key, value = cursor.First()
		} else {
			key, value = cursor.Seek(start)
		}

		return fn(ctx, storage.IteratorFunc(func(ctx context.Context, item *storage.ListItem) bool {
			if key == nil {
				return false
			}
			if opts.Prefix != nil && !bytes.HasPrefix(key, opts.Prefix) {
				return false
			}
			item.Key = append(item.Key[:0], key...)
			item.Value = append(item.Value[:0], value...)
			key, value = cursor.Next()
			return true
		}))
	})
}

// CompareAndSwap atomically replaces oldValue with newValue.
func (client *Client) CompareAndSwap(ctx context.Context, key storage.Key, oldValue, newValue storage.Value) error {
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	return client.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(client.Bucket)
		data := bucket.Get(key)
		if data == nil {
			if oldValue != nil {
				return storage.ErrKeyNotFound.New("%q", key)
			}
			if newValue == nil {
				return nil
			}
			return bucket.Put(key, newValue)
		}
		if oldValue == nil || !bytes.Equal(data, oldValue) {
			return storage.ErrValueChanged.New("%q", key)
		}
		if newValue == nil {
			return bucket.Delete(key)
		}
		return bucket.Put(key, newValue)
	})
}

// Close closes the bolt client.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}
