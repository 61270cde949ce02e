// Package storage declares the key-value behavior required by the
// blockchain packages for persisting blocks and the chain tip.
package storage

import "errors"

// ErrNotFound is returned from Get when the key has no value in the store.
var ErrNotFound = errors.New("key not found")

// Store interface represents the behavior required to be implemented by any
// package providing support for reading and writing the chain. The chain
// treats the store as an opaque ordered map; durability and isolation are
// the implementation's concern.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Flush() error
	Reset() error
	Close() error
}
