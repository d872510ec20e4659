// Package settings is the key-value store for device preferences such as the
// anonymous owner id and the signed-in flag.
package settings

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned for an empty key.
var ErrEmptyKey = errors.New("settings: empty key")

// Store keeps string values by key.
type Store interface {
	// Get returns the value of key and whether it was set.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
