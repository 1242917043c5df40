// Package pending holds records awaiting confirmation and per-chat edit
// markers. Everything here is throwaway state with an expiry.
package pending

import (
	"context"
	"errors"
	"time"
)

// Namespace separates the key families kept in one store.
type Namespace string

const (
	// NamespaceEntry holds records awaiting confirmation, keyed by entry id.
	NamespaceEntry Namespace = "expense_"
	// NamespaceEditMode holds edit markers, keyed by chat id.
	NamespaceEditMode Namespace = "edit_mode_"
)

// Key addresses one value. Keys of different namespaces never collide.
type Key struct {
	Namespace Namespace
	ID        string
}

// String is the flat form used by backends: "expense_<id>".
func (k Key) String() string {
	return string(k.Namespace) + k.ID
}

// ErrNotFound is returned by Get for absent and expired keys.
var ErrNotFound = errors.New("pending: key not found")

// Store is a key-value store with per-key expiry. Only single-key
// operations are atomic.
type Store interface {
	Put(ctx context.Context, key Key, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key Key) ([]byte, error)
	Remove(ctx context.Context, key Key) error
}
