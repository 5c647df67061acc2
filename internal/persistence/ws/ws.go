// Package ws is the placeholder client for POOLS_BACKEND_TYPE=ws. "ws" is
// a valid backend selector but no wire protocol for it exists yet, and
// none of the dependencies this module pulls in define one either —
// wiring a concrete implementation here would mean inventing a protocol
// nobody asked for. config.Validate rejects the selector with
// apperrors.ErrUnsupportedBackend, so the server refuses to start with it.
package ws

import (
	"context"

	"dispatchd/internal/apperrors"
	"dispatchd/internal/model"
)

// Store rejects Flush and Restore with apperrors.ErrUnsupportedBackend;
// Close returns nil.
type Store struct{}

// New returns the stub store. It never fails to construct — only to operate.
func New() *Store { return &Store{} }

func (*Store) Flush(context.Context, *model.Tree) error {
	return apperrors.ErrUnsupportedBackend
}

func (*Store) Restore(context.Context) (*model.Tree, error) {
	return nil, apperrors.ErrUnsupportedBackend
}

func (*Store) Close() error { return nil }
