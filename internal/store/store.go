package store

import (
	"context"

	"hearts-server/models"
)

// Store maps table id to Session State. Implementations must make Save
// atomic with respect to concurrent callers on the same table id, which in
// this system the coordinator guarantees by holding a per-table lock
// (internal/locks) around the load/save round trip — the store itself does
// not serialize callers.
type Store interface {
	Load(ctx context.Context, tableID string) (*models.SessionState, error)
	Save(ctx context.Context, tableID string, state *models.SessionState) error
	Delete(ctx context.Context, tableID string) error
}

// ErrNotFound is returned by Load when no Session State exists for a table.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "no session state for this table" }
