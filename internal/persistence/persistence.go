// Package persistence implements the bidirectional mapping between the
// in-memory dispatch tree (internal/model.Tree) and a relational store
// (C6): incremental create/update/archive drained from the tree's
// operation queues, and a full restore on startup. The query language is
// deliberately not specified by name anywhere above this package — only
// the postgres subpackage commits to one, via jackc/pgx/v5.
package persistence

import (
	"context"

	"dispatchd/internal/model"
)

// Store is satisfied by every persistence backend the dispatch tree can be
// wired to. Flush is called once per persistence tick and must be
// idempotent: primary keys are allocated in memory before a row is ever
// emitted, so retrying a failed flush against the same tree state produces
// the same writes.
type Store interface {
	// Flush drains tree's toCreate/toModify/toArchive queues in one
	// transaction, grouped by entity class in create-order (or the
	// reverse for archives). On error the tree's queues are left
	// untouched so the caller can retry on the next tick.
	Flush(ctx context.Context, tree *model.Tree) error

	// Restore rebuilds a dispatch tree from persisted, non-archived rows,
	// following the nine-step restart sequence: pools and render nodes,
	// folder/task skeletons, parent and dependency edges, pool shares,
	// commands (reattached to their render node), task/folder
	// reattachment, resolved arguments, rules, then allocator fast-forward.
	Restore(ctx context.Context) (*model.Tree, error)

	// Close releases any underlying connection resources.
	Close() error
}
