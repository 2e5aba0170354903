// Package chain defines the interfaces the Carver2D engine consumes from
// its external collaborators: the node RPC client, the document store,
// and the process-level lock manager. Concrete adapters live in sibling
// packages (internal/carver/bitcoin, internal/carver/store/...,
// internal/carver/lock); nothing in this package does I/O itself.
package chain

import "context"

// Query describes a find-by-predicate call against the Store: a set of
// filters, an optional index hint, sort order, and a limit. It
// deliberately stays simple — the engine never needs joins or arbitrary
// expressions, only the handful of shapes §6 lists (by sequence, by
// block_height, by from/to/context, range scans).
//
// Filter keys are plain field names for equality ("height": 100), or a
// field name suffixed with "__gte" for a greater-than-or-equal range
// bound ("height__gte": 100). Adapters must recognize the suffix on any
// key and strip it before comparing; this is the only relational
// operator the engine ever needs, so it is folded into the map rather
// than given its own query type.
type Query struct {
	Collection string
	Filter     map[string]any
	IndexHint  string
	SortField  string
	Descending bool
	Limit      int
}

// Store is the document-oriented persistence contract the engine needs:
// insert-one, insert-many, find-by-predicate, delete-by-predicate, and
// update-by-id. Concrete adapters (badger, clickhouse) implement this;
// the engine's own packages (apply, unwind, confirm, coordinator) only
// ever talk to this interface.
//
//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE
type Store interface {
	InsertOne(ctx context.Context, collection string, id string, doc any) error
	InsertMany(ctx context.Context, collection string, docs map[string]any) error
	Find(ctx context.Context, q Query, out any) error
	DeleteMany(ctx context.Context, q Query) (int, error)
	UpdateByID(ctx context.Context, collection string, id string, doc any) error
	Close() error
}

// Locker is a named exclusive lock backed by a lockfile. Lock fails if
// the name is already held; Unlock is idempotent and silently succeeds
// if the name is not held.
type Locker interface {
	Lock(name string) error
	Unlock(name string) error
}
