// Package docstore is the write path shared by every ingestion job: a small document
// store abstraction plus the chunked commit engine that drives it.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// DefaultCeiling is the number of operations per commit. It sits below the store's hard
// per-commit limit of 500 to leave room for the store's own bookkeeping.
const DefaultCeiling = 400

type OpKind int

const (
	OpUpsert OpKind = iota + 1
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one write against a named collection. Upserts with Merge set only touch the
// given fields; without Merge they replace the whole document.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Fields     map[string]any
	Merge      bool
}

func Upsert(collection, id string, fields map[string]any, merge bool) Op {
	return Op{Kind: OpUpsert, Collection: collection, ID: id, Fields: fields, Merge: merge}
}

func Delete(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

func (op Op) validate() error {
	if op.Collection == "" {
		return errors.New("op has no collection")
	}
	if op.ID == "" {
		return fmt.Errorf("%s on %s has no document id", op.Kind, op.Collection)
	}
	switch op.Kind {
	case OpUpsert, OpDelete:
		return nil
	default:
		return fmt.Errorf("unknown op kind %d", int(op.Kind))
	}
}

type Document struct {
	ID     string
	Fields map[string]any
}

// Store is a document database organised as named collections.
type Store interface {
	// NewID returns a fresh store-generated id for collection.
	NewID(collection string) string
	// Scan calls fn for every document of collection in the store's natural order.
	// A non-nil error from fn stops the scan and is returned.
	Scan(ctx context.Context, collection string, fn func(Document) error) error
	// Commit applies ops atomically: either all of them are written or none is.
	Commit(ctx context.Context, ops []Op) error
	Close() error
}

// ScanAll loads a whole collection into memory.
func ScanAll(ctx context.Context, store Store, collection string) ([]Document, error) {
	var docs []Document
	err := store.Scan(ctx, collection, func(d Document) error {
		docs = append(docs, d)
		return nil
	})
	return docs, err
}
