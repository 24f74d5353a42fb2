package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memCollection struct {
	order []string
	docs  map[string]map[string]any
}

// MemoryStore keeps collections in process. Iteration order is insertion order.
// It backs local runs (DOCSTORE_BACKEND=memory) and the job tests.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
	commits     int
	writes      int

	// FailCommit, when set, is consulted before every commit with the 1-based commit
	// number; a non-nil result fails that commit without applying anything.
	FailCommit func(commit int, ops []Op) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]*memCollection{}}
}

func (s *MemoryStore) NewID(string) string {
	return uuid.NewString()
}

func (s *MemoryStore) collection(name string) *memCollection {
	c := s.collections[name]
	if c == nil {
		c = &memCollection{docs: map[string]map[string]any{}}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Scan(ctx context.Context, collection string, fn func(Document) error) error {
	s.mu.Lock()
	c := s.collection(collection)
	snapshot := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		snapshot = append(snapshot, Document{ID: id, Fields: copyFields(c.docs[id])})
	}
	s.mu.Unlock()

	for _, d := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Commit(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, op := range ops {
		if err := op.validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCommit != nil {
		if err := s.FailCommit(s.commits+1, ops); err != nil {
			return err
		}
	}
	for _, op := range ops {
		c := s.collection(op.Collection)
		switch op.Kind {
		case OpUpsert:
			existing, ok := c.docs[op.ID]
			if !ok {
				c.order = append(c.order, op.ID)
				existing = map[string]any{}
			}
			if !op.Merge {
				existing = map[string]any{}
			}
			for k, v := range op.Fields {
				existing[k] = v
			}
			c.docs[op.ID] = existing
		case OpDelete:
			if _, ok := c.docs[op.ID]; ok {
				delete(c.docs, op.ID)
				c.order = removeID(c.order, op.ID)
			}
		}
	}
	s.commits++
	s.writes += len(ops)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Put seeds a document without counting it as a commit.
func (s *MemoryStore) Put(collection, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	if _, ok := c.docs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.docs[id] = copyFields(fields)
}

func (s *MemoryStore) Get(collection, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collection(collection).docs[id]
	if !ok {
		return nil, false
	}
	return copyFields(doc), true
}

func (s *MemoryStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collection(collection).order)
}

// Commits is the number of successful commits.
func (s *MemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Writes is the number of operations applied by successful commits.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
