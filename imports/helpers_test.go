package imports

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/sirupsen/logrus"
)

var fixedNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig(store docstore.Store, collection, prefix string) Config {
	return Config{
		Store:      store,
		Collection: collection,
		Prefix:     prefix,
		Logger:     quietLogger(),
		Now:        func() time.Time { return fixedNow },
	}
}

type memoryCheckpoints struct {
	mu    sync.Mutex
	saved map[string]Checkpoint
	saves int
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{saved: map[string]Checkpoint{}}
}

func (m *memoryCheckpoints) Load(_ context.Context, key string) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.saved[key]
	return cp, ok, nil
}

func (m *memoryCheckpoints) Save(_ context.Context, key string, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[key] = cp
	m.saves++
	return nil
}

func (m *memoryCheckpoints) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, key)
	return nil
}
