package imports

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingImporter struct {
	events []FileEvent
	err    error
}

func (r *recordingImporter) Handle(_ context.Context, ev FileEvent) (*Result, error) {
	r.events = append(r.events, ev)
	if r.err != nil {
		return nil, r.err
	}
	return &Result{Message: "ok", RecordsProcessed: 1}, nil
}

type heldLocks struct {
	mu   sync.Mutex
	held map[string]bool
	seen []string
}

func (h *heldLocks) Acquire(ctx context.Context, name string) (context.Context, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, name)
	if h.held[name] {
		return nil, nil, utils.Aborted(name, "already running")
	}
	h.held[name] = true
	return ctx, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.held, name)
	}, nil
}

func TestRouterDispatchesByFolder(t *testing.T) {
	locks := &heldLocks{held: map[string]bool{}}
	sales, balances := &recordingImporter{}, &recordingImporter{}
	router := NewRouter(locks, quietLogger())
	router.Register("sales-uploads", sales)
	router.Register("balance-uploads", balances)

	ev := FileEvent{Bucket: "b", Name: "sales-uploads/x.csv", Generation: 4}
	res, err := router.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsProcessed)
	assert.Len(t, sales.events, 1)
	assert.Empty(t, balances.events)
	assert.Equal(t, []string{"import:b/sales-uploads/x.csv#4"}, locks.seen)
	assert.Empty(t, locks.held, "lock released after the import")

	res, err = router.Dispatch(context.Background(), FileEvent{Bucket: "b", Name: "avatars/me.png"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Len(t, locks.seen, 1)
}

func TestRouterRejectsConcurrentDelivery(t *testing.T) {
	locks := &heldLocks{held: map[string]bool{"import:b/sales-uploads/x.csv#4": true}}
	sales := &recordingImporter{}
	router := NewRouter(locks, quietLogger())
	router.Register("sales-uploads", sales)

	_, err := router.Dispatch(context.Background(), FileEvent{Bucket: "b", Name: "sales-uploads/x.csv", Generation: 4})
	require.Error(t, err)
	assert.Equal(t, utils.KindAborted, utils.KindOf(err))
	assert.Empty(t, sales.events)
}

func TestRouterReleasesLockOnFailure(t *testing.T) {
	locks := &heldLocks{held: map[string]bool{}}
	router := NewRouter(locks, quietLogger())
	router.Register("sales-uploads", &recordingImporter{err: errors.New("boom")})

	_, err := router.Dispatch(context.Background(), FileEvent{Bucket: "b", Name: "sales-uploads/x.csv"})
	require.Error(t, err)
	assert.Empty(t, locks.held)
}

func TestFileEventPrefixAndKey(t *testing.T) {
	ev := FileEvent{Bucket: "uploads", Name: "/sales-uploads/2024/a.xlsx", Generation: 12}
	assert.Equal(t, "sales-uploads", ev.Prefix())
	assert.Equal(t, "uploads//sales-uploads/2024/a.xlsx#12", ev.Key())
	assert.Equal(t, "", FileEvent{Name: "loose.csv"}.Prefix())
}
