package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upserts(n int) []Op {
	ops := make([]Op, n)
	for i := range ops {
		ops[i] = Upsert("items", fmt.Sprintf("doc-%04d", i), map[string]any{"n": i}, false)
	}
	return ops
}

type recordingStore struct {
	*MemoryStore
	sizes []int
}

func (s *recordingStore) Commit(ctx context.Context, ops []Op) error {
	s.sizes = append(s.sizes, len(ops))
	return s.MemoryStore.Commit(ctx, ops)
}

func TestCommitterBatchCount(t *testing.T) {
	cases := []struct {
		n, ceiling, commits int
	}{
		{0, 400, 0},
		{1, 400, 1},
		{400, 400, 1},
		{401, 400, 2},
		{1000, 400, 3},
		{10, 3, 4},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d/%d", tc.n, tc.ceiling), func(t *testing.T) {
			store := &recordingStore{MemoryStore: NewMemoryStore()}
			c := NewCommitter(store, "test", tc.ceiling, nil)

			applied, err := c.Apply(context.Background(), upserts(tc.n))
			require.NoError(t, err)
			assert.Equal(t, tc.n, applied)
			assert.Len(t, store.sizes, tc.commits)
			for _, size := range store.sizes {
				assert.LessOrEqual(t, size, tc.ceiling)
			}
			assert.Equal(t, tc.n, store.Count("items"))
			assert.Equal(t, tc.commits, c.Batches())
		})
	}
}

func TestCommitterDefaultCeiling(t *testing.T) {
	store := NewMemoryStore()
	c := NewCommitter(store, "test", 0, nil)

	_, err := c.Apply(context.Background(), upserts(DefaultCeiling+1))
	require.NoError(t, err)
	assert.Equal(t, 2, store.Commits())
}

func TestCommitterKeepsEarlierBatchesOnFailure(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("permission denied")
	store.FailCommit = func(commit int, ops []Op) error {
		if commit == 3 {
			return boom
		}
		return nil
	}
	c := NewCommitter(store, "import.sales", 10, nil)

	applied, err := c.Apply(context.Background(), upserts(45))
	require.Error(t, err)
	assert.Equal(t, 20, applied)
	assert.Equal(t, 20, store.Count("items"))
	assert.ErrorIs(t, err, boom)

	var jobErr *utils.JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, utils.KindInternal, jobErr.Kind)
	assert.Equal(t, "import.sales", jobErr.Job)
	assert.Equal(t, 2, jobErr.Batch)
	assert.Equal(t, 20, jobErr.Applied)
	assert.Contains(t, err.Error(), "batch 2")
}

func TestCommitterRejectsInvalidOps(t *testing.T) {
	store := NewMemoryStore()
	c := NewCommitter(store, "test", 10, nil)

	_, err := c.Apply(context.Background(), []Op{Upsert("items", "", nil, false)})
	require.Error(t, err)
	assert.Equal(t, 0, store.Commits())
}

func TestBufferFlushesAtCeiling(t *testing.T) {
	store := NewMemoryStore()
	buf := NewCommitter(store, "test", 5, nil).NewBuffer()
	var flushed []int
	buf.OnFlush = func(_ context.Context, applied int) error {
		flushed = append(flushed, applied)
		return nil
	}

	ctx := context.Background()
	for _, op := range upserts(12) {
		require.NoError(t, buf.Add(ctx, op))
	}
	assert.Equal(t, 2, buf.Pending())
	assert.Equal(t, 10, buf.Applied())

	require.NoError(t, buf.Flush(ctx))
	assert.Equal(t, 0, buf.Pending())
	assert.Equal(t, 12, buf.Applied())
	assert.Equal(t, []int{5, 10, 12}, flushed)
	assert.Equal(t, 3, store.Commits())
}
