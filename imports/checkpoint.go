package imports

import (
	"context"
	"time"

	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/redis/go-redis/v9"
)

// Checkpoint records how far an import got: every data row before NextRow is committed.
type Checkpoint struct {
	NextRow int `json:"nextRow"`
	Applied int `json:"applied"`
}

// Checkpointer persists import progress per object version so a redelivered upload
// event resumes instead of starting over. Checkpoints are cleared once an import succeeds.
type Checkpointer interface {
	Load(ctx context.Context, key string) (Checkpoint, bool, error)
	Save(ctx context.Context, key string, cp Checkpoint) error
	Clear(ctx context.Context, key string) error
}

type RedisCheckpointer struct {
	Client redis.UniversalClient
	TTL    time.Duration
}

func NewRedisCheckpointer(client redis.UniversalClient, ttl time.Duration) *RedisCheckpointer {
	return &RedisCheckpointer{Client: client, TTL: ttl}
}

func (r *RedisCheckpointer) key(key string) string {
	return "import:checkpoint:" + key
}

func (r *RedisCheckpointer) Load(ctx context.Context, key string) (Checkpoint, bool, error) {
	var cp Checkpoint
	ok, err := utils.LoadRedisJSON(ctx, r.Client, r.key(key), &cp)
	return cp, ok, err
}

func (r *RedisCheckpointer) Save(ctx context.Context, key string, cp Checkpoint) error {
	return utils.StoreRedisJSON(ctx, r.Client, r.key(key), cp, r.TTL)
}

func (r *RedisCheckpointer) Clear(ctx context.Context, key string) error {
	return utils.RemoveRedisKey(ctx, r.Client, r.key(key))
}

// NoCheckpoints keeps the run-from-scratch contract.
type NoCheckpoints struct{}

func (NoCheckpoints) Load(context.Context, string) (Checkpoint, bool, error) {
	return Checkpoint{}, false, nil
}

func (NoCheckpoints) Save(context.Context, string, Checkpoint) error { return nil }

func (NoCheckpoints) Clear(context.Context, string) error { return nil }
