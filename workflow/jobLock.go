package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/sirupsen/logrus"
)

const defaultLockTTL = 10 * time.Minute

// JobLocker hands out named leases. Acquire fails with an aborted JobError when the lease
// is held elsewhere. The returned context is cancelled once the lease is lost, and release
// is safe to call more than once.
type JobLocker interface {
	Acquire(ctx context.Context, name string) (leased context.Context, release func(), err error)
}

// RedisLocker leases through Redis so operators on different instances cannot run the same
// job at once. The lease is refreshed while the job runs and expires on its own if the
// process dies.
type RedisLocker struct {
	Client *redislock.Client
	TTL    time.Duration
	Logger *logrus.Logger
}

func NewRedisLocker(client *redislock.Client, ttl time.Duration, logger *logrus.Logger) *RedisLocker {
	return &RedisLocker{Client: client, TTL: ttl, Logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string) (context.Context, func(), error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	lock, err := l.Client.Obtain(ctx, "lock:"+name, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, nil, utils.Aborted(name, "already running")
	}
	if err != nil {
		return nil, nil, utils.Internal(name, err)
	}

	leased, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepLease(stop, ttl/2, func() error {
			return lock.Refresh(context.Background(), ttl, nil)
		}, func(err error) {
			l.warn(name, "[lock.refresh] "+err.Error())
			cancel(utils.Aborted(name, "lease lost"))
		})
	}()

	var once sync.Once
	return leased, func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel(nil)
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.warn(name, "[lock.release] "+err.Error())
			}
		})
	}, nil
}

// keepLease calls refresh every interval until stop is closed. The first refresh error is
// handed to lost and ends the loop.
func keepLease(stop <-chan struct{}, interval time.Duration, refresh func() error, lost func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := refresh(); err != nil {
				lost(err)
				return
			}
		}
	}
}

func (l *RedisLocker) warn(name, msg string) {
	if l.Logger == nil {
		return
	}
	l.Logger.WithFields(logrus.Fields{"lock": name}).Warn(msg)
}

// LocalLocker serializes jobs within one process. It backs CLI runs and deployments
// without Redis.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]bool{}}
}

func (l *LocalLocker) Acquire(ctx context.Context, name string) (context.Context, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, nil, utils.Aborted(name, "already running")
	}
	l.held[name] = true

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
	}, nil
}
