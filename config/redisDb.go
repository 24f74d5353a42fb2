package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

// RedisConfigured reports whether REDIS_ADDRESS is set. Local CLI runs skip Redis when it is not.
func RedisConfigured() bool {
	return os.Getenv("REDIS_ADDRESS") != ""
}

// ConnectRedisWithRetry sets the global Redis client and the lock client built on it. It
// retries with backoff until Redis answers or ctx is done.
func ConnectRedisWithRetry(ctx context.Context) error {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	log := GetLogger().WithFields(logrus.Fields{"addr": redisAddr})

	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intFromEnv("REDIS_DB", 0),
			PoolSize: 20,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			rdb = client
			locker = redislock.New(rdb)
			log.WithField("attempt", attempt).Info("[redis.connected]")
			return nil
		}
		_ = client.Close()

		sleep := backoff(attempt)
		log.WithFields(logrus.Fields{"attempt": attempt, "retry_in": sleep.String()}).Warn("[redis.retry] " + err.Error())
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect redis %s: %w", redisAddr, err)
		case <-time.After(sleep):
		}
	}
}

// CloseRedis closes the global client; the lock client shares it.
func CloseRedis() error {
	if rdb == nil {
		return nil
	}
	return rdb.Close()
}
