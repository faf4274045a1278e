package stores

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/lionbot/lionbot/pkg/settings"
)

type RedisClient = redis.UniversalClient
type RedisPipeliner = redis.Pipeliner

var (
	rcOnce sync.Once
	rcu    RedisClient
)

// NewRC connect and ping a redis by uri
func NewRC(ctx context.Context, uri string) (RedisClient, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	rc := redis.NewClient(opt)
	if err = rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, err
	}
	return rc, nil
}

// SgtRC start return a singleton instance of redis client
func SgtRC() RedisClient {
	rcOnce.Do(func() {
		redisURI := settings.Current.RedisURI
		var err error
		rcu, err = NewRC(context.Background(), redisURI)
		if err != nil {
			logger().Panicw("connect redis fail", "uri", redisURI, "err", err)
		}
	})

	return rcu
}
