package lock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hrygo/agenda/internal/util"
)

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only if the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisConfig holds the Redis lock configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// TTL bounds how long a crashed holder can block others.
	// A live holder extends it every TTL/3 until it unlocks.
	TTL time.Duration
	// RetryInterval is the wait between acquisition attempts.
	RetryInterval time.Duration
}

// DefaultRedisConfig returns the default Redis lock configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:          "localhost:6379",
		Key:           "agenda:calendar:lock",
		TTL:           10 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}
}

// Redis is a calendar lock shared by every instance using the same Redis key.
type Redis struct {
	client        redis.UniversalClient
	key           string
	ttl           time.Duration
	retryInterval time.Duration
}

// NewRedis connects to Redis and returns a lock.
func NewRedis(ctx context.Context, config *RedisConfig) (*Redis, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	slog.Info("Redis lock connected", "addr", config.Addr, "key", config.Key)

	return NewRedisWithClient(client, config), nil
}

// NewRedisWithClient builds a lock on an existing client.
func NewRedisWithClient(client redis.UniversalClient, config *RedisConfig) *Redis {
	defaults := DefaultRedisConfig()
	r := &Redis{
		client:        client,
		key:           config.Key,
		ttl:           config.TTL,
		retryInterval: config.RetryInterval,
	}
	if r.key == "" {
		r.key = defaults.Key
	}
	if r.ttl <= 0 {
		r.ttl = defaults.TTL
	}
	if r.retryInterval <= 0 {
		r.retryInterval = defaults.RetryInterval
	}
	return r
}

// Lock retries SET NX until it succeeds or ctx is done.
func (r *Redis) Lock(ctx context.Context) (func(), error) {
	token := util.GenUUID()
	ticker := time.NewTicker(r.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, "failed to acquire redis lock")
		}
		if ok {
			stop, done := make(chan struct{}), make(chan struct{})
			go r.keepAlive(token, stop, done)
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					r.release(token)
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// keepAlive renews the TTL of a held lock until stop is closed.
func (r *Redis) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := r.ttl / 3
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		renewed, err := renewScript.Run(ctx, r.client, []string{r.key}, token, r.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			slog.Warn("failed to renew redis lock", "key", r.key, "error", err)
			continue
		}
		if renewed == 0 {
			slog.Error("redis lock expired while held", "key", r.key)
			return
		}
	}
}

func (r *Redis) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil {
		slog.Warn("failed to release redis lock", "key", r.key, "error", err)
	}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
