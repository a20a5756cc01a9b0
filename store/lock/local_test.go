package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockMutualExclusion(t *testing.T) {
	l := NewLocal()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background())
			require.NoError(t, err)
			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLocalLockContextCancel(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultRedisConfigApplied(t *testing.T) {
	r := NewRedisWithClient(nil, &RedisConfig{})
	assert.Equal(t, "agenda:calendar:lock", r.key)
	assert.Equal(t, 10*time.Second, r.ttl)
	assert.Equal(t, 50*time.Millisecond, r.retryInterval)
}
