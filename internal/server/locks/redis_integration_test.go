//go:build integration

package locks_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/educhain/internal/server/locks"
	"github.com/dmitrijs2005/educhain/internal/testutil/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	client := containers.NewRedis(t)
	a := locks.NewRedisLocker(client, time.Minute)
	b := locks.NewRedisLocker(client, time.Minute)

	release, ok, err := a.TryLock(ctx, "verify:doc-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx, "verify:doc-1")
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not acquire a held lock")

	_, ok, err = b.TryLock(ctx, "verify:doc-2")
	require.NoError(t, err)
	assert.True(t, ok, "locks are per key")

	release()
	release()

	_, ok, err = b.TryLock(ctx, "verify:doc-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_StaleReleaseKeepsNewHolder(t *testing.T) {
	ctx := context.Background()
	client := containers.NewRedis(t)
	short := locks.NewRedisLocker(client, 500*time.Millisecond)

	staleRelease, ok, err := short.TryLock(ctx, "verify:doc-1")
	require.NoError(t, err)
	require.True(t, ok)

	var acquired bool
	require.Eventually(t, func() bool {
		_, acquired, err = short.TryLock(ctx, "verify:doc-1")
		return err == nil && acquired
	}, 5*time.Second, 100*time.Millisecond)

	// The expired holder releasing must not free the new holder's lock.
	staleRelease()
	_, ok, err = short.TryLock(ctx, "verify:doc-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLocker_OneWinnerUnderContention(t *testing.T) {
	ctx := context.Background()
	client := containers.NewRedis(t)
	l := locks.NewRedisLocker(client, time.Minute)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := l.TryLock(ctx, "verify:contended"); err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
