package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisSequencer(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()
	seq := NewRedisSequencer(client, InvoiceCounterName)

	current, err := seq.Current(ctx)
	require.NoError(t, err)
	assert.Zero(t, current)

	n, err := seq.Next(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, seq.Seed(ctx, 41))
	n, err = seq.Next(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)

	// Seeding never lowers the counter.
	require.NoError(t, seq.Seed(ctx, 5))
	current, err = seq.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 42, current)
}

func TestRedisSequencer_ConcurrentNextIsUnique(t *testing.T) {
	_, client := setupMiniredis(t)
	seq := NewRedisSequencer(client, InvoiceCounterName)

	const workers = 20
	results := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := seq.Next(context.Background())
			if assert.NoError(t, err) {
				results <- n
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	for n := range results {
		assert.False(t, seen[n], "number %d handed out twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
}

func TestDBSequencer(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seq := NewDBSequencer(db, InvoiceCounterName)
	other := NewDBSequencer(db, "credit-note")

	for want := int64(1); want <= 3; want++ {
		n, err := seq.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := other.Next(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	current, err := seq.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, current)
}

func TestRedisSequencer_MirrorsIntoTable(t *testing.T) {
	_, client := setupMiniredis(t)
	db := setupTestDB(t)
	ctx := context.Background()

	table := NewDBSequencer(db, InvoiceCounterName)
	for i := 0; i < 3; i++ {
		_, err := table.Next(ctx)
		require.NoError(t, err)
	}

	seq := NewRedisSequencer(client, InvoiceCounterName).MirrorTo(table)
	issued, err := table.Current(ctx)
	require.NoError(t, err)
	require.NoError(t, seq.Seed(ctx, issued))

	for want := int64(4); want <= 5; want++ {
		n, err := seq.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	// Dropping redis continues after the last number it handed out.
	n, err := table.Next(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)

	require.NoError(t, table.Advance(ctx, 2))
	current, err := table.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, current, "advance never lowers the counter")
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-0001", FormatInvoiceNumber(1))
	assert.Equal(t, "INV-0123", FormatInvoiceNumber(123))
	assert.Equal(t, "INV-12345", FormatInvoiceNumber(12345))
}

func TestRedisLimiter(t *testing.T) {
	mr, client := setupMiniredis(t)
	ctx := context.Background()
	limiter := NewRedisLimiter(client, "test:", 2, time.Minute)

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "signin:ip")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "signin:ip")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	allowed, _, err = limiter.Allow(ctx, "signin:other")
	require.NoError(t, err)
	assert.True(t, allowed, "keys are counted separately")

	mr.FastForward(time.Minute + time.Second)
	allowed, _, err = limiter.Allow(ctx, "signin:ip")
	require.NoError(t, err)
	assert.True(t, allowed, "window resets")
}

func TestRedisLimiter_Disabled(t *testing.T) {
	_, client := setupMiniredis(t)
	limiter := NewRedisLimiter(client, "", 0, time.Minute)
	for i := 0; i < 5; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
