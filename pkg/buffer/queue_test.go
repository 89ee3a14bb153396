package buffer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PutGet(t *testing.T) {
	q, err := NewQueue[int](4)
	require.NoError(t, err)

	require.NoError(t, q.Put(1))
	require.NoError(t, q.Put(2))
	assert.Equal(t, 2, q.Len())

	got, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestQueue_DropOldestOnOverflow(t *testing.T) {
	var dropped []int
	q, err := NewQueue(2, WithDropHandler(func(v int) {
		dropped = append(dropped, v)
	}))
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Put(i))
	}

	// Oldest three evicted; newest two remain in order
	assert.Equal(t, []int{1, 2, 3}, dropped)
	assert.Equal(t, []int{4, 5}, q.DrainLatest(10))

	_, _, drops := q.Stats()
	assert.Equal(t, int64(3), drops)
}

func TestQueue_DrainLatestBounded(t *testing.T) {
	q, err := NewQueue[int](8)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		require.NoError(t, q.Put(i))
	}

	assert.Equal(t, []int{0, 1, 2}, q.DrainLatest(3))
	assert.Equal(t, 3, q.Len())
}

func TestQueue_GetBlocksUntilPut(t *testing.T) {
	q, err := NewQueue[string](1)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Put("hello")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestQueue_GetHonorsContext(t *testing.T) {
	q, err := NewQueue[int](1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = q.Get(ctx)
	assert.Error(t, err)
}

func TestQueue_Close(t *testing.T) {
	q, err := NewQueue[int](4)
	require.NoError(t, err)
	require.NoError(t, q.Put(7))

	q.Close()

	// Buffered item still readable, then exhausted
	got, ok := q.TryGet()
	assert.True(t, ok)
	assert.Equal(t, 7, got)
	_, ok = q.TryGet()
	assert.False(t, ok)

	assert.Error(t, q.Put(8))
}

func TestQueue_RejectsZeroCapacity(t *testing.T) {
	_, err := NewQueue[int](0)
	assert.Error(t, err)
}
