package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsDeterministicAndDistinct(t *testing.T) {
	c := New(nil, time.Minute, nil)
	k1 := c.Key("tokyo", "contents", "10", "1")
	k2 := c.Key("tokyo", "contents", "10", "1")
	k3 := c.Key("tokyo", "contents", "10", "2")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.True(t, strings.HasPrefix(k1, "webir:search:"))
}

func TestGetOrComputeWithoutRedisComputes(t *testing.T) {
	c := New(nil, time.Minute, nil)
	payload, hit, err := c.GetOrCompute(context.Background(), "k", func(context.Context) ([]byte, error) {
		return []byte("result"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("result"), payload)
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	c := New(nil, time.Minute, nil)
	_, _, err := c.GetOrCompute(context.Background(), "k", func(context.Context) ([]byte, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGetOrComputeCollapsesConcurrentCalls(t *testing.T) {
	c := New(nil, time.Minute, nil)
	var calls int32
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return []byte("shared"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, _, err := c.GetOrCompute(context.Background(), "same-key", compute)
			assert.NoError(t, err)
			assert.Equal(t, []byte("shared"), payload)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvalidateWithoutRedisIsNoop(t *testing.T) {
	c := New(nil, time.Minute, nil)
	assert.NoError(t, c.Invalidate(context.Background()))
}
