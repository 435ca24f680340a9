package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapOrdered_PreservesOrder(t *testing.T) {
	inputs := []int{4, 3, 2, 1, 0}
	results, err := MapOrdered(context.Background(), inputs, 4, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{16, 9, 4, 1, 0}, results)
}

func TestMapOrdered_BoundsConcurrency(t *testing.T) {
	var inFlight, maxInFlight int64
	inputs := make([]int, 20)
	_, err := MapOrdered(context.Background(), inputs, 3, func(_ context.Context, _ int) (int, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		defer atomic.AddInt64(&inFlight, -1)
		for {
			m := atomic.LoadInt64(&maxInFlight)
			if cur <= m || atomic.CompareAndSwapInt64(&maxInFlight, m, cur) {
				break
			}
		}
		return 0, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(3))
}

func TestMapOrdered_FirstErrorWins(t *testing.T) {
	inputs := []int{1, 2, 3}
	_, err := MapOrdered(context.Background(), inputs, 0, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, fmt.Errorf("boom on %d", n)
		}
		return n, nil
	})
	assert.ErrorContains(t, err, "boom on 2")
}
