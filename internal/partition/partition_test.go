package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSpace(t *testing.T) {
	t.Run("wide range", func(t *testing.T) {
		points := SplitSpace(0, 100, 3)
		require.Len(t, points, 3)
		assert.True(t, isStrictlyIncreasing(points))
		for _, p := range points {
			assert.Greater(t, p, int64(0))
			assert.Less(t, p, int64(100))
		}
	})

	t.Run("narrow range forces compression", func(t *testing.T) {
		// (0, 3) holds only 2 integers, so 31 points cannot all fit:
		// they compress to 1..31.
		points := SplitSpace(0, 3, 31)
		require.Len(t, points, 31)
		assert.True(t, isStrictlyIncreasing(points))
		for i, p := range points {
			assert.Greater(t, p, int64(0))
			assert.Equal(t, int64(i+1), p)
		}
	})

	t.Run("n=1 picks midpoint", func(t *testing.T) {
		points := SplitSpace(0, 10, 1)
		require.Len(t, points, 1)
		assert.Equal(t, int64(5), points[0])
	})

	t.Run("panics on empty range", func(t *testing.T) {
		assert.Panics(t, func() { SplitSpace(5, 5, 1) })
	})
}

func TestBounds(t *testing.T) {
	ranges := Bounds(0, 100, []int64{25, 50, 75})
	assert.Equal(t, [][2]int64{{0, 25}, {25, 50}, {50, 75}, {75, 100}}, ranges)
}

func isStrictlyIncreasing(points []int64) bool {
	for i := 1; i < len(points); i++ {
		if points[i] <= points[i-1] {
			return false
		}
	}
	return true
}
