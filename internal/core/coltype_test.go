package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloatDigitsFromBinaryPrecision(t *testing.T) {
	assert.Equal(t, 7, Float(24).Precision)  // IEEE-754 single
	assert.Equal(t, 15, Float(53).Precision) // IEEE-754 double
}

func TestIsNumericKey(t *testing.T) {
	assert.True(t, Integer().IsNumericKey())
	assert.False(t, UUID().IsNumericKey())
	assert.False(t, Text().IsNumericKey())
}

func TestComparable(t *testing.T) {
	assert.True(t, Comparable(Decimal(2), Decimal(4)))
	assert.False(t, Comparable(Integer(), Text()))
}
