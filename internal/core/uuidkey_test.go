package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datadiff/internal/errs"
)

func TestUUIDBigIntRoundTrip(t *testing.T) {
	id := uuid.New()
	v, err := UUIDToBigInt(id.String())
	require.NoError(t, err)

	back, err := BigIntToUUID(v)
	require.NoError(t, err)
	assert.Equal(t, id.String(), back)
}

func TestUUIDToBigIntRejectsMalformed(t *testing.T) {
	_, err := UUIDToBigInt("not-a-uuid")
	require.Error(t, err)
	assert.IsType(t, &errs.ValueError{}, err)
}
