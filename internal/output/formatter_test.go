package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatter(t *testing.T) {
	t.Run("defaults to human", func(t *testing.T) {
		f, err := NewFormatter("")
		require.NoError(t, err)
		assert.IsType(t, humanFormatter{}, f)
	})

	t.Run("json", func(t *testing.T) {
		f, err := NewFormatter("JSON")
		require.NoError(t, err)
		assert.IsType(t, jsonFormatter{}, f)
	})

	t.Run("summary", func(t *testing.T) {
		f, err := NewFormatter("summary")
		require.NoError(t, err)
		assert.IsType(t, summaryFormatter{}, f)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewFormatter("xml")
		assert.Error(t, err)
	})
}
