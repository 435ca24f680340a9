package normalize

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datadiff/internal/core"
)

func testFuncs() Funcs {
	return Funcs{
		Trim:   func(expr string) string { return "TRIM(" + expr + ")" },
		ToChar: func(expr string, scale int) string { return fmt.Sprintf("TOCHAR(%s,%d)", expr, scale) },
		FormatTimestamp: func(expr string, prec int, rounds bool) string {
			return fmt.Sprintf("FMTTS(%s,%d,%v)", expr, prec, rounds)
		},
	}
}

func TestExpr(t *testing.T) {
	funcs := testFuncs()

	t.Run("integer passes through", func(t *testing.T) {
		expr, err := Expr("col", core.Integer(), funcs)
		require.NoError(t, err)
		assert.Equal(t, "col", expr)
	})

	t.Run("text passes through", func(t *testing.T) {
		expr, err := Expr("col", core.Text(), funcs)
		require.NoError(t, err)
		assert.Equal(t, "col", expr)
	})

	t.Run("decimal uses ToChar", func(t *testing.T) {
		expr, err := Expr("col", core.Decimal(2), funcs)
		require.NoError(t, err)
		assert.Equal(t, "TOCHAR(col,2)", expr)
	})

	t.Run("uuid trims", func(t *testing.T) {
		expr, err := Expr("col", core.UUID(), funcs)
		require.NoError(t, err)
		assert.Equal(t, "TRIM(col)", expr)
	})

	t.Run("unknown refuses to participate", func(t *testing.T) {
		_, err := Expr("col", core.Unknown("geometry"), funcs)
		assert.Error(t, err)
	})
}

func TestFormatDecimalText(t *testing.T) {
	assert.Equal(t, "1.50", FormatDecimalText(1.5, 2))
	assert.Equal(t, "2", FormatDecimalText(2.0, 0))
	// round-half-to-even: 0.125 at scale 2 rounds to the even neighbor 0.12.
	assert.Equal(t, "0.12", FormatDecimalText(0.125, 2))
}
