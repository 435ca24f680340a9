package oracle

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"datadiff/internal/core"
)

func TestFormatTimestamp(t *testing.T) {
	funcs := (&Adapter{}).NormalizeFuncs()

	t.Run("nanosecond precision rounds to microseconds", func(t *testing.T) {
		got := funcs.FormatTimestamp(`"TS"`, 9, true)
		assert.Equal(t, `TO_CHAR(("TS" + INTERVAL '0.0000005' SECOND), 'YYYY-MM-DD HH24:MI:SS.FF6')`, got)
	})

	t.Run("microsecond precision formats directly", func(t *testing.T) {
		got := funcs.FormatTimestamp(`"TS"`, 6, true)
		assert.Equal(t, `TO_CHAR("TS", 'YYYY-MM-DD HH24:MI:SS.FF6')`, got)
	})

	t.Run("DATE pads a fixed fraction", func(t *testing.T) {
		got := funcs.FormatTimestamp(`"D"`, 0, true)
		assert.Equal(t, `TO_CHAR("D", 'YYYY-MM-DD HH24:MI:SS') || '.000000'`, got)
	})
}

func TestMapColType(t *testing.T) {
	scale := func(n int64) sql.NullInt64 { return sql.NullInt64{Int64: n, Valid: true} }
	none := sql.NullInt64{}

	assert.Equal(t, core.Integer(), mapColType("NUMBER", scale(38), scale(0)))
	assert.Equal(t, core.Decimal(2), mapColType("NUMBER", scale(10), scale(2)))
	assert.Equal(t, core.Temporal(0, true), mapColType("DATE", none, none))
	assert.Equal(t, core.Temporal(9, true), mapColType("TIMESTAMP(9)", none, scale(9)))
	assert.Equal(t, core.Temporal(6, true), mapColType("TIMESTAMP(6)", none, scale(6)))
	assert.Equal(t, core.Text(), mapColType("VARCHAR2", none, none))
}
