package snowflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	funcs := (&Adapter{}).NormalizeFuncs()

	t.Run("nanosecond precision rounds to microseconds", func(t *testing.T) {
		got := funcs.FormatTimestamp("`ts`", 9, true)
		assert.Equal(t, "TO_CHAR(DATEADD(nanosecond, 500, `ts`), 'YYYY-MM-DD HH24:MI:SS.FF6')", got)
	})

	t.Run("microsecond precision formats directly", func(t *testing.T) {
		got := funcs.FormatTimestamp("`ts`", 6, true)
		assert.Equal(t, "TO_CHAR(`ts`, 'YYYY-MM-DD HH24:MI:SS.FF6')", got)
	})
}

func TestMD5ToIntSQL(t *testing.T) {
	a := &Adapter{}
	assert.Equal(t, "TO_NUMBER(SUBSTRING(MD5(x), 1, 15), 'XXXXXXXXXXXXXXX')", a.MD5ToIntSQL("MD5(x)"))
}
