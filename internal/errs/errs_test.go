package errs

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect(t *testing.T) {
	cause := errors.New("connection refused")
	err := Connect("mysql", cause)
	assert.Contains(t, err.Error(), "mysql")
	assert.ErrorIs(t, err, cause)
}

func TestQuery_RedactsLongSQL(t *testing.T) {
	longSQL := "SELECT " + strings.Repeat("a, ", 100) + "1"
	err := Query(longSQL, "[0, 100)", errors.New("syntax error"))
	msg := err.Error()
	assert.Contains(t, msg, "[0, 100)")
	assert.Contains(t, msg, "[redacted]")
	assert.Less(t, len(msg), len(longSQL))
}

func TestQuery_ShortSQLUnredacted(t *testing.T) {
	err := Query("SELECT 1", "", errors.New("boom"))
	assert.Contains(t, err.Error(), "SELECT 1")
	assert.NotContains(t, err.Error(), "redacted")
}

func TestValueAndType(t *testing.T) {
	assert.Contains(t, Value("bad bound %d", 5).Error(), "bad bound 5")
	assert.Contains(t, Type("mismatch %q", "x").Error(), `mismatch "x"`)
}

func TestNotImplemented(t *testing.T) {
	err := NotImplemented("offset > 0 on %s", "bigquery")
	assert.Contains(t, err.Error(), "bigquery")
}
