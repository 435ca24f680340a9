package segment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datadiff/internal/adapter"
	"datadiff/internal/core"
	"datadiff/internal/normalize"
)

// fakeAdapter is a scriptable stand-in for a real database/sql-backed
// adapter: each test configures the canned response for the one or two
// queries the method under test is expected to issue, and fakeAdapter
// records the generated SQL so tests can assert on its shape without
// needing a real SQL parser.
type fakeAdapter struct {
	schema    core.Schema
	lastSQL   string
	scalar    any
	scalarErr error
	row       adapter.Row
	rowErr    error
	rows      []adapter.Row
	rowsErr   error
}

func (f *fakeAdapter) Connect(context.Context) error { return nil }
func (f *fakeAdapter) Close() error                  { return nil }

func (f *fakeAdapter) QueryScalar(_ context.Context, sql string) (any, error) {
	f.lastSQL = sql
	return f.scalar, f.scalarErr
}

func (f *fakeAdapter) QueryRow(_ context.Context, sql string) (adapter.Row, error) {
	f.lastSQL = sql
	return f.row, f.rowErr
}

func (f *fakeAdapter) QueryRows(_ context.Context, sql string) ([]adapter.Row, error) {
	f.lastSQL = sql
	return f.rows, f.rowsErr
}

func (f *fakeAdapter) Quote(identifier string) string { return "`" + identifier + "`" }

func (f *fakeAdapter) ParseTableName(s string) (core.TablePath, error) {
	return core.ParseTablePath(s)
}

func (f *fakeAdapter) NormalizeTablePath(path core.TablePath) (string, string, error) {
	return path.Normalize("")
}

func (f *fakeAdapter) QueryTableSchema(context.Context, core.TablePath, []string) (core.Schema, error) {
	return f.schema, nil
}

func (f *fakeAdapter) SampleTextColumn(context.Context, core.TablePath, string) ([]string, error) {
	return nil, nil
}

func (f *fakeAdapter) NormalizeFuncs() normalize.Funcs {
	return normalize.Funcs{
		Trim:            func(e string) string { return "TRIM(" + e + ")" },
		ToChar:          func(e string, scale int) string { return "TOCHAR(" + e + ")" },
		FormatTimestamp: func(e string, p int, r bool) string { return "FMTTS(" + e + ")" },
	}
}

func (f *fakeAdapter) OffsetLimit(offset, limit *int) (string, error) { return "", nil }

func (f *fakeAdapter) HashConcat(parts []string) string {
	return "MD5(CONCAT(" + strings.Join(parts, ", ") + "))"
}

func (f *fakeAdapter) MD5ToIntSQL(hexExpr string) string { return "REDUCE(" + hexExpr + ")" }

func (f *fakeAdapter) Dialect() core.Dialect { return core.DialectMySQL }

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		schema: core.Schema{Columns: []core.Column{
			{Name: "id", Type: core.Integer()},
			{Name: "name", Type: core.Text()},
		}},
	}
}

func TestNew_ValidatesBounds(t *testing.T) {
	db := newFakeAdapter()
	path, _ := core.ParseTablePath("orders")

	t.Run("min > max key rejected", func(t *testing.T) {
		min, max := int64(10), int64(5)
		_, err := New(db, path, "id", WithKeyBounds(&min, &max))
		assert.Error(t, err)
	})

	t.Run("max_update without update column rejected", func(t *testing.T) {
		now := time.Now()
		_, err := New(db, path, "id", WithUpdateBounds(nil, &now))
		assert.Error(t, err)
	})

	t.Run("valid construction", func(t *testing.T) {
		s, err := New(db, path, "id")
		require.NoError(t, err)
		assert.Equal(t, "id", s.KeyColumn)
	})
}

func TestNewKeyBounds(t *testing.T) {
	db := newFakeAdapter()
	path, _ := core.ParseTablePath("orders")
	s, err := New(db, path, "id")
	require.NoError(t, err)

	_, err = s.NewKeyBounds(10, 5)
	assert.Error(t, err)

	s2, err := s.NewKeyBounds(0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), *s2.MinKey)
	assert.Equal(t, int64(100), *s2.MaxKey)
}

func TestChooseCheckpoints(t *testing.T) {
	db := newFakeAdapter()
	path, _ := core.ParseTablePath("orders")
	s, err := New(db, path, "id")
	require.NoError(t, err)

	t.Run("requires bounds", func(t *testing.T) {
		_, err := s.ChooseCheckpoints(4)
		assert.Error(t, err)
	})

	s2, err := s.NewKeyBounds(0, 100)
	require.NoError(t, err)

	t.Run("n=1 has no interior points", func(t *testing.T) {
		points, err := s2.ChooseCheckpoints(1)
		require.NoError(t, err)
		assert.Nil(t, points)
	})

	t.Run("n=4 has 3 interior points", func(t *testing.T) {
		points, err := s2.ChooseCheckpoints(4)
		require.NoError(t, err)
		assert.Len(t, points, 3)
	})
}

func TestCount(t *testing.T) {
	db := newFakeAdapter()
	db.scalar = int64(42)
	path, _ := core.ParseTablePath("orders")
	s, err := New(db, path, "id")
	require.NoError(t, err)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.Contains(t, db.lastSQL, "SELECT COUNT(*) FROM")
}

func TestCountAndChecksum(t *testing.T) {
	path, _ := core.ParseTablePath("orders")

	t.Run("requires resolved schema", func(t *testing.T) {
		db := newFakeAdapter()
		s, err := New(db, path, "id")
		require.NoError(t, err)
		s.schema = core.Schema{} // force unresolved
		_, _, err = s.CountAndChecksum(context.Background())
		assert.Error(t, err)
	})

	t.Run("nonempty segment", func(t *testing.T) {
		db := newFakeAdapter()
		db.row = adapter.Row{int64(10), int64(1<<61 + 5)}
		s, err := New(db, path, "id", WithExtraColumns([]string{"name"}))
		require.NoError(t, err)
		s, err = s.WithSchema(context.Background())
		require.NoError(t, err)

		count, checksum, err := s.CountAndChecksum(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(10), count)
		require.NotNil(t, checksum)
		assert.Equal(t, int64(1<<61+5)&((int64(1)<<60)-1), *checksum)
		assert.Contains(t, db.lastSQL, "REDUCE(MD5(CONCAT(")
	})

	t.Run("empty segment has nil checksum", func(t *testing.T) {
		db := newFakeAdapter()
		db.row = adapter.Row{int64(0), nil}
		s, err := New(db, path, "id")
		require.NoError(t, err)
		s, err = s.WithSchema(context.Background())
		require.NoError(t, err)

		count, checksum, err := s.CountAndChecksum(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
		assert.Nil(t, checksum)
	})
}

func TestDownload(t *testing.T) {
	db := newFakeAdapter()
	db.rows = []adapter.Row{{int64(1), "alice"}, {int64(2), "bob"}}
	path, _ := core.ParseTablePath("orders")
	s, err := New(db, path, "id", WithExtraColumns([]string{"name"}))
	require.NoError(t, err)
	s, err = s.WithSchema(context.Background())
	require.NoError(t, err)

	rows, err := s.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, db.rows, rows)
	assert.Contains(t, db.lastSQL, "ORDER BY `id` ASC")
}

func TestMinMaxKey(t *testing.T) {
	path, _ := core.ParseTablePath("orders")

	t.Run("nonempty table", func(t *testing.T) {
		db := newFakeAdapter()
		db.row = adapter.Row{int64(1), int64(99)}
		s, err := New(db, path, "id")
		require.NoError(t, err)

		min, max, ok, err := s.MinMaxKey(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), min)
		assert.Equal(t, int64(99), max)
	})

	t.Run("empty table", func(t *testing.T) {
		db := newFakeAdapter()
		db.row = adapter.Row{nil, nil}
		s, err := New(db, path, "id")
		require.NoError(t, err)

		_, _, ok, err := s.MinMaxKey(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTableRef(t *testing.T) {
	db := newFakeAdapter()
	path, _ := core.ParseTablePath("sales.orders")
	s, err := New(db, path, "id")
	require.NoError(t, err)
	assert.Equal(t, "`sales`.`orders`", s.TableRef())
}

func TestCountWithUpdateBounds(t *testing.T) {
	db := newFakeAdapter()
	db.scalar = int64(4)
	path, _ := core.ParseTablePath("orders")
	minU := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	maxU := minU.Add(24 * time.Hour)
	s, err := New(db, path, "id",
		WithUpdateColumn("updated_at"),
		WithUpdateBounds(&minU, &maxU))
	require.NoError(t, err)

	_, err = s.Count(context.Background())
	require.NoError(t, err)
	assert.Contains(t, db.lastSQL, "`updated_at` >= '2022-01-01 00:00:00.000000'")
	assert.Contains(t, db.lastSQL, "`updated_at` < '2022-01-02 00:00:00.000000'")
}

func TestHasUnknownColumn(t *testing.T) {
	db := newFakeAdapter()
	db.schema = core.Schema{Columns: []core.Column{
		{Name: "id", Type: core.Integer()},
		{Name: "geom", Type: core.Unknown("geometry")},
	}}
	path, _ := core.ParseTablePath("orders")
	s, err := New(db, path, "id", WithExtraColumns([]string{"geom"}))
	require.NoError(t, err)
	s, err = s.WithSchema(context.Background())
	require.NoError(t, err)

	assert.True(t, s.HasUnknownColumn())

	// Checksums are impossible, but a raw download still works: the
	// unrecognized column is selected unnormalized.
	_, _, err = s.CountAndChecksum(context.Background())
	assert.Error(t, err)

	db.rows = []adapter.Row{{int64(1), "POINT(0 0)"}}
	rows, err := s.Download(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Contains(t, db.lastSQL, "`geom`")
}
