package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"datadiff/internal/adapter"
	_ "datadiff/internal/adapter/mysql" // registers core.DialectMySQL with adapter.New
	"datadiff/internal/core"
	"datadiff/internal/differ"
	"datadiff/internal/logging"
	"datadiff/internal/segment"
)

// testMySQLContainer holds a running MySQL container plus a direct
// *sql.DB used for fixture setup.
type testMySQLContainer struct {
	dsn string
	db  *sql.DB
}

func setupMySQL(t *testing.T) *testMySQLContainer {
	t.Helper()
	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err, "failed to open direct DB connection")
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() { _ = db.Close() })

	return &testMySQLContainer{dsn: dsn, db: db}
}

// newSegment connects a fresh adapter.Adapter against tc's database and
// builds a Segment over table, closing the adapter when the test ends.
func newSegment(t *testing.T, tc *testMySQLContainer, table string) *segment.Segment {
	t.Helper()
	ctx := context.Background()

	db, err := adapter.New(core.DialectMySQL, tc.dsn)
	require.NoError(t, err)
	require.NoError(t, db.Connect(ctx))
	t.Cleanup(func() { _ = db.Close() })

	path, err := db.ParseTableName(table)
	require.NoError(t, err)

	seg, err := segment.New(db, path, "userid", segment.WithExtraColumns([]string{"rating", "ts"}))
	require.NoError(t, err)
	return seg
}

// TestDiffTablesIntegration drives internal/differ end-to-end against a
// live MySQL container: an empty-vs-empty pair, a small diff below the
// bisection threshold, and identical tables pruned by checksum.
func TestDiffTablesIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupMySQL(t)
	ctx := context.Background()

	mustExec := func(query string) {
		_, err := tc.db.ExecContext(ctx, query)
		require.NoError(t, err)
	}

	ddl := `(userid BIGINT PRIMARY KEY, rating INT NOT NULL, ts DATETIME(6) NOT NULL)`
	mustExec("CREATE TABLE source " + ddl)
	mustExec("CREATE TABLE target " + ddl)
	mustExec("CREATE TABLE empty_a " + ddl)
	mustExec("CREATE TABLE empty_b " + ddl)

	t.Run("S1 empty vs empty", func(t *testing.T) {
		a := newSegment(t, tc, "empty_a")
		b := newSegment(t, tc, "empty_b")

		d, err := differ.New(differ.DefaultConfig(), logging.Discard())
		require.NoError(t, err)

		records, errCh, stats, err := d.DiffTables(ctx, a, b)
		require.NoError(t, err)

		var got []differ.DiffRecord
		for rec := range records {
			got = append(got, rec)
		}
		require.NoError(t, <-errCh)

		assert.Empty(t, got)
		assert.Equal(t, int64(0), stats.Snapshot().RowsDownloaded)
	})

	t.Run("S2 small diff below threshold", func(t *testing.T) {
		mustExec(`INSERT INTO source (userid, rating, ts) VALUES
			(1, 9, '2022-01-01 00:00:00'), (2, 9, '2022-01-01 00:00:00')`)
		mustExec(`INSERT INTO target (userid, rating, ts) VALUES
			(1, 9, '2022-01-01 00:00:00')`)

		a := newSegment(t, tc, "source")
		b := newSegment(t, tc, "target")

		d, err := differ.New(differ.DefaultConfig(), logging.Discard())
		require.NoError(t, err)

		records, errCh, stats, err := d.DiffTables(ctx, a, b)
		require.NoError(t, err)

		var got []differ.DiffRecord
		for rec := range records {
			got = append(got, rec)
		}
		require.NoError(t, <-errCh)

		require.Len(t, got, 1)
		assert.Equal(t, differ.SignRemove, got[0].Sign)
		assert.Equal(t, "2", fmt.Sprint(got[0].Row[0]))

		snap := stats.Snapshot()
		assert.Equal(t, int64(2), snap.Table1Count)
		assert.Equal(t, int64(1), snap.Table2Count)
	})

	// Identical tables with a threshold low enough that the engine must
	// prove equality by checksum rather than by download. SUM here runs
	// over 64 60-bit per-row values, so any lossy coercion in the
	// checksum SQL (e.g. summing CONV's VARCHAR result through DOUBLE)
	// shows up as a spurious diff or an unexpected download.
	t.Run("checksum prunes identical tables", func(t *testing.T) {
		mustExec("CREATE TABLE sums_a " + ddl)
		mustExec("CREATE TABLE sums_b " + ddl)
		for i := 1; i <= 64; i++ {
			row := fmt.Sprintf("(%d, %d, '2022-01-01 00:00:00')", i, i%7)
			mustExec("INSERT INTO sums_a (userid, rating, ts) VALUES " + row)
			mustExec("INSERT INTO sums_b (userid, rating, ts) VALUES " + row)
		}

		a := newSegment(t, tc, "sums_a")
		b := newSegment(t, tc, "sums_b")

		cfg := differ.Config{BisectionFactor: 2, BisectionThreshold: 2, MaxThreadpoolSize: 1}
		d, err := differ.New(cfg, logging.Discard())
		require.NoError(t, err)

		records, errCh, stats, err := d.DiffTables(ctx, a, b)
		require.NoError(t, err)

		var got []differ.DiffRecord
		for rec := range records {
			got = append(got, rec)
		}
		require.NoError(t, <-errCh)

		assert.Empty(t, got)
		snap := stats.Snapshot()
		assert.Equal(t, int64(0), snap.RowsDownloaded)
		assert.GreaterOrEqual(t, snap.SegmentsChecksummed, int64(1))
	})
}
