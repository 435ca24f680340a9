// Command datadiff compares the row content of two tables, possibly on
// different database engines: it parses two table URIs, builds a
// segment for each, runs the bisection engine, and prints the
// resulting diff.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"datadiff/internal/adapter"
	_ "datadiff/internal/adapter/bigquery"
	_ "datadiff/internal/adapter/mysql"
	_ "datadiff/internal/adapter/oracle"
	_ "datadiff/internal/adapter/postgres"
	_ "datadiff/internal/adapter/presto"
	_ "datadiff/internal/adapter/redshift"
	_ "datadiff/internal/adapter/snowflake"
	"datadiff/internal/config"
	"datadiff/internal/core"
	"datadiff/internal/differ"
	"datadiff/internal/logging"
	"datadiff/internal/output"
	"datadiff/internal/segment"
)

type diffFlags struct {
	keyColumn          string
	updateColumn       string
	extraColumns       []string
	bisectionFactor    int
	bisectionThreshold int64
	threads            int
	format             string
	configPath         string
	explain            bool
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := &diffFlags{}
	cmd := &cobra.Command{
		Use:   "datadiff <table-uri-1> <table-uri-2>",
		Short: "Diff two tables' row content across database engines",
		Long: `datadiff compares the row content of two tables, possibly on different
database engines, without transferring full table contents over the wire
whenever the tables largely agree: matching key ranges are ruled out by
checksum, and only ranges that differ are downloaded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.keyColumn, "key", "k", "id", "Primary key column, shared by both tables")
	cmd.Flags().StringVar(&flags.updateColumn, "update-column", "", "Optional last-modified column to bound the diff by time")
	cmd.Flags().StringSliceVarP(&flags.extraColumns, "columns", "c", nil, "Extra columns to compare besides the key (comma-separated)")
	cmd.Flags().IntVar(&flags.bisectionFactor, "bisection-factor", differ.DefaultConfig().BisectionFactor, "Sub-segments per recursion level")
	cmd.Flags().Int64Var(&flags.bisectionThreshold, "bisection-threshold", differ.DefaultConfig().BisectionThreshold, "Row-count ceiling below which a segment is downloaded instead of bisected")
	cmd.Flags().IntVar(&flags.threads, "threads", differ.DefaultConfig().MaxThreadpoolSize, "Max concurrent checksum/download queries")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "human", "Output format: human, json, or summary")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "Path to a datadiff.toml file with named connection profiles")
	cmd.Flags().BoolVar(&flags.explain, "explain", false, "Before running, print the SQL of each top-level count+checksum query and prompt to continue")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}
	return exitCode
}

// exitCode is set by runDiff so the cobra RunE/Execute() error path
// (which only distinguishes success/failure) can still report the
// three-way exit status: 0 clean, 1 differences found, 2 error.
var exitCode int

func runDiff(cmd *cobra.Command, uriA, uriB string, flags *diffFlags) error {
	ctx := context.Background()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		exitCode = 2
		return err
	}

	// Config-file defaults apply only where the operator didn't pass an
	// explicit flag.
	if cfg.Defaults.BisectionFactor > 0 && !cmd.Flags().Changed("bisection-factor") {
		flags.bisectionFactor = cfg.Defaults.BisectionFactor
	}
	if cfg.Defaults.BisectionThreshold > 0 && !cmd.Flags().Changed("bisection-threshold") {
		flags.bisectionThreshold = int64(cfg.Defaults.BisectionThreshold)
	}
	if cfg.Defaults.MaxThreadpoolSize > 0 && !cmd.Flags().Changed("threads") {
		flags.threads = cfg.Defaults.MaxThreadpoolSize
	}

	segA, dbA, err := buildSegment(ctx, cfg, uriA, flags)
	if err != nil {
		exitCode = 2
		return err
	}
	defer dbA.Close()

	segB, dbB, err := buildSegment(ctx, cfg, uriB, flags)
	if err != nil {
		exitCode = 2
		return err
	}
	defer dbB.Close()

	if flags.explain {
		if err := explainSegments(ctx, segA, segB); err != nil {
			exitCode = 2
			return err
		}
	}

	engineCfg := differ.Config{
		BisectionFactor:    flags.bisectionFactor,
		BisectionThreshold: flags.bisectionThreshold,
		MaxThreadpoolSize:  flags.threads,
	}
	d, err := differ.New(engineCfg, logging.New(os.Stderr))
	if err != nil {
		exitCode = 2
		return err
	}

	records, errCh, stats, err := d.DiffTables(ctx, segA, segB)
	if err != nil {
		exitCode = 2
		return err
	}

	var collected []differ.DiffRecord
	for rec := range records {
		collected = append(collected, rec)
	}
	if err := <-errCh; err != nil {
		exitCode = 2
		return err
	}

	formatter, err := output.NewFormatter(flags.format)
	if err != nil {
		exitCode = 2
		return err
	}
	rendered, err := formatter.Format(collected, stats.Snapshot())
	if err != nil {
		exitCode = 2
		return err
	}
	fmt.Print(rendered)

	if len(collected) > 0 {
		exitCode = 1
		return nil
	}
	exitCode = 0
	return nil
}

// buildSegment parses a table URI of the form
// "scheme://dsn-remainder/schema.table" (or a bare config-profile name
// followed by "#schema.table") into a connected adapter and a Segment
// ready for WithSchema.
func buildSegment(ctx context.Context, cfg *config.File, uri string, flags *diffFlags) (*segment.Segment, adapter.Adapter, error) {
	dialectName, dsn, tablePath, err := parseTableURI(cfg, uri)
	if err != nil {
		return nil, nil, err
	}
	if !core.ValidDialect(dialectName) {
		return nil, nil, fmt.Errorf("unsupported dialect %q", dialectName)
	}

	db, err := adapter.New(core.Dialect(dialectName), dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Connect(ctx); err != nil {
		return nil, nil, err
	}

	path, err := db.ParseTableName(tablePath)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var opts []segment.Option
	if len(flags.extraColumns) > 0 {
		opts = append(opts, segment.WithExtraColumns(flags.extraColumns))
	}
	if flags.updateColumn != "" {
		opts = append(opts, segment.WithUpdateColumn(flags.updateColumn))
	}

	seg, err := segment.New(db, path, flags.keyColumn, opts...)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return seg, db, nil
}

// parseTableURI splits a table reference into a dialect name, a DSN
// suitable for the adapter's Constructor, and the table path component.
// Two forms are accepted: a full "scheme://host/.../schema.table" URI,
// or "profile#schema.table" naming a profile from datadiff.toml (§10.3)
// to supply the dialect and DSN. Scheme names match core.Dialect values
// 1:1 (e.g. "postgresql" for core.DialectPostgreSQL).
func parseTableURI(cfg *config.File, uri string) (dialectName, dsn, tablePath string, err error) {
	if name, table, ok := strings.Cut(uri, "#"); ok {
		profile, found := cfg.Resolve(name)
		if !found {
			return "", "", "", fmt.Errorf("no profile %q in config", name)
		}
		return profile.Dialect, profile.DSN, table, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", fmt.Errorf("parsing table URI %q: %w", uri, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "postgresql" {
		scheme = string(core.DialectPostgreSQL)
	}

	path := strings.TrimPrefix(u.Path, "/")
	idx := strings.LastIndexByte(path, '/')
	var rest string
	if idx >= 0 {
		tablePath = path[idx+1:]
		rest = path[:idx]
	} else {
		tablePath = path
	}

	u.Scheme = ""
	u.Path = "/" + rest
	dsn = strings.TrimPrefix(u.String(), "//")
	return scheme, dsn, tablePath, nil
}

// explainSegments prints the SQL text of each segment's top-level
// count_and_checksum query and waits for the operator to confirm before
// the real run begins. It does not ask the database for a query plan.
func explainSegments(ctx context.Context, segs ...*segment.Segment) error {
	for i, s := range segs {
		resolved, err := s.WithSchema(ctx)
		if err != nil {
			return err
		}
		sqlText, err := resolved.CountAndChecksumSQL()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "-- table %d: %s\n%s\n\n", i+1, resolved.TableRef(), sqlText)
	}
	fmt.Fprint(os.Stderr, "Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if !strings.EqualFold(strings.TrimSpace(answer), "y") {
		return fmt.Errorf("aborted by operator")
	}
	return nil
}
