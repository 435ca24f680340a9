// Package differ implements the bisection engine: the recursive diff
// algorithm that, given two segments believed to cover the same key
// range, decides whether to bisect further, recurse, or
// download-and-compare.
package differ

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"

	"datadiff/internal/adapter"
	"datadiff/internal/core"
	"datadiff/internal/errs"
	"datadiff/internal/logging"
	"datadiff/internal/partition"
	"datadiff/internal/pool"
	"datadiff/internal/segment"
)

// Sign distinguishes a deletion ("-", present in source but not target)
// from an addition ("+", the converse).
type Sign string

const (
	SignRemove Sign = "-"
	SignAdd    Sign = "+"
)

// DiffRecord is a single (sign, row) pair, streamed out of the engine
// in ascending key order across the input segments' union range.
type DiffRecord struct {
	Sign Sign
	Row  adapter.Row
}

// Stats accumulates counters during a run, safe for concurrent updates
// from pool workers. It is the only mutable object the engine shares
// across goroutines; everything else (segments, schemas, Config) is
// immutable after construction.
type Stats struct {
	Table1Count         int64
	Table2Count         int64
	RowsDownloaded      int64
	SegmentsChecksummed int64
	SegmentsDownloaded  int64
}

func (s *Stats) addRowsDownloaded(n int64) { atomic.AddInt64(&s.RowsDownloaded, n) }
func (s *Stats) incChecksummed()           { atomic.AddInt64(&s.SegmentsChecksummed, 1) }
func (s *Stats) incDownloaded()            { atomic.AddInt64(&s.SegmentsDownloaded, 1) }
func (s *Stats) setTopLevelCounts(c1, c2 int64) {
	atomic.StoreInt64(&s.Table1Count, c1)
	atomic.StoreInt64(&s.Table2Count, c2)
}

// Snapshot returns a copy of the stats safe to read after (or during,
// approximately) a run.
func (s *Stats) Snapshot() Stats {
	return Stats{
		Table1Count:         atomic.LoadInt64(&s.Table1Count),
		Table2Count:         atomic.LoadInt64(&s.Table2Count),
		RowsDownloaded:      atomic.LoadInt64(&s.RowsDownloaded),
		SegmentsChecksummed: atomic.LoadInt64(&s.SegmentsChecksummed),
		SegmentsDownloaded:  atomic.LoadInt64(&s.SegmentsDownloaded),
	}
}

// Config holds the engine's tunable parameters.
type Config struct {
	// BisectionFactor is the number of sub-segments produced per
	// recursion level. Must be >= 2. Defaults to 32.
	BisectionFactor int
	// BisectionThreshold is the row-count ceiling below which the
	// engine downloads instead of bisecting further. Must be >=
	// BisectionFactor. Defaults to 16384.
	BisectionThreshold int64
	// MaxThreadpoolSize bounds parallelism for checksum and download
	// queries. Defaults to 1 (serial).
	MaxThreadpoolSize int
}

// DefaultConfig returns the defaults every public entry point starts
// from.
func DefaultConfig() Config {
	return Config{
		BisectionFactor:    32,
		BisectionThreshold: 16384,
		MaxThreadpoolSize:  1,
	}
}

func (c Config) validate() error {
	if c.BisectionFactor < 2 {
		return errs.Value("bisection_factor must be >= 2, got %d", c.BisectionFactor)
	}
	if c.BisectionThreshold < int64(c.BisectionFactor) {
		return errs.Value("bisection_threshold (%d) must be >= bisection_factor (%d)", c.BisectionThreshold, c.BisectionFactor)
	}
	return nil
}

// Differ is the bisection engine. One instance can run multiple
// DiffTables calls; each gets its own Stats.
type Differ struct {
	cfg    Config
	logger *logging.Logger
}

// New constructs a Differ, validating cfg eagerly.
func New(cfg Config, logger *logging.Logger) (*Differ, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Differ{cfg: cfg, logger: logger}, nil
}

// DiffTables runs the bisection algorithm over a and b. Precondition
// checks (schema compatibility) and top-level bound discovery/counts
// happen synchronously, before any recursive work is scheduled, so a
// TypeError surfaces immediately rather than mid-stream. Both returned
// channels are closed when the run ends; at most one error is ever
// sent on errCh, so a clean run yields nil. Cancelling ctx abandons in-flight
// recursion: results already sent are not retracted, but nothing
// further is produced.
func (d *Differ) DiffTables(ctx context.Context, a, b *segment.Segment) (<-chan DiffRecord, <-chan error, *Stats, error) {
	stats := &Stats{}

	a, b, err := resolveSchemas(ctx, a, b)
	if err != nil {
		return nil, nil, stats, err
	}
	if err := checkTypeCompatibility(a, b); err != nil {
		return nil, nil, stats, err
	}

	a, b, err = discoverBounds(ctx, a, b)
	if err != nil {
		return nil, nil, stats, err
	}

	opaque := a.HasUnknownColumn() || b.HasUnknownColumn()
	if opaque {
		d.logger.Warn("a projected column has an unrecognized type; checksums unavailable, comparing by full download")
	}

	count1, count2, err := topLevelCounts(ctx, a, b, opaque)
	if err != nil {
		return nil, nil, stats, err
	}
	stats.setTopLevelCounts(count1, count2)

	out := make(chan DiffRecord)
	errCh := make(chan error, 1)

	w := &worker{d: d, stats: stats, out: out, opaque: opaque}

	go func() {
		defer close(out)
		defer close(errCh)
		if err := w.recurse(ctx, a, b); err != nil {
			errCh <- err
		}
	}()

	return out, errCh, stats, nil
}

// resolveSchemas forces schema resolution on both segments if absent.
func resolveSchemas(ctx context.Context, a, b *segment.Segment) (*segment.Segment, *segment.Segment, error) {
	a, err := a.WithSchema(ctx)
	if err != nil {
		return nil, nil, err
	}
	b, err = b.WithSchema(ctx)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// checkTypeCompatibility fails fast with TypeError on mismatched
// column counts or incompatible key/projection types. Engines may
// differ; the tags must agree.
func checkTypeCompatibility(a, b *segment.Segment) error {
	keyA, ok := a.Schema().Lookup(a.KeyColumn)
	if !ok {
		return errs.Type("source key column %q not found in resolved schema", a.KeyColumn)
	}
	keyB, ok := b.Schema().Lookup(b.KeyColumn)
	if !ok {
		return errs.Type("target key column %q not found in resolved schema", b.KeyColumn)
	}
	if !core.Comparable(keyA, keyB) {
		return errs.Type("key column type mismatch: source %q vs target %q", keyA.Kind, keyB.Kind)
	}
	if !keyA.IsNumericKey() && keyA.Kind != core.KindUUID {
		return errs.Value("unsupported key type %q for bisection", keyA.Kind)
	}

	if len(a.ExtraColumns) != len(b.ExtraColumns) {
		return errs.Type("projection column count mismatch: source has %d, target has %d", len(a.ExtraColumns), len(b.ExtraColumns))
	}
	for i, col := range a.ExtraColumns {
		ta, ok := a.Schema().Lookup(col)
		if !ok {
			return errs.Type("source projection column %q not found in resolved schema", col)
		}
		tb, ok := b.Schema().Lookup(b.ExtraColumns[i])
		if !ok {
			return errs.Type("target projection column %q not found in resolved schema", b.ExtraColumns[i])
		}
		if !core.Comparable(ta, tb) {
			return errs.Type("projection column %q/%q type mismatch: %q vs %q", col, b.ExtraColumns[i], ta.Kind, tb.Kind)
		}
	}
	return nil
}

// discoverBounds fills in unspecified key bounds: MIN/MAX on both sides
// in parallel, then lo = min(min_a, min_b), hi = max(max_a, max_b) + 1.
// Bounds are carried as big.Int so an integer key and a UUID key (a
// 128-bit integer once parsed) walk the same code path.
func discoverBounds(ctx context.Context, a, b *segment.Segment) (*segment.Segment, *segment.Segment, error) {
	if _, _, ok := a.KeyBoundsBig(); ok {
		if _, _, ok := b.KeyBoundsBig(); ok {
			return a, b, nil
		}
	}

	type bound struct {
		min, max *big.Int
		ok       bool
	}
	inputs := []*segment.Segment{a, b}
	bounds, err := pool.MapOrdered(ctx, inputs, 2, func(ctx context.Context, s *segment.Segment) (bound, error) {
		min, max, ok, err := s.MinMaxKeyBig(ctx)
		return bound{min, max, ok}, err
	})
	if err != nil {
		return nil, nil, err
	}

	boundA, boundB := bounds[0], bounds[1]
	if !boundA.ok && !boundB.ok {
		// Both sides empty; bisection has nothing to walk. lo==hi makes
		// every downstream count/checksum query legitimately empty.
		zero := big.NewInt(0)
		a2, err := a.NewKeyBoundsBig(zero, zero)
		if err != nil {
			return nil, nil, err
		}
		b2, err := b.NewKeyBoundsBig(zero, zero)
		if err != nil {
			return nil, nil, err
		}
		return a2, b2, nil
	}

	lo := pickBound(boundA.min, boundA.ok, boundB.min, boundB.ok, -1)
	hi := pickBound(boundA.max, boundA.ok, boundB.max, boundB.ok, 1)
	hi = new(big.Int).Add(hi, big.NewInt(1))

	a2, err := a.NewKeyBoundsBig(lo, hi)
	if err != nil {
		return nil, nil, err
	}
	b2, err := b.NewKeyBoundsBig(lo, hi)
	if err != nil {
		return nil, nil, err
	}
	return a2, b2, nil
}

// pickBound returns x or y, preferring the smaller when dir < 0 and the
// larger when dir > 0, skipping whichever side reported no rows.
func pickBound(x *big.Int, xOK bool, y *big.Int, yOK bool, dir int) *big.Int {
	switch {
	case xOK && yOK:
		if dir < 0 && x.Cmp(y) < 0 || dir > 0 && x.Cmp(y) > 0 {
			return x
		}
		return y
	case xOK:
		return x
	default:
		return y
	}
}

// topLevelCounts fetches both segments' row counts in parallel, via
// the combined count+checksum query normally, or a plain COUNT(*) when
// checksums are unavailable.
func topLevelCounts(ctx context.Context, a, b *segment.Segment, opaque bool) (int64, int64, error) {
	counts, err := pool.MapOrdered(ctx, []*segment.Segment{a, b}, 2, func(ctx context.Context, s *segment.Segment) (int64, error) {
		if opaque {
			return s.Count(ctx)
		}
		count, _, err := s.CountAndChecksum(ctx)
		return count, err
	})
	if err != nil {
		return 0, 0, err
	}
	return counts[0], counts[1], nil
}

// worker carries the per-run mutable context (stats, output channel)
// through the recursive walk.
type worker struct {
	d      *Differ
	stats  *Stats
	out    chan<- DiffRecord
	opaque bool // a projected column has no normalization rule; never checksum
}

// recurse walks depth-first on the producer goroutine; at each level it
// fans the bisection_factor children's count_and_checksum calls out
// across the pool (bounded by MaxThreadpoolSize), waits for all of
// them, then visits children in key order, recursing further into
// bisect, or downloading. Because only one subtree is walked at a time,
// total in-flight DB calls never exceed MaxThreadpoolSize even though
// the recursion itself is unbounded in depth.
func (w *worker) recurse(ctx context.Context, a, b *segment.Segment) error {
	if err := ctx.Err(); err != nil {
		return nil // cancellation: abandon silently, nothing retracted.
	}

	if w.opaque {
		return w.download(ctx, a, b)
	}

	countA, checksumA, err := a.CountAndChecksum(ctx)
	if err != nil {
		return err
	}
	countB, checksumB, err := b.CountAndChecksum(ctx)
	if err != nil {
		return err
	}

	return w.compare(ctx, a, b, countA, checksumA, countB, checksumB)
}

// compare decides match / download / bisect given already-fetched
// counts and checksums for a and b.
func (w *worker) compare(ctx context.Context, a, b *segment.Segment, countA int64, checksumA *int64, countB int64, checksumB *int64) error {
	// Both empty: the sub-segment matches trivially.
	if countA == 0 && countB == 0 {
		return nil
	}
	// Equal non-null checksums: the sub-segment matches.
	if checksumA != nil && checksumB != nil && *checksumA == *checksumB {
		w.stats.incChecksummed()
		return nil
	}
	// Exactly one side empty: the non-empty side's rows are the whole
	// diff; download rather than bisect further.
	if countA == 0 || countB == 0 {
		return w.download(ctx, a, b)
	}

	maxCount := countA
	if countB > maxCount {
		maxCount = countB
	}

	if maxCount <= w.d.cfg.BisectionThreshold || w.rangeTooNarrow(a) {
		return w.download(ctx, a, b)
	}

	return w.bisect(ctx, a, b)
}

// rangeTooNarrow reports whether s's key range is at most
// BisectionFactor wide, in which case splitting it further cannot
// produce factor non-empty sub-ranges.
func (w *worker) rangeTooNarrow(s *segment.Segment) bool {
	lo, hi, ok := s.KeyBoundsBig()
	if !ok {
		return false // unbounded: force a bisect attempt.
	}
	width := new(big.Int).Sub(hi, lo)
	return width.Cmp(big.NewInt(int64(w.d.cfg.BisectionFactor))) <= 0
}

// bisect partitions a and b's shared key range into BisectionFactor
// sub-ranges, schedules count_and_checksum for every child pair on the
// pool, then recurses into each child in key order.
func (w *worker) bisect(ctx context.Context, a, b *segment.Segment) error {
	checkpoints, err := a.ChooseCheckpointsBig(w.d.cfg.BisectionFactor)
	if err != nil {
		return err
	}
	lo, hi, _ := a.KeyBoundsBig()
	ranges := partition.BoundsBig(lo, hi, checkpoints)

	type childPair struct {
		a, b                 *segment.Segment
		countA, countB       int64
		checksumA, checksumB *int64
	}

	pairs, err := pool.MapOrdered(ctx, ranges, w.d.cfg.MaxThreadpoolSize, func(ctx context.Context, r [2]*big.Int) (childPair, error) {
		childA, err := a.NewKeyBoundsBig(r[0], r[1])
		if err != nil {
			return childPair{}, err
		}
		childB, err := b.NewKeyBoundsBig(r[0], r[1])
		if err != nil {
			return childPair{}, err
		}

		countA, checksumA, err := childA.CountAndChecksum(ctx)
		if err != nil {
			return childPair{}, err
		}
		countB, checksumB, err := childB.CountAndChecksum(ctx)
		if err != nil {
			return childPair{}, err
		}

		return childPair{childA, childB, countA, countB, checksumA, checksumB}, nil
	})
	if err != nil {
		return err
	}

	for _, p := range pairs {
		if err := w.compare(ctx, p.a, p.b, p.countA, p.checksumA, p.countB, p.checksumB); err != nil {
			return err
		}
	}
	return nil
}

// download fetches both sides in full and stream-merges them on key.
func (w *worker) download(ctx context.Context, a, b *segment.Segment) error {
	w.stats.incDownloaded()

	rowsA, err := a.Download(ctx)
	if err != nil {
		return err
	}
	rowsB, err := b.Download(ctx)
	if err != nil {
		return err
	}
	w.stats.addRowsDownloaded(int64(len(rowsA) + len(rowsB)))

	return w.mergeEmit(ctx, rowsA, rowsB)
}

// mergeEmit performs a sorted-merge join of rowsA/rowsB on their first
// column (the key, already ordered ascending by the download query),
// emitting ("-", a_row) for keys only in a or with differing rows,
// followed by ("+", b_row) when the converse also holds, and respecting
// ctx cancellation between sends for backpressure.
func (w *worker) mergeEmit(ctx context.Context, rowsA, rowsB []adapter.Row) error {
	i, j := 0, 0
	for i < len(rowsA) && j < len(rowsB) {
		switch compareKeys(rowsA[i][0], rowsB[j][0]) {
		case -1:
			if err := w.emit(ctx, DiffRecord{SignRemove, rowsA[i]}); err != nil {
				return err
			}
			i++
		case 1:
			if err := w.emit(ctx, DiffRecord{SignAdd, rowsB[j]}); err != nil {
				return err
			}
			j++
		default:
			if !rowsEqual(rowsA[i], rowsB[j]) {
				if err := w.emit(ctx, DiffRecord{SignRemove, rowsA[i]}); err != nil {
					return err
				}
				if err := w.emit(ctx, DiffRecord{SignAdd, rowsB[j]}); err != nil {
					return err
				}
			}
			i++
			j++
		}
	}
	for ; i < len(rowsA); i++ {
		if err := w.emit(ctx, DiffRecord{SignRemove, rowsA[i]}); err != nil {
			return err
		}
	}
	for ; j < len(rowsB); j++ {
		if err := w.emit(ctx, DiffRecord{SignAdd, rowsB[j]}); err != nil {
			return err
		}
	}
	return nil
}

func (w *worker) emit(ctx context.Context, rec DiffRecord) error {
	select {
	case w.out <- rec:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// compareKeys orders two key values from downloaded rows: numerically
// when both sides scanned as integers, textually otherwise. A
// normalized integer key arrives as int64 from database/sql; a UUID or
// text key arrives as a string, whose canonical fixed-width form orders
// the same lexically as numerically.
func compareKeys(a, b any) int {
	ka, aInt := keyInt(a)
	kb, bInt := keyInt(b)
	if aInt && bInt {
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func keyInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}

func rowsEqual(a, b adapter.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if fmt.Sprint(a[i]) != fmt.Sprint(b[i]) {
			return false
		}
	}
	return true
}
