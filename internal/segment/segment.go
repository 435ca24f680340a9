// Package segment implements the table segment: an immutable,
// primary-key-bounded view of a table, exposing count, checksum, and
// count_and_checksum primitives, plus the partitioning helper the
// bisection engine uses to recurse.
package segment

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"datadiff/internal/adapter"
	"datadiff/internal/core"
	"datadiff/internal/errs"
	"datadiff/internal/logging"
	"datadiff/internal/normalize"
	"datadiff/internal/partition"
)

// Segment is an immutable, key-bounded view of a table. Every mutator
// (WithSchema excepted, which only populates a lazily-resolved field)
// returns a new Segment rather than mutating the receiver.
//
// Key bounds come in two mutually exclusive shapes: MinKey/MaxKey for
// an integer-valued key column, and MinKeyUUID/MaxKeyUUID for a
// UUID-valued one, parsed into the 128-bit integer space so the
// bisection engine can partition it like any other integer key space.
// At most one shape is populated on any given Segment; NewKeyBoundsBig
// picks the right one once the key column's resolved type is known.
type Segment struct {
	DB            adapter.Adapter
	Path          core.TablePath
	KeyColumn     string
	UpdateColumn  string   // "" if unused
	ExtraColumns  []string // projection; checksum/download columns besides the key
	MinKey        *int64   // inclusive; integer keys only
	MaxKey        *int64   // exclusive; integer keys only
	MinKeyUUID    *big.Int // inclusive; UUID keys only, 128-bit
	MaxKeyUUID    *big.Int // exclusive; UUID keys only, 128-bit
	MinUpdate     *time.Time
	MaxUpdate     *time.Time
	CaseSensitive bool

	schema core.Schema     // lazily resolved; see WithSchema
	logger *logging.Logger // "" (nil) logs nothing
}

// New constructs a Segment, validating bounds eagerly:
// min_key <= max_key, min_update <= max_update, and max_update
// requires an update column.
func New(db adapter.Adapter, path core.TablePath, keyColumn string, opts ...Option) (*Segment, error) {
	s := &Segment{
		DB:            db,
		Path:          path,
		KeyColumn:     keyColumn,
		CaseSensitive: true,
		logger:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.validateBounds(); err != nil {
		return nil, err
	}
	if s.MaxUpdate != nil && s.UpdateColumn == "" {
		return nil, errs.Value("max_update given without an update column")
	}
	return s, nil
}

// Option configures a Segment at construction.
type Option func(*Segment)

func WithUpdateColumn(col string) Option    { return func(s *Segment) { s.UpdateColumn = col } }
func WithExtraColumns(cols []string) Option { return func(s *Segment) { s.ExtraColumns = cols } }
func WithKeyBounds(min, max *int64) Option  { return func(s *Segment) { s.MinKey, s.MaxKey = min, max } }
func WithUUIDKeyBounds(min, max *big.Int) Option {
	return func(s *Segment) { s.MinKeyUUID, s.MaxKeyUUID = min, max }
}
func WithUpdateBounds(min, max *time.Time) Option {
	return func(s *Segment) { s.MinUpdate, s.MaxUpdate = min, max }
}
func WithCaseSensitive(v bool) Option     { return func(s *Segment) { s.CaseSensitive = v } }
func WithLogger(l *logging.Logger) Option { return func(s *Segment) { s.logger = l } }

func (s *Segment) validateBounds() error {
	if s.MinKey != nil && s.MaxKey != nil && *s.MinKey > *s.MaxKey {
		return errs.Value("min_key (%d) > max_key (%d)", *s.MinKey, *s.MaxKey)
	}
	if s.MinKeyUUID != nil && s.MaxKeyUUID != nil && s.MinKeyUUID.Cmp(s.MaxKeyUUID) > 0 {
		return errs.Value("min_key (%s) > max_key (%s)", s.MinKeyUUID, s.MaxKeyUUID)
	}
	if s.MinUpdate != nil && s.MaxUpdate != nil && s.MinUpdate.After(*s.MaxUpdate) {
		return errs.Value("min_update (%s) > max_update (%s)", s.MinUpdate, s.MaxUpdate)
	}
	return nil
}

// clone returns a shallow copy of s, so mutators can return a fresh
// Segment without touching the receiver.
func (s *Segment) clone() *Segment {
	cp := *s
	return &cp
}

// isUUIDKeyed reports whether the segment's key column resolved to
// core.KindUUID. Requires WithSchema to have run; returns false (the
// integer-key default) if the schema isn't resolved yet or the key
// column's type can't be found.
func (s *Segment) isUUIDKeyed() bool {
	t, ok := s.schema.Lookup(s.KeyColumn)
	return ok && t.Kind == core.KindUUID
}

// NewKeyBounds returns a copy of s with its integer key bounds
// replaced, validating lo <= hi. For a UUID-keyed segment, use
// NewKeyBoundsBig instead.
func (s *Segment) NewKeyBounds(lo, hi int64) (*Segment, error) {
	if lo > hi {
		return nil, errs.Value("new key bounds: lo (%d) > hi (%d)", lo, hi)
	}
	cp := s.clone()
	cp.MinKey, cp.MaxKey = &lo, &hi
	cp.MinKeyUUID, cp.MaxKeyUUID = nil, nil
	return cp, nil
}

// NewKeyBoundsBig returns a copy of s with its key bounds replaced from
// a 128-bit interval, dispatching to the integer or UUID field pair
// depending on the key column's resolved type. The bisection engine
// uses this exclusively so its recursion doesn't need to branch on key
// kind itself.
func (s *Segment) NewKeyBoundsBig(lo, hi *big.Int) (*Segment, error) {
	if lo.Cmp(hi) > 0 {
		return nil, errs.Value("new key bounds: lo (%s) > hi (%s)", lo, hi)
	}
	cp := s.clone()
	if s.isUUIDKeyed() {
		cp.MinKeyUUID, cp.MaxKeyUUID = lo, hi
		cp.MinKey, cp.MaxKey = nil, nil
		return cp, nil
	}
	if !lo.IsInt64() || !hi.IsInt64() {
		return nil, errs.Value("new key bounds: integer key range [%s, %s) exceeds 64 bits", lo, hi)
	}
	loInt, hiInt := lo.Int64(), hi.Int64()
	cp.MinKey, cp.MaxKey = &loInt, &hiInt
	cp.MinKeyUUID, cp.MaxKeyUUID = nil, nil
	return cp, nil
}

// KeyBoundsBig returns the segment's current key bounds as big.Int,
// regardless of which field pair is populated, and whether both bounds
// are set at all.
func (s *Segment) KeyBoundsBig() (lo, hi *big.Int, ok bool) {
	if s.MinKeyUUID != nil && s.MaxKeyUUID != nil {
		return s.MinKeyUUID, s.MaxKeyUUID, true
	}
	if s.MinKey != nil && s.MaxKey != nil {
		return big.NewInt(*s.MinKey), big.NewInt(*s.MaxKey), true
	}
	return nil, nil, false
}

// WithSchema forces schema resolution if absent, and is idempotent: a
// Segment that already has a schema attached returns itself unchanged.
// It also performs UUID reclassification: every Text column is sampled
// (up to core.SampleSize() values) and reclassified to UUID if the
// sample is entirely well-formed UUIDs; a mixed sample logs a warning
// and is left as Text.
func (s *Segment) WithSchema(ctx context.Context) (*Segment, error) {
	if !s.schema.Empty() {
		return s, nil
	}

	cols := s.projectionColumns()
	schema, err := s.DB.QueryTableSchema(ctx, s.Path, cols)
	if err != nil {
		return nil, fmt.Errorf("resolving schema for %s: %w", s.Path, err)
	}

	samples := make(map[string][]string)
	for _, col := range schema.Columns {
		if col.Type.Kind != core.KindText {
			continue
		}
		values, err := s.DB.SampleTextColumn(ctx, s.Path, col.Name)
		if err != nil {
			return nil, fmt.Errorf("sampling column %q for UUID detection: %w", col.Name, err)
		}
		if len(values) > 0 {
			samples[col.Name] = values
		}
	}
	if len(samples) > 0 {
		mixed := schema.ReclassifyUUIDColumns(samples, core.IsUUIDText)
		for _, col := range mixed {
			s.logger.Warn("column %q in %s has a mixed UUID/non-UUID sample; keeping it Text", col, s.Path)
		}
	}

	cp := s.clone()
	cp.schema = schema
	return cp, nil
}

// Schema returns the resolved schema, or the zero Schema if WithSchema
// hasn't been called yet.
func (s *Segment) Schema() core.Schema { return s.schema }

// HasUnknownColumn reports whether any projected column resolved to the
// Unknown kind, in which case checksums cannot be computed and the
// whole segment must be downloaded and compared as opaque strings.
func (s *Segment) HasUnknownColumn() bool {
	for _, col := range s.projectionColumns() {
		if t, ok := s.schema.Lookup(col); ok && t.Kind == core.KindUnknown {
			return true
		}
	}
	return false
}

// projectionColumns returns the key column followed by the extra
// (checksum) columns, the set QueryTableSchema is asked to resolve.
func (s *Segment) projectionColumns() []string {
	cols := make([]string, 0, len(s.ExtraColumns)+1)
	cols = append(cols, s.KeyColumn)
	cols = append(cols, s.ExtraColumns...)
	return cols
}

// ChooseCheckpoints returns n-1 interior integer keys partitioning
// [MinKey, MaxKey) into n sub-ranges of near-equal key-space width, for
// an integer-keyed segment. Use ChooseCheckpointsBig for a segment that
// may be UUID-keyed.
func (s *Segment) ChooseCheckpoints(n int) ([]int64, error) {
	if s.MinKey == nil || s.MaxKey == nil {
		return nil, errs.Value("cannot choose checkpoints: key bounds are not set")
	}
	if n < 1 {
		return nil, errs.Value("choose_checkpoints: n must be >= 1")
	}
	if n == 1 {
		return nil, nil
	}
	return partition.SplitSpace(*s.MinKey, *s.MaxKey, n-1), nil
}

// ChooseCheckpointsBig is ChooseCheckpoints's key-kind-agnostic form:
// it partitions whichever bound pair is populated (integer or UUID)
// and always returns big.Int, so the bisection engine's recursion
// doesn't need to know which kind of key it's walking.
func (s *Segment) ChooseCheckpointsBig(n int) ([]*big.Int, error) {
	lo, hi, ok := s.KeyBoundsBig()
	if !ok {
		return nil, errs.Value("cannot choose checkpoints: key bounds are not set")
	}
	if n < 1 {
		return nil, errs.Value("choose_checkpoints: n must be >= 1")
	}
	if n == 1 {
		return nil, nil
	}
	return partition.SplitSpaceBig(lo, hi, n-1), nil
}

// whereClause renders the segment's key and update-time bounds as a SQL
// WHERE predicate (without the leading WHERE keyword). An empty
// predicate is rendered as "1=1" so callers can always append "AND ...".
func (s *Segment) whereClause() (string, error) {
	var preds []string

	keyRef := s.DB.Quote(s.KeyColumn)
	if s.MinKeyUUID != nil || s.MaxKeyUUID != nil {
		if s.MinKeyUUID != nil {
			lit, err := core.BigIntToUUID(s.MinKeyUUID)
			if err != nil {
				return "", err
			}
			preds = append(preds, fmt.Sprintf("%s >= '%s'", keyRef, lit))
		}
		if s.MaxKeyUUID != nil {
			lit, err := core.BigIntToUUID(s.MaxKeyUUID)
			if err != nil {
				return "", err
			}
			preds = append(preds, fmt.Sprintf("%s < '%s'", keyRef, lit))
		}
	} else {
		if s.MinKey != nil {
			preds = append(preds, fmt.Sprintf("%s >= %d", keyRef, *s.MinKey))
		}
		if s.MaxKey != nil {
			preds = append(preds, fmt.Sprintf("%s < %d", keyRef, *s.MaxKey))
		}
	}

	if s.UpdateColumn != "" {
		updRef := s.DB.Quote(s.UpdateColumn)
		const layout = "2006-01-02 15:04:05.000000"
		if s.MinUpdate != nil {
			preds = append(preds, fmt.Sprintf("%s >= '%s'", updRef, s.MinUpdate.UTC().Format(layout)))
		}
		if s.MaxUpdate != nil {
			preds = append(preds, fmt.Sprintf("%s < '%s'", updRef, s.MaxUpdate.UTC().Format(layout)))
		}
	}

	if len(preds) == 0 {
		return "1=1", nil
	}
	return strings.Join(preds, " AND "), nil
}

// MinMaxKey issues SELECT MIN(k), MAX(k) over the segment's current
// bounds (update-time bounds, plus any key bounds already set) for
// top-level bound discovery, returning an integer key's
// bounds directly. Use MinMaxKeyBig for a segment that may be
// UUID-keyed; MinMaxKey errors if the key range exceeds 64 bits.
func (s *Segment) MinMaxKey(ctx context.Context) (min, max int64, ok bool, err error) {
	loBig, hiBig, ok, err := s.minMaxKeyBig(ctx)
	if err != nil || !ok {
		return 0, 0, ok, err
	}
	if !loBig.IsInt64() || !hiBig.IsInt64() {
		return 0, 0, false, errs.Value("MinMaxKey: key range exceeds 64 bits; use MinMaxKeyBig")
	}
	return loBig.Int64(), hiBig.Int64(), true, nil
}

// MinMaxKeyBig is MinMaxKey's key-kind-agnostic form, parsing a UUID
// key's MIN/MAX as 128-bit integers and an integer key's
// MIN/MAX directly.
func (s *Segment) MinMaxKeyBig(ctx context.Context) (min, max *big.Int, ok bool, err error) {
	return s.minMaxKeyBig(ctx)
}

func (s *Segment) minMaxKeyBig(ctx context.Context) (min, max *big.Int, ok bool, err error) {
	where, err := s.whereClause()
	if err != nil {
		return nil, nil, false, err
	}
	keyRef := s.DB.Quote(s.KeyColumn)
	sqlText := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s WHERE %s", keyRef, keyRef, s.TableRef(), where)

	row, rowErr := s.DB.QueryRow(ctx, sqlText)
	if rowErr != nil {
		return nil, nil, false, errs.Query(sqlText, s.keyRangeDesc(), rowErr)
	}
	if len(row) < 2 || row[0] == nil || row[1] == nil {
		return nil, nil, false, nil
	}

	if s.isUUIDKeyed() {
		loStr, loOK := row[0].(string)
		hiStr, hiOK := row[1].(string)
		if !loOK || !hiOK {
			return nil, nil, false, errs.Value("MIN/MAX of UUID key column did not return text")
		}
		lo, err := core.UUIDToBigInt(loStr)
		if err != nil {
			return nil, nil, false, err
		}
		hi, err := core.UUIDToBigInt(hiStr)
		if err != nil {
			return nil, nil, false, err
		}
		return lo, hi, true, nil
	}

	return big.NewInt(toInt64(row[0])), big.NewInt(toInt64(row[1])), true, nil
}

// TableRef renders the fully-qualified, quoted table reference.
func (s *Segment) TableRef() string {
	schema, table, err := s.DB.NormalizeTablePath(s.Path)
	if err != nil {
		// core.ParseTablePath already rejects paths with more than 2
		// components, so this is reached only by a hand-built path.
		return s.DB.Quote(s.Path.Table())
	}
	if schema == "" {
		return s.DB.Quote(table)
	}
	return s.DB.Quote(schema) + "." + s.DB.Quote(table)
}

// Count executes SELECT COUNT(*) FROM t WHERE <bounds>.
func (s *Segment) Count(ctx context.Context) (int64, error) {
	where, err := s.whereClause()
	if err != nil {
		return 0, err
	}
	sqlText := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", s.TableRef(), where)

	v, err := s.DB.QueryScalar(ctx, sqlText)
	if err != nil {
		return 0, errs.Query(sqlText, s.keyRangeDesc(), err)
	}
	return toInt64(v), nil
}

// Checksum returns the checksum of the segment's normalized projected
// rows: each row's MD5 truncated to 60 bits, summed in SQL, and the sum
// reduced modulo 2^60. It returns nil for an empty segment.
func (s *Segment) Checksum(ctx context.Context) (*int64, error) {
	_, checksum, err := s.CountAndChecksum(ctx)
	return checksum, err
}

// CountAndChecksumSQL renders the combined count+checksum query
// without executing it, for EXPLAIN-style previews and the query that
// CountAndChecksum runs.
func (s *Segment) CountAndChecksumSQL() (string, error) {
	if s.schema.Empty() {
		return "", errs.Value("count_and_checksum: segment has no resolved schema; call WithSchema first")
	}

	checksumExpr, err := s.checksumExpr()
	if err != nil {
		return "", err
	}
	where, err := s.whereClause()
	if err != nil {
		return "", err
	}

	sumExpr := s.DB.MD5ToIntSQL(checksumExpr)
	return fmt.Sprintf(
		"SELECT COUNT(*), SUM(%s) FROM %s WHERE %s",
		sumExpr, s.TableRef(), where,
	), nil
}

// CountAndChecksum issues a single round-trip query returning both the
// row count and the reduced checksum (nil for an empty segment),
// derived from the same scan.
func (s *Segment) CountAndChecksum(ctx context.Context) (int64, *int64, error) {
	sqlText, err := s.CountAndChecksumSQL()
	if err != nil {
		return 0, nil, err
	}

	row, err := s.DB.QueryRow(ctx, sqlText)
	if err != nil {
		return 0, nil, errs.Query(sqlText, s.keyRangeDesc(), err)
	}

	if len(row) == 0 {
		return 0, nil, nil
	}
	count := toInt64(row[0])
	if len(row) < 2 || row[1] == nil {
		return count, nil, nil
	}

	checksum := reduceChecksum(toInt64(row[1]))
	return count, &checksum, nil
}

// Download fetches every row in the segment, ordered by key ascending,
// projected to the key column followed by the extra (checksum)
// columns, each rendered through the value normalizer so that rows from
// different engines are directly comparable as text. This is the only
// place the engine reads actual row data rather than a checksum; it
// backs the download-and-compare branch of the bisection algorithm.
func (s *Segment) Download(ctx context.Context) ([]adapter.Row, error) {
	if s.schema.Empty() {
		return nil, errs.Value("download: segment has no resolved schema; call WithSchema first")
	}

	cols := s.projectionColumns()
	funcs := s.DB.NormalizeFuncs()
	selected := make([]string, 0, len(cols))
	for _, col := range cols {
		t, ok := s.schema.Lookup(col)
		if !ok {
			return nil, errs.Type("column %q has no resolved type", col)
		}
		if t.Kind == core.KindUnknown {
			// No normalization rule exists; download the raw value and
			// compare it as an opaque string.
			selected = append(selected, s.DB.Quote(col))
			continue
		}
		expr, err := normalize.Expr(s.DB.Quote(col), t, funcs)
		if err != nil {
			return nil, err
		}
		selected = append(selected, expr)
	}

	where, err := s.whereClause()
	if err != nil {
		return nil, err
	}

	sqlText := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY %s ASC",
		strings.Join(selected, ", "), s.TableRef(), where, s.DB.Quote(s.KeyColumn),
	)

	rows, err := s.DB.QueryRows(ctx, sqlText)
	if err != nil {
		return nil, errs.Query(sqlText, s.keyRangeDesc(), err)
	}
	return rows, nil
}

// checksumExpr concatenates the normalized projected columns and
// returns the engine's MD5-hex-producing SQL expression over that
// concatenation.
func (s *Segment) checksumExpr() (string, error) {
	cols := s.projectionColumns()
	parts := make([]string, 0, len(cols))

	funcs := s.DB.NormalizeFuncs()
	for _, col := range cols {
		t, ok := s.schema.Lookup(col)
		if !ok {
			return "", errs.Type("column %q has no resolved type", col)
		}
		expr, err := normalize.Expr(s.DB.Quote(col), t, funcs)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}

	return s.DB.HashConcat(parts), nil
}

// keyRangeDesc renders the segment's key bounds for error messages.
func (s *Segment) keyRangeDesc() string {
	if lo, hi, ok := s.KeyBoundsBig(); ok {
		return fmt.Sprintf("[%s, %s)", lo, hi)
	}
	return "[-inf, +inf)"
}

// reduceChecksum takes the low 60 bits of v.
func reduceChecksum(v int64) int64 {
	const mask = (int64(1) << 60) - 1
	return v & mask
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		// Drivers hand DECIMAL/NUMERIC results (e.g. a checksum SUM)
		// back as text. Keep the low 64 bits: counts fit unchanged, and
		// a wider sum keeps the low 60 bits reduceChecksum reads.
		b, ok := new(big.Int).SetString(strings.TrimSpace(n), 10)
		if !ok {
			return 0
		}
		return int64(new(big.Int).And(b, new(big.Int).SetUint64(^uint64(0))).Uint64())
	default:
		return 0
	}
}
