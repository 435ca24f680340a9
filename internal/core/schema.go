package core

// Column describes one column's name and resolved type.
type Column struct {
	Name string
	Type ColType
}

// Schema is an ordered mapping from column name to column type, as
// resolved from information_schema (or the engine's equivalent). Order
// matches ordinal position in the source table.
type Schema struct {
	Columns []Column
}

// Lookup returns the type of the named column and whether it was found.
func (s Schema) Lookup(name string) (ColType, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return ColType{}, false
}

// Names returns the ordered column names.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Empty reports whether the schema has not been resolved yet.
func (s Schema) Empty() bool {
	return len(s.Columns) == 0
}

// uuidSampleSize is the number of sampled text values an adapter checks
// before reclassifying a Text column as UUID.
const uuidSampleSize = 16

// ReclassifyUUIDColumns inspects samples (sampled values keyed by column
// name; entries for non-Text columns are ignored) and rewrites any
// Text column whose sample is entirely well-formed UUIDs to the UUID
// kind. It returns the names of columns that had a mixed sample (well
// formed and malformed UUIDs both present) so the caller can log a
// warning; a mixed column keeps Text.
func (s *Schema) ReclassifyUUIDColumns(samples map[string][]string, isUUID func(string) bool) (mixed []string) {
	for i, c := range s.Columns {
		if c.Type.Kind != KindText {
			continue
		}
		values, ok := samples[c.Name]
		if !ok || len(values) == 0 {
			continue
		}
		allUUID := true
		anyUUID := false
		for _, v := range values {
			if isUUID(v) {
				anyUUID = true
			} else {
				allUUID = false
			}
		}
		switch {
		case allUUID:
			s.Columns[i].Type = UUID()
		case anyUUID:
			mixed = append(mixed, c.Name)
		}
	}
	return mixed
}

// SampleSize returns the fixed sample width used for UUID reclassification.
func SampleSize() int { return uuidSampleSize }
