package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func TestReclassifyUUIDColumns(t *testing.T) {
	t.Run("all well-formed reclassifies to UUID", func(t *testing.T) {
		s := &Schema{Columns: []Column{{Name: "id", Type: Text()}}}
		samples := map[string][]string{
			"id": {uuid.New().String(), uuid.New().String()},
		}
		mixed := s.ReclassifyUUIDColumns(samples, isUUID)
		assert.Empty(t, mixed)
		typ, _ := s.Lookup("id")
		assert.Equal(t, KindUUID, typ.Kind)
	})

	t.Run("mixed sample keeps Text and is reported", func(t *testing.T) {
		s := &Schema{Columns: []Column{{Name: "id", Type: Text()}}}
		samples := map[string][]string{
			"id": {uuid.New().String(), "not-a-uuid"},
		}
		mixed := s.ReclassifyUUIDColumns(samples, isUUID)
		assert.Equal(t, []string{"id"}, mixed)
		typ, _ := s.Lookup("id")
		assert.Equal(t, KindText, typ.Kind)
	})

	t.Run("non-text columns are untouched", func(t *testing.T) {
		s := &Schema{Columns: []Column{{Name: "n", Type: Integer()}}}
		mixed := s.ReclassifyUUIDColumns(map[string][]string{"n": {"1"}}, isUUID)
		assert.Empty(t, mixed)
		typ, _ := s.Lookup("n")
		assert.Equal(t, KindInteger, typ.Kind)
	})
}

func TestSchemaEmptyAndNames(t *testing.T) {
	var s Schema
	assert.True(t, s.Empty())

	s.Columns = []Column{{Name: "a", Type: Integer()}, {Name: "b", Type: Text()}}
	assert.False(t, s.Empty())
	assert.Equal(t, []string{"a", "b"}, s.Names())

	_, ok := s.Lookup("missing")
	assert.False(t, ok)
}
