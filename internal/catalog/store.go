package catalog

import (
	"fmt"

	"github.com/witnz/catalogshadow/internal/dictexc"
)

// Record is satisfied by every SYS.* row type; RowID is the store's
// natural primary identity (I1).
type Record interface {
	RowID() string
}

// secondaryDef binds one SecondaryIndex to the function that derives its
// key from a record, so MetaStore can maintain every index generically
// on Add/Drop instead of each meta-table hand-rolling the bookkeeping.
type secondaryDef[V any] struct {
	idx   *SecondaryIndex
	keyFn func(v *V) Key
	// name identifies the index in error messages.
	name string
}

// MetaStore is the sole owner of every record of one SYS.* meta-table
// (see design note "Raw pointers -> ownership"): the primary map holds
// the only *V value, secondary indices hold only rowId keys into it.
type MetaStore[V Record] struct {
	name      string
	byRowID   map[string]*V
	touched   map[string]*V
	secondary []secondaryDef[V]
}

func newMetaStore[V Record](name string, secondary ...secondaryDef[V]) *MetaStore[V] {
	return &MetaStore[V]{
		name:      name,
		byRowID:   make(map[string]*V),
		touched:   make(map[string]*V),
		secondary: secondary,
	}
}

// Add inserts rec. A duplicate rowId is 50023 (I3); a secondary-key
// collision on any unique index is 50024 (I2), and every index insert
// already committed for this record is rolled back first so the store
// never ends up partially indexed on the error path.
func (s *MetaStore[V]) Add(rec *V) error {
	rowID := (*rec).RowID()
	if _, exists := s.byRowID[rowID]; exists {
		return dictexc.NewData(50023, fmt.Sprintf("%s: duplicate rowId %q", s.name, rowID))
	}

	committed := 0
	for _, sd := range s.secondary {
		key := sd.keyFn(rec)
		if !sd.idx.Insert(key, rowID) {
			for i := 0; i < committed; i++ {
				s.secondary[i].idx.Remove(s.secondary[i].keyFn(rec), rowID)
			}
			return dictexc.NewData(50024, fmt.Sprintf("%s: secondary key collision on index %q for rowId %q", s.name, sd.name, rowID))
		}
		committed++
	}

	s.byRowID[rowID] = rec
	s.touched[rowID] = rec
	return nil
}

// Drop removes the record for rowID. It is idempotent when the record
// is already absent (redo-parser contract, §6). A missing secondary
// index entry is a fatal 50030 (I4); the record is still removed from
// the primary map and every other index before the error is raised.
func (s *MetaStore[V]) Drop(rowID string) error {
	rec, ok := s.byRowID[rowID]
	if !ok {
		return nil
	}

	var firstErr error
	for _, sd := range s.secondary {
		key := sd.keyFn(rec)
		if !sd.idx.Remove(key, rowID) && firstErr == nil {
			firstErr = dictexc.NewData(50030, fmt.Sprintf("%s: missing secondary index entry on %q for rowId %q", s.name, sd.name, rowID))
		}
	}

	delete(s.byRowID, rowID)
	s.touched[rowID] = rec
	return firstErr
}

func (s *MetaStore[V]) Find(rowID string) (*V, bool) {
	rec, ok := s.byRowID[rowID]
	return rec, ok
}

func (s *MetaStore[V]) Len() int { return len(s.byRowID) }

// Touched returns the records added or dropped since the last
// ResetTouched call (§3.3).
func (s *MetaStore[V]) Touched() map[string]*V { return s.touched }

func (s *MetaStore[V]) ResetTouched() { s.touched = make(map[string]*V) }

// Purge drops every record and asserts every secondary index drained to
// zero, raising 50029 per residual index (§3.4, idempotent).
func (s *MetaStore[V]) Purge() error {
	rowIDs := make([]string, 0, len(s.byRowID))
	for rowID := range s.byRowID {
		rowIDs = append(rowIDs, rowID)
	}
	for _, rowID := range rowIDs {
		_ = s.Drop(rowID)
	}
	for _, sd := range s.secondary {
		if sd.idx.Len() != 0 {
			return dictexc.NewData(50029, fmt.Sprintf("%s: %d residual entries in index %q after purge", s.name, sd.idx.Len(), sd.name))
		}
	}
	return nil
}

// Compare implements P4: a symmetric rowId-set-plus-content equality
// check used to validate a reloaded shadow. It returns the first
// differing or missing rowId.
func (s *MetaStore[V]) Compare(other *MetaStore[V], equal func(a, b *V) bool) (bool, string) {
	for rowID, rec := range s.byRowID {
		o, ok := other.byRowID[rowID]
		if !ok {
			return false, fmt.Sprintf("%s: rowId %q present on left, missing on right", s.name, rowID)
		}
		if !equal(rec, o) {
			return false, fmt.Sprintf("%s: rowId %q differs", s.name, rowID)
		}
	}
	for rowID := range other.byRowID {
		if _, ok := s.byRowID[rowID]; !ok {
			return false, fmt.Sprintf("%s: rowId %q present on right, missing on left", s.name, rowID)
		}
	}
	return true, ""
}

// All returns every record currently stored (not only the touched
// set), for iteration paths that scan a whole store by rowID.
func (s *MetaStore[V]) All() map[string]*V { return s.byRowID }
