package catalog

import (
	"fmt"
	"strings"

	"github.com/google/btree"
)

// Key is a composite secondary-index key — an Oracle-style tuple such as
// (obj, intCol, con) — compared lexicographically by component, the
// ordering C2's prefix scans depend on.
type Key []int64

func (k Key) less(o Key) bool {
	n := len(k)
	if len(o) < n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		if k[i] != o[i] {
			return k[i] < o[i]
		}
	}
	return len(k) < len(o)
}

func (k Key) hasPrefix(prefix Key) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ":")
}

type indexEntry struct {
	key   Key
	rowID string
}

func (e indexEntry) Less(than btree.Item) bool {
	o := than.(indexEntry)
	if e.key.less(o.key) {
		return true
	}
	if o.key.less(e.key) {
		return false
	}
	return e.rowID < o.rowID
}

// SecondaryIndex is an ordered composite-key index over rowIds. When
// unique it also rejects a second rowId under the same key (I2); when
// not unique it permits many rowIds per key (e.g. COL$ rows sharing an
// (obj, segCol) key).
type SecondaryIndex struct {
	unique bool
	tree   *btree.BTree
	byKey  map[string]string
}

func NewSecondaryIndex(unique bool) *SecondaryIndex {
	idx := &SecondaryIndex{unique: unique, tree: btree.New(32)}
	if unique {
		idx.byKey = make(map[string]string)
	}
	return idx
}

// Insert adds rowID under key. It returns false without mutating the
// index if unique and the key already has a different owner (I2 — the
// caller must treat false as a fatal collision).
func (idx *SecondaryIndex) Insert(key Key, rowID string) bool {
	if idx.unique {
		if existing, ok := idx.byKey[key.String()]; ok && existing != rowID {
			return false
		}
		idx.byKey[key.String()] = rowID
	}
	idx.tree.ReplaceOrInsert(indexEntry{key: append(Key{}, key...), rowID: rowID})
	return true
}

// Remove deletes the (key, rowID) pair. It returns false if the entry
// was not present (I4 — the caller must treat false as a fatal error).
func (idx *SecondaryIndex) Remove(key Key, rowID string) bool {
	removed := idx.tree.Delete(indexEntry{key: key, rowID: rowID})
	if removed == nil {
		return false
	}
	if idx.unique {
		delete(idx.byKey, key.String())
	}
	return true
}

// Find looks up the unique owner of key. Only valid on unique indices.
func (idx *SecondaryIndex) Find(key Key) (string, bool) {
	if !idx.unique {
		return "", false
	}
	r, ok := idx.byKey[key.String()]
	return r, ok
}

func (idx *SecondaryIndex) Len() int { return idx.tree.Len() }

// ScanPrefix visits rowIds whose key starts with prefix, in ascending
// key order, stopping the moment the prefix no longer matches — the
// upper_bound((prefix..., 0)) idiom C2 depends on for enumerating
// TABPART$/CCOL$/COL$ children of an obj.
func (idx *SecondaryIndex) ScanPrefix(prefix Key, fn func(key Key, rowID string) bool) {
	pivot := indexEntry{key: prefix, rowID: ""}
	idx.tree.AscendGreaterOrEqual(pivot, func(item btree.Item) bool {
		e := item.(indexEntry)
		if !e.key.hasPrefix(prefix) {
			return false
		}
		return fn(e.key, e.rowID)
	})
}
