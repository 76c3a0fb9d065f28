package index

import (
	"MvccDB/data"
	"bytes"
	"sort"
)

// Indexer in-memory index from RowID to its version chain.
// Implementations are safe for concurrent use.
type Indexer interface {
	// Get chain of id or nil
	Get(id data.RowID) *data.VersionChain
	// PutIfAbsent stores chain unless id is already indexed, returns the indexed chain
	PutIfAbsent(id data.RowID, chain *data.VersionChain) (*data.VersionChain, bool)
	// Delete removes id, returns the removed chain
	Delete(id data.RowID) (*data.VersionChain, bool)
	// Iterator over every id whose encoded form starts with prefix, nil = all
	Iterator(prefix []byte, reverse bool) Iterator
	// Size number of indexed ids
	Size() int
	Close() error
}

type IndexType = int8

const (
	// Btree google/btree
	Btree IndexType = iota + 1
	// ART adaptive radix tree
	ART
)

func NewIndexer(typ IndexType) (Indexer, error) {
	switch typ {
	case Btree:
		return NewBTree(), nil
	case ART:
		return NewAdaptiveRadixTree(), nil
	default:
		return nil, ErrUnsupportedIndexType
	}
}

// Item index entry
type Item struct {
	key   []byte
	id    data.RowID
	chain *data.VersionChain
}

func newItem(id data.RowID, chain *data.VersionChain) *Item {
	return &Item{key: id.Encode(), id: id, chain: chain}
}

func itemLess(a, b *Item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Iterator generic index iterator, works on a copy taken at creation so
// later index changes are not observed
type Iterator interface {
	Rewind()                   // back to the first entry
	Seek(id data.RowID)        // first entry >= id (<= id when reversed)
	Next()                     // advance
	Valid() bool               // false once exhausted
	Key() data.RowID           // id at the current position
	Value() *data.VersionChain // chain at the current position
	Close()                    // release the copy
}

// sliceIterator iterator over materialized items, shared by every index type
type sliceIterator struct {
	currIndex int
	reverse   bool
	values    []*Item
}

func newSliceIterator(values []*Item, reverse bool) *sliceIterator {
	return &sliceIterator{values: values, reverse: reverse}
}

func (it *sliceIterator) Rewind() {
	it.currIndex = 0
}

func (it *sliceIterator) Seek(id data.RowID) {
	key := id.Encode()
	if it.reverse {
		it.currIndex = sort.Search(len(it.values), func(i int) bool {
			return bytes.Compare(it.values[i].key, key) <= 0
		})
	} else {
		it.currIndex = sort.Search(len(it.values), func(i int) bool {
			return bytes.Compare(it.values[i].key, key) >= 0
		})
	}
}

func (it *sliceIterator) Next() {
	it.currIndex++
}

func (it *sliceIterator) Valid() bool {
	return it.currIndex < len(it.values)
}

func (it *sliceIterator) Key() data.RowID {
	return it.values[it.currIndex].id
}

func (it *sliceIterator) Value() *data.VersionChain {
	return it.values[it.currIndex].chain
}

func (it *sliceIterator) Close() {
	it.values = nil
}
