package index

import (
	"MvccDB/data"
	"bytes"
	"sync"

	"github.com/google/btree"
)

// BTree google/btree backed index. The tree itself is not safe for
// concurrent writes, lock guards it.
type BTree struct {
	tree *btree.BTreeG[*Item]
	lock *sync.RWMutex
}

func NewBTree() *BTree {
	return &BTree{
		tree: btree.NewG[*Item](32, itemLess),
		lock: new(sync.RWMutex),
	}
}

func (bt *BTree) Get(id data.RowID) *data.VersionChain {
	bt.lock.RLock()
	defer bt.lock.RUnlock()
	item, ok := bt.tree.Get(&Item{key: id.Encode()})
	if !ok {
		return nil
	}
	return item.chain
}

func (bt *BTree) PutIfAbsent(id data.RowID, chain *data.VersionChain) (*data.VersionChain, bool) {
	bt.lock.Lock()
	defer bt.lock.Unlock()
	it := newItem(id, chain)
	if old, ok := bt.tree.Get(it); ok {
		return old.chain, false
	}
	bt.tree.ReplaceOrInsert(it)
	return chain, true
}

func (bt *BTree) Delete(id data.RowID) (*data.VersionChain, bool) {
	bt.lock.Lock()
	defer bt.lock.Unlock()
	old, ok := bt.tree.Delete(&Item{key: id.Encode()})
	if !ok {
		return nil, false
	}
	return old.chain, true
}

func (bt *BTree) Iterator(prefix []byte, reverse bool) Iterator {
	bt.lock.RLock()
	defer bt.lock.RUnlock()

	values := make([]*Item, 0)
	collect := func(it *Item) bool {
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		values = append(values, it)
		return true
	}
	if len(prefix) == 0 {
		bt.tree.Ascend(collect)
	} else {
		bt.tree.AscendGreaterOrEqual(&Item{key: prefix}, collect)
	}
	if reverse {
		for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
			values[i], values[j] = values[j], values[i]
		}
	}
	return newSliceIterator(values, reverse)
}

func (bt *BTree) Size() int {
	bt.lock.RLock()
	defer bt.lock.RUnlock()
	return bt.tree.Len()
}

func (bt *BTree) Close() error {
	return nil
}
