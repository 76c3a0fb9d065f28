package index

import (
	"MvccDB/data"
	"sync"

	goart "github.com/plar/go-adaptive-radix-tree"
)

// AdaptiveRadixTree adaptive radix tree index keyed by the encoded RowID
type AdaptiveRadixTree struct {
	tree goart.Tree
	lock *sync.RWMutex
}

func NewAdaptiveRadixTree() *AdaptiveRadixTree {
	return &AdaptiveRadixTree{
		tree: goart.New(),
		lock: new(sync.RWMutex),
	}
}

func (art *AdaptiveRadixTree) Get(id data.RowID) *data.VersionChain {
	art.lock.RLock()
	defer art.lock.RUnlock()
	value, found := art.tree.Search(id.Encode())
	if !found {
		return nil
	}
	return value.(*data.VersionChain)
}

func (art *AdaptiveRadixTree) PutIfAbsent(id data.RowID, chain *data.VersionChain) (*data.VersionChain, bool) {
	art.lock.Lock()
	defer art.lock.Unlock()
	key := id.Encode()
	if value, found := art.tree.Search(key); found {
		return value.(*data.VersionChain), false
	}
	art.tree.Insert(key, chain)
	return chain, true
}

func (art *AdaptiveRadixTree) Delete(id data.RowID) (*data.VersionChain, bool) {
	art.lock.Lock()
	defer art.lock.Unlock()
	oldValue, deleted := art.tree.Delete(id.Encode())
	if !deleted || oldValue == nil {
		return nil, false
	}
	return oldValue.(*data.VersionChain), true
}

// Iterator keys are fixed size, so leaf order is RowID order
func (art *AdaptiveRadixTree) Iterator(prefix []byte, reverse bool) Iterator {
	art.lock.RLock()
	defer art.lock.RUnlock()

	values := make([]*Item, 0)
	saveValues := func(node goart.Node) bool {
		chain := node.Value().(*data.VersionChain)
		values = append(values, &Item{key: node.Key(), id: chain.ID, chain: chain})
		return true
	}
	if len(prefix) == 0 {
		art.tree.ForEach(saveValues)
	} else {
		art.tree.ForEachPrefix(prefix, saveValues)
	}
	if reverse {
		for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
			values[i], values[j] = values[j], values[i]
		}
	}
	return newSliceIterator(values, reverse)
}

func (art *AdaptiveRadixTree) Size() int {
	art.lock.RLock()
	defer art.lock.RUnlock()
	return art.tree.Size()
}

func (art *AdaptiveRadixTree) Close() error {
	return nil
}
