package MvccDB

import (
	"sync"

	"github.com/tidwall/btree"
)

// tracker registry of every transaction that pending markers may still
// refer to: active ones, and finished ones until the collector prunes them
type tracker struct {
	mu *sync.RWMutex
	// txns by id, active and finished
	txns map[uint64]*Txn
	// finished ordered by end ts, then id
	finished *btree.BTreeG[*Txn]
}

func finishedLess(a, b *Txn) bool {
	if a.endTS != b.endTS {
		return a.endTS < b.endTS
	}
	return a.id < b.id
}

func newTracker() *tracker {
	return &tracker{
		mu:       new(sync.RWMutex),
		txns:     make(map[uint64]*Txn),
		finished: btree.NewBTreeG[*Txn](finishedLess),
	}
}

func (tk *tracker) add(txn *Txn) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.txns[txn.id] = txn
}

func (tk *tracker) get(txID uint64) *Txn {
	tk.mu.RLock()
	defer tk.mu.RUnlock()
	return tk.txns[txID]
}

// finish moves a finalized txn into the finished set, endTS must be set
func (tk *tracker) finish(txn *Txn) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.finished.Set(txn)
}

// prune forgets finalized txns that ended before watermark
func (tk *tracker) prune(watermark uint64) int {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	var expired []*Txn
	tk.finished.Scan(func(txn *Txn) bool {
		finalized, endTS := txn.isFinalized()
		if endTS >= watermark {
			return false
		}
		if finalized {
			expired = append(expired, txn)
		}
		return true
	})
	for _, txn := range expired {
		tk.finished.Delete(txn)
		delete(tk.txns, txn.id)
	}
	return len(expired)
}

func (tk *tracker) size() int {
	tk.mu.RLock()
	defer tk.mu.RUnlock()
	return len(tk.txns)
}

func (tk *tracker) finishedCount() int {
	tk.mu.RLock()
	defer tk.mu.RUnlock()
	return tk.finished.Len()
}
