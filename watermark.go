package MvccDB

import (
	"sync"

	"github.com/emirpasic/gods/queues/priorityqueue"
)

// watermark min-heap of the snapshots of active transactions. Finished
// snapshots are dropped lazily when they reach the top of the heap.
type watermark struct {
	mu        *sync.Mutex
	timesHeap *priorityqueue.Queue
	// pending live txn count per snapshot ts
	pending map[uint64]int
}

// UInt64Comparator min-heap ordering for uint64
func UInt64Comparator(a, b interface{}) int {
	aInt64 := a.(uint64)
	bInt64 := b.(uint64)
	switch {
	case aInt64 > bInt64:
		return 1
	case aInt64 < bInt64:
		return -1
	default:
		return 0
	}
}

func newWatermark() *watermark {
	return &watermark{
		mu:        new(sync.Mutex),
		timesHeap: priorityqueue.NewWith(UInt64Comparator),
		pending:   make(map[uint64]int),
	}
}

func (w *watermark) begin(snapshot uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[snapshot] == 0 {
		w.timesHeap.Enqueue(snapshot)
	}
	w.pending[snapshot]++
}

func (w *watermark) done(snapshot uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[snapshot] <= 1 {
		delete(w.pending, snapshot)
	} else {
		w.pending[snapshot]--
	}
}

// oldest smallest live snapshot, false when no txn is active
func (w *watermark) oldest() (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.timesHeap.Empty() {
		top, _ := w.timesHeap.Peek()
		ts := top.(uint64)
		if w.pending[ts] > 0 {
			return ts, true
		}
		w.timesHeap.Dequeue()
	}
	return 0, false
}

func (w *watermark) active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range w.pending {
		n += c
	}
	return n
}
