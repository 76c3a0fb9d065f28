package MvccDB

import (
	"MvccDB/storage"
	"fmt"
	"sync"
	"sync/atomic"
)

// TxnManager begins, commits and aborts transactions.
//
// Two short critical sections order everything:
//   - stampMu orders snapshot allocation against commit stamping, so a txn
//     whose snapshot is newer than a commit ts always sees that commit as
//     Committed
//   - commitMu serializes validation+stamping so two commits can never both
//     pass validation against each other
type TxnManager struct {
	clock     LogicalClock
	store     *MvStore
	tracker   *tracker
	watermark *watermark
	storage   storage.Storage
	nextTxID  atomic.Uint64

	stampMu  *sync.Mutex
	commitMu *sync.Mutex
}

// NewTxnManager durable may be nil, commits are then memory only
func NewTxnManager(clock LogicalClock, store *MvStore, durable storage.Storage) *TxnManager {
	return &TxnManager{
		clock:     clock,
		store:     store,
		tracker:   store.tracker,
		watermark: newWatermark(),
		storage:   durable,
		stampMu:   new(sync.Mutex),
		commitMu:  new(sync.Mutex),
	}
}

// Begin starts a txn whose snapshot is the next clock value
func (tm *TxnManager) Begin() *Txn {
	tm.stampMu.Lock()
	defer tm.stampMu.Unlock()
	txn := newTxn(tm.nextTxID.Add(1), tm.clock.Now(), tm.store)
	tm.tracker.add(txn)
	tm.watermark.begin(txn.snapshot)
	return txn
}

// Commit validates and commits txn, returns its commit ts. On a write
// conflict or a storage failure txn is aborted before returning.
func (tm *TxnManager) Commit(txn *Txn) (uint64, error) {
	if txn == nil {
		return 0, ErrNilTransaction
	}
	if !txn.transition(TxnActive, TxnPreparing) {
		return 0, ErrInvalidTransactionState
	}
	if txn.isRollbackOnly() {
		tm.abortPrepared(txn)
		return 0, ErrWriteConflict
	}

	tm.commitMu.Lock()
	defer tm.commitMu.Unlock()

	if err := tm.store.validate(txn); err != nil {
		tm.abortPrepared(txn)
		return 0, err
	}

	tm.stampMu.Lock()
	commitTS := tm.clock.Now()
	if tm.storage != nil {
		if entries := tm.store.commitEntries(txn, commitTS); len(entries) > 0 {
			if err := tm.storage.Persist(entries); err != nil {
				tm.stampMu.Unlock()
				tm.abortPrepared(txn)
				return 0, fmt.Errorf("persist commit %d: %w", txn.id, err)
			}
		}
	}
	// visibility point: every version of txn becomes visible at once
	txn.setCommitted(commitTS)
	tm.stampMu.Unlock()

	tm.store.finalizeCommit(txn, commitTS)
	tm.finish(txn)
	return commitTS, nil
}

// Abort rolls txn back. Safe to call any number of times, it does nothing
// once txn is committing or finished.
func (tm *TxnManager) Abort(txn *Txn) {
	if txn == nil {
		return
	}
	if !txn.transition(TxnActive, TxnAborted) {
		return
	}
	tm.rollback(txn)
}

// abortPrepared aborts a txn that Commit took ownership of
func (tm *TxnManager) abortPrepared(txn *Txn) {
	txn.transition(TxnPreparing, TxnAborted)
	tm.rollback(txn)
}

func (tm *TxnManager) rollback(txn *Txn) {
	txn.setAborted(tm.clock.Current())
	tm.store.rollback(txn)
	tm.finish(txn)
}

func (tm *TxnManager) finish(txn *Txn) {
	txn.setFinalized()
	tm.tracker.finish(txn)
	tm.watermark.done(txn.snapshot)
}

// Watermark oldest snapshot any present or future txn can hold
func (tm *TxnManager) Watermark() uint64 {
	tm.stampMu.Lock()
	defer tm.stampMu.Unlock()
	if oldest, ok := tm.watermark.oldest(); ok {
		return oldest
	}
	return tm.clock.Current() + 1
}

// ActiveCount number of txns that have not finished
func (tm *TxnManager) ActiveCount() int {
	return tm.watermark.active()
}

// Get txn by id while the registry still tracks it
func (tm *TxnManager) Get(txID uint64) *Txn {
	return tm.tracker.get(txID)
}
