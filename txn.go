package MvccDB

import (
	"MvccDB/data"
	"errors"
	"sync"
)

type TxnState int32

const (
	TxnActive TxnState = iota
	// TxnPreparing commit in progress, Abort no longer applies
	TxnPreparing
	TxnCommitted
	TxnAborted
)

func (s TxnState) String() string {
	switch s {
	case TxnActive:
		return "Active"
	case TxnPreparing:
		return "Preparing"
	case TxnCommitted:
		return "Committed"
	case TxnAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Txn one transaction. It only remembers the RowIDs it wrote, the versions
// themselves are owned by the store.
type Txn struct {
	id       uint64
	snapshot uint64
	store    *MvStore

	// writeMu held for a whole row write, state changes wait for it
	writeMu  *sync.Mutex
	mu       *sync.RWMutex
	state    TxnState
	commitTS uint64
	// endTS commit ts, or the clock reading when the txn aborted
	endTS    uint64
	writeSet map[data.RowID]struct{}
	// writes keeps write set insertion order for deterministic commits
	writes []data.RowID
	// rollbackOnly set by a write conflict, Commit will abort instead
	rollbackOnly bool
	// finalized every pending marker of this txn has been rewritten or removed
	finalized bool
}

func newTxn(id, snapshot uint64, store *MvStore) *Txn {
	return &Txn{
		id:       id,
		snapshot: snapshot,
		store:    store,
		writeMu:  new(sync.Mutex),
		mu:       new(sync.RWMutex),
		state:    TxnActive,
		writeSet: make(map[data.RowID]struct{}),
	}
}

func (txn *Txn) ID() uint64 {
	return txn.id
}

// Snapshot begin timestamp, the txn sees commits with ts <= Snapshot
func (txn *Txn) Snapshot() uint64 {
	return txn.snapshot
}

func (txn *Txn) State() TxnState {
	txn.mu.RLock()
	defer txn.mu.RUnlock()
	return txn.state
}

// CommitTS 0 unless committed
func (txn *Txn) CommitTS() uint64 {
	txn.mu.RLock()
	defer txn.mu.RUnlock()
	return txn.commitTS
}

func (txn *Txn) IsActive() bool {
	return txn.State() == TxnActive
}

// WriteSet copy of the written RowIDs in write order
func (txn *Txn) WriteSet() []data.RowID {
	txn.mu.RLock()
	defer txn.mu.RUnlock()
	ids := make([]data.RowID, len(txn.writes))
	copy(ids, txn.writes)
	return ids
}

// resolve state and commit ts read together
func (txn *Txn) resolve() (TxnState, uint64) {
	txn.mu.RLock()
	defer txn.mu.RUnlock()
	return txn.state, txn.commitTS
}

// transition check-and-set of the state, the only way commit and abort
// decide who owns the txn
func (txn *Txn) transition(from, to TxnState) bool {
	txn.writeMu.Lock()
	defer txn.writeMu.Unlock()
	txn.mu.Lock()
	defer txn.mu.Unlock()
	if txn.state != from {
		return false
	}
	txn.state = to
	return true
}

func (txn *Txn) setCommitted(commitTS uint64) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.state = TxnCommitted
	txn.commitTS = commitTS
	txn.endTS = commitTS
}

func (txn *Txn) setAborted(endTS uint64) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.state = TxnAborted
	txn.endTS = endTS
}

func (txn *Txn) setFinalized() {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.finalized = true
}

func (txn *Txn) isFinalized() (bool, uint64) {
	txn.mu.RLock()
	defer txn.mu.RUnlock()
	return txn.finalized, txn.endTS
}

func (txn *Txn) isRollbackOnly() bool {
	txn.mu.RLock()
	defer txn.mu.RUnlock()
	return txn.rollbackOnly
}

// beginWrite locks the txn for one row mutation. The caller already holds
// the chain lock, holding both keeps a concurrent Abort from missing the row.
// mu is not held in between, other writers resolve this txn's state.
func (txn *Txn) beginWrite() error {
	txn.writeMu.Lock()
	if txn.State() != TxnActive {
		txn.writeMu.Unlock()
		return ErrInvalidTransactionState
	}
	return nil
}

// endWrite releases beginWrite, recording id when the write happened
func (txn *Txn) endWrite(id data.RowID, err error) {
	defer txn.writeMu.Unlock()
	txn.mu.Lock()
	defer txn.mu.Unlock()
	if errors.Is(err, ErrWriteConflict) {
		txn.rollbackOnly = true
	}
	if err != nil {
		return
	}
	if _, ok := txn.writeSet[id]; !ok {
		txn.writeSet[id] = struct{}{}
		txn.writes = append(txn.writes, id)
	}
}

// Insert a new row into table, see MvStore.Insert
func (txn *Txn) Insert(tableID uint64, columns [][]byte) (data.RowID, error) {
	return txn.store.Insert(txn, tableID, columns)
}

// InsertRow insert with a caller chosen id
func (txn *Txn) InsertRow(id data.RowID, columns [][]byte) error {
	return txn.store.InsertRow(txn, &data.Row{ID: id, Columns: columns})
}

func (txn *Txn) Update(id data.RowID, columns [][]byte) error {
	return txn.store.Update(txn, id, columns)
}

func (txn *Txn) Delete(id data.RowID) error {
	return txn.store.Delete(txn, id)
}

func (txn *Txn) Read(id data.RowID) (*data.Row, error) {
	return txn.store.Read(txn, id)
}

// Scan opens a cursor over table under this txn's snapshot
func (txn *Txn) Scan(tableID uint64) (*ScanCursor, error) {
	return NewScanCursor(txn.store, txn, tableID)
}
