package MvccDB

import (
	"MvccDB/data"
	"MvccDB/index"
	"MvccDB/storage"
	"sync"
)

// MvStore version store: every RowID maps to a chain of versions.
// Writers of one row are serialized by the chain lock, nothing else is
// shared between writers of different rows.
type MvStore struct {
	index   index.Indexer
	tracker *tracker

	mu *sync.Mutex
	// next row id per table
	rowIDs map[uint64]uint64
}

func NewMvStore(indexer index.Indexer, tk *tracker) *MvStore {
	return &MvStore{
		index:   indexer,
		tracker: tk,
		mu:      new(sync.Mutex),
		rowIDs:  make(map[uint64]uint64),
	}
}

type writeKind int

const (
	writeInsert writeKind = iota
	writeUpdate
	writeDelete
)

// Insert allocates a RowID in table and writes an uncommitted version
func (s *MvStore) Insert(txn *Txn, tableID uint64, columns [][]byte) (data.RowID, error) {
	if txn == nil {
		return data.RowID{}, ErrNilTransaction
	}
	if !txn.IsActive() {
		return data.RowID{}, ErrInvalidTransactionState
	}
	id := s.nextRowID(tableID)
	if err := s.write(txn, writeInsert, data.NewRow(id, columns)); err != nil {
		return data.RowID{}, err
	}
	return id, nil
}

// InsertRow inserts a copy of row under its own id. Fails with
// ErrDuplicateKey when a live version of the id is visible to txn.
func (s *MvStore) InsertRow(txn *Txn, row *data.Row) error {
	if txn == nil {
		return ErrNilTransaction
	}
	s.observeRowID(row.ID)
	return s.write(txn, writeInsert, row.Clone())
}

// Update replaces the row visible to txn with columns
func (s *MvStore) Update(txn *Txn, id data.RowID, columns [][]byte) error {
	if txn == nil {
		return ErrNilTransaction
	}
	return s.write(txn, writeUpdate, data.NewRow(id, columns))
}

// UpdateRow update with a copy of row, the caller keeps ownership of row
func (s *MvStore) UpdateRow(txn *Txn, row *data.Row) error {
	if txn == nil {
		return ErrNilTransaction
	}
	return s.write(txn, writeUpdate, row.Clone())
}

// Delete writes a tombstone over the row visible to txn
func (s *MvStore) Delete(txn *Txn, id data.RowID) error {
	if txn == nil {
		return ErrNilTransaction
	}
	return s.write(txn, writeDelete, &data.Row{ID: id})
}

// Read copy of the row visible to txn, nil when the row is deleted or
// never existed for txn's snapshot
func (s *MvStore) Read(txn *Txn, id data.RowID) (*data.Row, error) {
	if txn == nil {
		return nil, ErrNilTransaction
	}
	if !txn.IsActive() {
		return nil, ErrInvalidTransactionState
	}
	chain := s.index.Get(id)
	if chain == nil {
		return nil, nil
	}
	chain.RLock()
	defer chain.RUnlock()
	v := s.visibleVersion(txn, chain)
	if v == nil {
		return nil, nil
	}
	return v.Row.Clone(), nil
}

// ScanRowIDsForTable every RowID of table still held by the store in
// ascending order, visibility is not checked
func (s *MvStore) ScanRowIDsForTable(tableID uint64) []data.RowID {
	it := s.index.Iterator(data.TablePrefix(tableID), false)
	defer it.Close()
	ids := make([]data.RowID, 0)
	for it.Rewind(); it.Valid(); it.Next() {
		ids = append(ids, it.Key())
	}
	return ids
}

// RowCount number of indexed RowIDs across all tables
func (s *MvStore) RowCount() int {
	return s.index.Size()
}

func (s *MvStore) nextRowID(tableID uint64) data.RowID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowIDs[tableID]++
	return data.RowID{TableID: tableID, RowID: s.rowIDs[tableID]}
}

// observeRowID keeps allocated ids above caller chosen ones
func (s *MvStore) observeRowID(id data.RowID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rowIDs[id.TableID] < id.RowID {
		s.rowIDs[id.TableID] = id.RowID
	}
}

// lockChain returns the locked chain of id, creating it when create is set.
// A chain dropped while we waited for its lock is looked up again.
func (s *MvStore) lockChain(id data.RowID, create bool) *data.VersionChain {
	for {
		chain := s.index.Get(id)
		if chain == nil {
			if !create {
				return nil
			}
			chain, _ = s.index.PutIfAbsent(id, data.NewVersionChain(id))
		}
		chain.Lock()
		if !chain.Dropped {
			return chain
		}
		chain.Unlock()
	}
}

// dropChain callers hold the chain lock
func (s *MvStore) dropChain(chain *data.VersionChain) {
	chain.Dropped = true
	s.index.Delete(chain.ID)
}

func (s *MvStore) write(txn *Txn, kind writeKind, row *data.Row) error {
	chain := s.lockChain(row.ID, kind == writeInsert)
	if chain == nil {
		if !txn.IsActive() {
			return ErrInvalidTransactionState
		}
		return ErrNotFound
	}
	defer chain.Unlock()

	if err := txn.beginWrite(); err != nil {
		s.dropIfEmpty(chain)
		return err
	}
	err := s.applyWrite(txn, chain, kind, row)
	txn.endWrite(row.ID, err)
	if err != nil {
		s.dropIfEmpty(chain)
	}
	return err
}

func (s *MvStore) dropIfEmpty(chain *data.VersionChain) {
	if chain.Len() == 0 {
		s.dropChain(chain)
	}
}

// applyWrite first writer wins: a row holding another txn's uncommitted
// version, or a version committed after txn's snapshot, is a conflict.
// Callers hold the chain lock and txn's write lock.
func (s *MvStore) applyWrite(txn *Txn, chain *data.VersionChain, kind writeKind, row *data.Row) error {
	s.pruneAborted(chain)
	head := chain.Head()
	if kind == writeDelete {
		row = nil
	}

	if head == nil {
		if kind != writeInsert {
			return ErrNotFound
		}
		chain.Append(&data.RowVersion{Row: row, Begin: data.TxID(txn.id), End: data.Open()})
		return nil
	}

	// our own pending version is replaced in place
	if head.Begin.IsTxID() && head.Begin.Value == txn.id {
		switch {
		case kind == writeInsert && !head.IsTombstone():
			return ErrDuplicateKey
		case kind != writeInsert && head.IsTombstone():
			return ErrNotFound
		}
		head.Row = row
		return nil
	}

	commitTS, committed := s.committedTS(head)
	if !committed || commitTS > txn.snapshot {
		return ErrWriteConflict
	}
	switch {
	case kind == writeInsert && !head.IsTombstone():
		return ErrDuplicateKey
	case kind != writeInsert && head.IsTombstone():
		return ErrNotFound
	}
	head.End = data.TxID(txn.id)
	chain.Append(&data.RowVersion{Row: row, Begin: data.TxID(txn.id), End: data.Open()})
	return nil
}

// pruneAborted removes versions of aborted txns whose cleanup has not run
// yet. Callers hold the chain lock.
func (s *MvStore) pruneAborted(chain *data.VersionChain) {
	kept := chain.Versions[:0]
	for _, v := range chain.Versions {
		if v.Begin.IsTxID() && s.isAborted(v.Begin.Value) {
			continue
		}
		if v.End.IsTxID() && s.isAborted(v.End.Value) {
			v.End = data.Open()
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(chain.Versions); i++ {
		chain.Versions[i] = nil
	}
	chain.Versions = kept
}

func (s *MvStore) isAborted(txID uint64) bool {
	owner := s.tracker.get(txID)
	if owner == nil {
		return false
	}
	state, _ := owner.resolve()
	return state == TxnAborted
}

// validate commit time check: no other txn committed a version of any row
// in txn's write set after txn's snapshot
func (s *MvStore) validate(txn *Txn) error {
	for _, id := range txn.WriteSet() {
		chain := s.index.Get(id)
		if chain == nil {
			continue
		}
		chain.RLock()
		conflict := false
		for _, v := range chain.Versions {
			if v.Begin.IsTxID() && v.Begin.Value == txn.id {
				continue
			}
			if commitTS, ok := s.committedTS(v); ok && commitTS > txn.snapshot {
				conflict = true
				break
			}
		}
		chain.RUnlock()
		if conflict {
			return ErrWriteConflict
		}
	}
	return nil
}

// commitEntries the versions txn is about to commit, stamped with commitTS
func (s *MvStore) commitEntries(txn *Txn, commitTS uint64) []storage.Entry {
	ids := txn.WriteSet()
	entries := make([]storage.Entry, 0, len(ids))
	for _, id := range ids {
		chain := s.index.Get(id)
		if chain == nil {
			continue
		}
		chain.RLock()
		if head := chain.Head(); head != nil && head.Begin.IsTxID() && head.Begin.Value == txn.id {
			entries = append(entries, storage.Entry{
				ID:      id,
				Version: &data.RowVersion{Row: head.Row, Begin: data.Timestamp(commitTS), End: data.Open()},
			})
		}
		chain.RUnlock()
	}
	return entries
}

// finalizeCommit rewrites txn's pending markers to commitTS. Readers
// already treat them as committed through the tracker.
func (s *MvStore) finalizeCommit(txn *Txn, commitTS uint64) {
	for _, id := range txn.WriteSet() {
		chain := s.index.Get(id)
		if chain == nil {
			continue
		}
		chain.Lock()
		for _, v := range chain.Versions {
			if v.Begin.IsTxID() && v.Begin.Value == txn.id {
				v.Begin = data.Timestamp(commitTS)
			}
			if v.End.IsTxID() && v.End.Value == txn.id {
				v.End = data.Timestamp(commitTS)
			}
		}
		chain.Unlock()
	}
}

// rollback removes txn's uncommitted versions and reopens the versions
// they superseded
func (s *MvStore) rollback(txn *Txn) {
	for _, id := range txn.WriteSet() {
		chain := s.index.Get(id)
		if chain == nil {
			continue
		}
		chain.Lock()
		kept := chain.Versions[:0]
		for _, v := range chain.Versions {
			if v.Begin.IsTxID() && v.Begin.Value == txn.id {
				continue
			}
			if v.End.IsTxID() && v.End.Value == txn.id {
				v.End = data.Open()
			}
			kept = append(kept, v)
		}
		for i := len(kept); i < len(chain.Versions); i++ {
			chain.Versions[i] = nil
		}
		chain.Versions = kept
		if !chain.Dropped {
			s.dropIfEmpty(chain)
		}
		chain.Unlock()
	}
}

// restore installs a recovered committed version, used while opening
func (s *MvStore) restore(id data.RowID, v *data.RowVersion) {
	s.observeRowID(id)
	chain, _ := s.index.PutIfAbsent(id, data.NewVersionChain(id))
	chain.Lock()
	defer chain.Unlock()
	chain.Versions = []*data.RowVersion{v}
}
