package MvccDB

import (
	"MvccDB/data"
	"MvccDB/index"
	"MvccDB/storage"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPersistFailed = errors.New("persist failed")

// brokenStorage rejects every commit
type brokenStorage struct{}

func (bs *brokenStorage) Persist(entries []storage.Entry) error {
	return errPersistFailed
}

func (bs *brokenStorage) Load(id data.RowID) (*data.RowVersion, error) {
	return nil, nil
}

func (bs *brokenStorage) Fold(fn func(id data.RowID, v *data.RowVersion) bool) error {
	return nil
}

func (bs *brokenStorage) Sync() error  { return nil }
func (bs *brokenStorage) Close() error { return nil }

func newTestManager(t *testing.T, durable storage.Storage) *TxnManager {
	indexer, err := index.NewIndexer(index.Btree)
	require.NoError(t, err)
	return NewTxnManager(NewLocalClock(0), NewMvStore(indexer, newTracker()), durable)
}

func TestTxnManager_Begin(t *testing.T) {
	tm := newTestManager(t, nil)
	tx1 := tm.Begin()
	tx2 := tm.Begin()
	assert.NotEqual(t, tx1.ID(), tx2.ID())
	assert.Less(t, tx1.Snapshot(), tx2.Snapshot())
	assert.Equal(t, TxnActive, tx1.State())
	assert.Equal(t, 2, tm.ActiveCount())
	assert.Same(t, tx1, tm.Get(tx1.ID()))
}

func TestTxnManager_Commit(t *testing.T) {
	tm := newTestManager(t, nil)
	txn := tm.Begin()
	_, err := txn.Insert(1, cols("a"))
	require.NoError(t, err)

	commitTS, err := tm.Commit(txn)
	require.NoError(t, err)
	assert.Greater(t, commitTS, txn.Snapshot())
	assert.Equal(t, commitTS, txn.CommitTS())
	assert.Equal(t, TxnCommitted, txn.State())
	assert.Equal(t, 0, tm.ActiveCount())

	_, err = tm.Commit(txn)
	assert.Equal(t, ErrInvalidTransactionState, err)
	_, err = txn.Insert(1, cols("b"))
	assert.Equal(t, ErrInvalidTransactionState, err)
}

func TestTxnManager_ReadOnlyCommit(t *testing.T) {
	tm := newTestManager(t, &brokenStorage{})
	txn := tm.Begin()
	commitTS, err := tm.Commit(txn)
	require.NoError(t, err)
	assert.Greater(t, commitTS, uint64(0))
}

func TestTxnManager_Abort(t *testing.T) {
	tm := newTestManager(t, nil)
	txn := tm.Begin()
	id, err := txn.Insert(1, cols("a"))
	require.NoError(t, err)

	tm.Abort(txn)
	tm.Abort(txn)
	tm.Abort(nil)
	assert.Equal(t, TxnAborted, txn.State())
	assert.Equal(t, 0, tm.ActiveCount())

	_, err = tm.Commit(txn)
	assert.Equal(t, ErrInvalidTransactionState, err)
	_, err = txn.Read(id)
	assert.Equal(t, ErrInvalidTransactionState, err)
	assert.Equal(t, ErrInvalidTransactionState, txn.Update(id, cols("b")))
	_, err = txn.Scan(1)
	assert.Equal(t, ErrInvalidTransactionState, err)

	committed := tm.Begin()
	_, err = tm.Commit(committed)
	require.NoError(t, err)
	tm.Abort(committed)
	assert.Equal(t, TxnCommitted, committed.State())
}

func TestTxnManager_CommitAtomicity(t *testing.T) {
	tm := newTestManager(t, &brokenStorage{})
	base := NewTxnManager(tm.clock, tm.store, nil)

	seed := base.Begin()
	id, err := seed.Insert(1, cols("seed"))
	require.NoError(t, err)
	_, err = base.Commit(seed)
	require.NoError(t, err)

	txn := tm.Begin()
	for i := 0; i < 10; i++ {
		_, err := txn.Insert(1, cols(strconv.Itoa(i)))
		require.NoError(t, err)
	}
	require.NoError(t, txn.Update(id, cols("changed")))

	_, err = tm.Commit(txn)
	assert.ErrorIs(t, err, errPersistFailed)
	assert.Equal(t, TxnAborted, txn.State())

	reader := tm.Begin()
	ids := tm.store.ScanRowIDsForTable(1)
	assert.Equal(t, []data.RowID{id}, ids)
	row, err := reader.Read(id)
	require.NoError(t, err)
	assert.Equal(t, cols("seed"), row.Columns)
}

func TestTxnManager_Watermark(t *testing.T) {
	tm := newTestManager(t, nil)
	assert.Equal(t, tm.clock.Current()+1, tm.Watermark())

	tx1 := tm.Begin()
	tx2 := tm.Begin()
	assert.Equal(t, tx1.Snapshot(), tm.Watermark())

	_, err := tm.Commit(tx1)
	require.NoError(t, err)
	assert.Equal(t, tx2.Snapshot(), tm.Watermark())

	tm.Abort(tx2)
	assert.Equal(t, tm.clock.Current()+1, tm.Watermark())
}

func TestTxnManager_NoLostUpdates(t *testing.T) {
	db := openTestDB(t, nil)
	id := insertCommitted(t, db, 1, "0")

	const workers = 8
	const increments = 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				for {
					_, err := db.Update(func(txn *Txn) error {
						row, err := txn.Read(id)
						if err != nil {
							return err
						}
						n, err := strconv.Atoi(string(row.Columns[0]))
						if err != nil {
							return err
						}
						return txn.Update(id, cols(strconv.Itoa(n+1)))
					})
					if err == nil {
						break
					}
					if !errors.Is(err, ErrWriteConflict) {
						t.Error(err)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	require.NoError(t, db.View(func(txn *Txn) error {
		row, err := txn.Read(id)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(workers*increments), string(row.Columns[0]))
		return nil
	}))
	assert.Equal(t, 0, db.Stat().ActiveTxns)
}

func TestTxnManager_ConcurrentDisjointCommits(t *testing.T) {
	db := openTestDB(t, nil)
	const workers = 10
	var wg sync.WaitGroup
	commits := make([]uint64, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ts, err := db.Update(func(txn *Txn) error {
				_, err := txn.Insert(uint64(w+1), cols("x"))
				return err
			})
			assert.NoError(t, err)
			commits[w] = ts
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, ts := range commits {
		assert.False(t, seen[ts])
		seen[ts] = true
	}
	assert.Equal(t, workers, db.Store().RowCount())
}

func TestTxnManager_CommitRacesAbort(t *testing.T) {
	db := openTestDB(t, nil)

	for i := 0; i < 200; i++ {
		txn, err := db.Begin()
		require.NoError(t, err)
		var ids []data.RowID
		for j := 0; j < 3; j++ {
			id, err := txn.Insert(1, cols(strconv.Itoa(i), strconv.Itoa(j)))
			require.NoError(t, err)
			ids = append(ids, id)
		}

		var wg sync.WaitGroup
		var commitErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, commitErr = db.Commit(txn)
		}()
		go func() {
			defer wg.Done()
			db.Abort(txn)
		}()
		wg.Wait()

		state := txn.State()
		require.Contains(t, []TxnState{TxnCommitted, TxnAborted}, state)
		if state == TxnCommitted {
			assert.NoError(t, commitErr)
		} else {
			assert.Error(t, commitErr)
		}

		require.NoError(t, db.View(func(reader *Txn) error {
			for _, id := range ids {
				row, err := reader.Read(id)
				require.NoError(t, err)
				if state == TxnCommitted {
					assert.NotNil(t, row)
				} else {
					assert.Nil(t, row)
				}
			}
			return nil
		}))
	}
	assert.Equal(t, 0, db.Stat().ActiveTxns)
}
