package MvccDB

import (
	"MvccDB/data"
	"MvccDB/index"
	"MvccDB/storage"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

const fileLockName = "flock"

// DB MVCC row store: version store, txn manager, collector and the
// durable storage behind them
type DB struct {
	mu       *sync.RWMutex
	options  Options
	clock    *LocalClock
	store    *MvStore
	manager  *TxnManager
	gc       *GarbageCollector
	storage  storage.Storage
	fileLock *flock.Flock
	closed   bool
}

// Open builds a DB. With durable storage the data directory is locked and
// every persisted row is loaded back as a committed version.
func Open(options Options) (*DB, error) {
	if err := checkOptions(options); err != nil {
		return nil, err
	}
	db := &DB{
		mu:      new(sync.RWMutex),
		options: options,
	}

	if options.StorageType != storage.None {
		if err := os.MkdirAll(options.DirPath, os.ModePerm); err != nil {
			return nil, err
		}
		fileLock := flock.New(filepath.Join(options.DirPath, fileLockName))
		hold, err := fileLock.TryLock()
		if err != nil {
			return nil, err
		}
		if !hold {
			return nil, ErrDatabaseIsUsing
		}
		db.fileLock = fileLock
	}

	indexer, err := index.NewIndexer(options.IndexType)
	if err != nil {
		db.unlock()
		return nil, err
	}
	durable, err := storage.Open(options.StorageType, storage.Options{
		DirPath:      options.DirPath,
		DataFileSize: options.DataFileSize,
		SyncWrites:   options.SyncWrites,
	})
	if err != nil {
		db.unlock()
		return nil, err
	}
	db.storage = durable
	db.store = NewMvStore(indexer, newTracker())

	lastTS, err := db.loadFromStorage()
	if err != nil {
		_ = db.closeStorage()
		db.unlock()
		return nil, err
	}
	db.clock = NewLocalClock(lastTS)
	db.manager = NewTxnManager(db.clock, db.store, durable)
	db.gc = NewGarbageCollector(db.store, db.manager, options.GCInterval, options.TombstoneGraceCycles)
	db.gc.Start()
	return db, nil
}

// loadFromStorage returns the largest persisted commit ts
func (db *DB) loadFromStorage() (uint64, error) {
	if db.storage == nil {
		return 0, nil
	}
	var lastTS uint64
	err := db.storage.Fold(func(id data.RowID, v *data.RowVersion) bool {
		db.store.restore(id, v)
		if v.Begin.Value > lastTS {
			lastTS = v.Begin.Value
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("load persisted rows: %w", err)
	}
	return lastTS, nil
}

// Close stops the collector and closes the storage. Active txns are
// left as they are, their writes were never persisted.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.gc.Stop()
	err := db.closeStorage()
	db.unlock()
	return err
}

func (db *DB) closeStorage() error {
	if db.storage == nil {
		return nil
	}
	return db.storage.Close()
}

func (db *DB) unlock() {
	if db.fileLock != nil {
		_ = db.fileLock.Unlock()
	}
}

// Sync flushes the storage
func (db *DB) Sync() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrDatabaseClosed
	}
	if db.storage == nil {
		return nil
	}
	return db.storage.Sync()
}

// Begin starts a transaction
func (db *DB) Begin() (*Txn, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	return db.manager.Begin(), nil
}

func (db *DB) Commit(txn *Txn) (uint64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return 0, ErrDatabaseClosed
	}
	return db.manager.Commit(txn)
}

func (db *DB) Abort(txn *Txn) {
	db.manager.Abort(txn)
}

// NewScanCursor cursor over tableID under txn's snapshot
func (db *DB) NewScanCursor(txn *Txn, tableID uint64) (*ScanCursor, error) {
	return NewScanCursor(db.store, txn, tableID)
}

// Store version store, its operations take an active txn
func (db *DB) Store() *MvStore {
	return db.store
}

func (db *DB) Manager() *TxnManager {
	return db.manager
}

// CollectGarbage runs one collection pass right away
func (db *DB) CollectGarbage() GCStats {
	return db.gc.Collect()
}

// TriggerGC asks the background collector for a pass
func (db *DB) TriggerGC() {
	db.gc.Trigger()
}

// Merge compacts the storage files, a no-op for storage without files
func (db *DB) Merge() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrDatabaseClosed
	}
	merger, ok := db.storage.(storage.Merger)
	if !ok {
		return nil
	}
	return merger.Merge()
}

// Stat counters of the store
type Stat struct {
	Rows        int    // indexed RowIDs
	ActiveTxns  int    // txns not yet finished
	Tracked     int    // txns the registry still holds
	Clock       uint64 // last timestamp handed out
	ReclaimSize int64  // bytes a merge would free
}

func (db *DB) Stat() Stat {
	stat := Stat{
		Rows:       db.store.RowCount(),
		ActiveTxns: db.manager.ActiveCount(),
		Tracked:    db.store.tracker.size(),
		Clock:      db.clock.Current(),
	}
	if ls, ok := db.storage.(*storage.LogStorage); ok {
		stat.ReclaimSize = ls.ReclaimableSize()
	}
	return stat
}
