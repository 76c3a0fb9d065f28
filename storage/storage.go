package storage

import (
	"MvccDB/data"
)

// Entry one committed version to persist
type Entry struct {
	ID      data.RowID
	Version *data.RowVersion
}

// Storage durable home of committed versions. Only the newest committed
// version of each row is kept, history lives in memory.
type Storage interface {
	// Persist writes the versions of one commit, all or nothing
	Persist(entries []Entry) error
	// Load newest persisted version of id, nil when absent
	Load(id data.RowID) (*data.RowVersion, error)
	// Fold calls fn for every persisted row until fn returns false
	Fold(fn func(id data.RowID, v *data.RowVersion) bool) error
	Sync() error
	Close() error
}

type StorageType = int8

const (
	// None keeps everything in memory
	None StorageType = iota
	// Log append-only data files
	Log
	// Bolt bbolt b+tree file
	Bolt
)

type Options struct {
	DirPath      string
	DataFileSize int64
	SyncWrites   bool
}

// Open opens the storage of the given type, nil for None
func Open(typ StorageType, opts Options) (Storage, error) {
	switch typ {
	case None:
		return nil, nil
	case Log:
		return OpenLogStorage(opts)
	case Bolt:
		return OpenBoltStorage(opts)
	default:
		return nil, ErrUnsupportedStorageType
	}
}

func encodeEntry(e Entry) ([]byte, error) {
	record, err := data.NewVersionRecord(e.ID, e.Version)
	if err != nil {
		return nil, err
	}
	buf, _ := data.EncodeVersionRecord(record)
	return buf, nil
}
