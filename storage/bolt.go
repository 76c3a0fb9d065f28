package storage

import (
	"MvccDB/data"
	"path/filepath"

	"go.etcd.io/bbolt"
)

const boltFileName = "row-versions.bolt"

var versionBucketName = []byte("row-versions")

// BoltStorage bbolt file, one key per RowID holding its newest committed version
type BoltStorage struct {
	db *bbolt.DB
}

func OpenBoltStorage(opts Options) (*BoltStorage, error) {
	boltOpts := *bbolt.DefaultOptions
	boltOpts.NoSync = !opts.SyncWrites
	db, err := bbolt.Open(filepath.Join(opts.DirPath, boltFileName), 0644, &boltOpts)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(versionBucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStorage{db: db}, nil
}

// Persist one bbolt transaction per commit
func (bs *BoltStorage) Persist(entries []Entry) error {
	return bs.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(versionBucketName)
		for _, e := range entries {
			buf, err := encodeEntry(e)
			if err != nil {
				return err
			}
			if err := bucket.Put(e.ID.Encode(), buf); err != nil {
				return err
			}
		}
		return nil
	})
}

func (bs *BoltStorage) Load(id data.RowID) (*data.RowVersion, error) {
	var v *data.RowVersion
	err := bs.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(versionBucketName).Get(id.Encode())
		if len(value) == 0 {
			return nil
		}
		record, err := data.DecodeVersionRecord(value)
		if err != nil {
			return err
		}
		v = record.Version()
		return nil
	})
	return v, err
}

func (bs *BoltStorage) Fold(fn func(id data.RowID, v *data.RowVersion) bool) error {
	return bs.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(versionBucketName).Cursor()
		for k, value := cursor.First(); k != nil; k, value = cursor.Next() {
			record, err := data.DecodeVersionRecord(value)
			if err != nil {
				return err
			}
			if !fn(record.ID, record.Version()) {
				return nil
			}
		}
		return nil
	})
}

func (bs *BoltStorage) Sync() error {
	return bs.db.Sync()
}

func (bs *BoltStorage) Close() error {
	return bs.db.Close()
}
