package MvccDB

import (
	"MvccDB/index"
	"MvccDB/storage"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Options struct {
	DirPath              string              `yaml:"dir_path"`               // data directory, only used with durable storage
	IndexType            index.IndexType     `yaml:"index_type"`             // in-memory RowID index
	StorageType          storage.StorageType `yaml:"storage_type"`           // where committed versions are persisted
	DataFileSize         int64               `yaml:"data_file_size"`         // log storage file rotation size
	SyncWrites           bool                `yaml:"sync_writes"`            // fsync every commit
	GCInterval           time.Duration       `yaml:"gc_interval"`            // background collection period, 0 disables the loop
	TombstoneGraceCycles int                 `yaml:"tombstone_grace_cycles"` // passes a dead tombstone survives before its chain is dropped
}

// DefaultOptions in-memory store with a background collector
var DefaultOptions = Options{
	DirPath:              os.TempDir(),
	IndexType:            index.Btree,
	StorageType:          storage.None,
	DataFileSize:         256 * 1024 * 1024,
	SyncWrites:           true,
	GCInterval:           time.Second,
	TombstoneGraceCycles: 2,
}

// LoadOptions reads a YAML file, missing keys keep their DefaultOptions value
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions
	buf, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, &opts); err != nil {
		return opts, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return opts, checkOptions(opts)
}

func checkOptions(options Options) error {
	if options.StorageType != storage.None && options.DirPath == "" {
		return errors.New("database dir path is none")
	}
	if options.StorageType == storage.Log && options.DataFileSize <= 0 {
		return errors.New("database data file size must be greater than 0")
	}
	if options.GCInterval < 0 {
		return errors.New("gc interval must not be negative")
	}
	if options.TombstoneGraceCycles < 0 {
		return errors.New("tombstone grace cycles must not be negative")
	}
	return nil
}
