package storage

import "errors"

var (
	ErrUnsupportedStorageType = errors.New("unsupported storage type")
	ErrStorageClosed          = errors.New("storage is closed")
	ErrDataDirectoryCorrupted = errors.New("the data directory may be corrupted")
	ErrInvalidDataFileSize    = errors.New("data file size must be greater than 0")
)
