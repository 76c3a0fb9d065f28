package fio

const DataFilePerm = 0644

type FileIOType = byte

const (
	// StandardFIO standard file io
	StandardFIO FileIOType = iota
)

// IOManager abstract io used by the data files of the log storage
type IOManager interface {
	// Read reads len(b) bytes at offset
	Read([]byte, int64) (int, error)
	// Write appends to the file
	Write([]byte) (int, error)
	// Sync flushes to stable storage
	Sync() error
	// Close closes the file
	Close() error
	// Size current file size
	Size() (int64, error)
}

// NewIOManager opens fileName with the given io type
func NewIOManager(fileName string, ioType FileIOType) (IOManager, error) {
	switch ioType {
	case StandardFIO:
		return NewFileIOManager(fileName)
	default:
		return nil, ErrUnsupportedIOType
	}
}
