package MvccDB

import "errors"

var (
	ErrNotFound                = errors.New("row not found")
	ErrDuplicateKey            = errors.New("row id already exists")
	ErrWriteConflict           = errors.New("write conflict detected")
	ErrInvalidTransactionState = errors.New("transaction is not active")
	ErrClockExhausted          = errors.New("logical clock exhausted")
	ErrNilTransaction          = errors.New("transaction is nil")
	ErrDatabaseIsUsing         = errors.New("the database directory is used by another process")
	ErrDatabaseClosed          = errors.New("database is closed")
	ErrCursorClosed            = errors.New("cursor is closed")
)
