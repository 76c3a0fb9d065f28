package data

import "errors"

var (
	ErrInvalidCRC         = errors.New("invalid crc value, version record maybe corrupted")
	ErrInvalidRecord      = errors.New("version record is malformed")
	ErrInvalidRowID       = errors.New("row id must be 16 bytes")
	ErrUncommittedVersion = errors.New("only committed versions can be encoded")
)
