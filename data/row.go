package data

import (
	"encoding/binary"
	"fmt"
)

// RowIDSize encoded RowID length: table id + row id, both big endian
const RowIDSize = 16

// RowID identity of a logical row. The table identity is part of the id,
// so ids of one table are contiguous in RowID order.
type RowID struct {
	TableID uint64
	RowID   uint64
}

// Less orders ids by table first, then row
func (id RowID) Less(other RowID) bool {
	if id.TableID != other.TableID {
		return id.TableID < other.TableID
	}
	return id.RowID < other.RowID
}

func (id RowID) String() string {
	return fmt.Sprintf("%d:%d", id.TableID, id.RowID)
}

// Encode big endian so that bytes.Compare agrees with Less
func (id RowID) Encode() []byte {
	buf := make([]byte, RowIDSize)
	binary.BigEndian.PutUint64(buf[:8], id.TableID)
	binary.BigEndian.PutUint64(buf[8:], id.RowID)
	return buf
}

// DecodeRowID inverse of Encode
func DecodeRowID(buf []byte) (RowID, error) {
	if len(buf) != RowIDSize {
		return RowID{}, ErrInvalidRowID
	}
	return RowID{
		TableID: binary.BigEndian.Uint64(buf[:8]),
		RowID:   binary.BigEndian.Uint64(buf[8:]),
	}, nil
}

// TablePrefix key prefix shared by every row of a table
func TablePrefix(tableID uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, tableID)
	return buf
}

// Row payload of one version. Never mutated after construction, an update
// always builds a new Row.
type Row struct {
	ID      RowID
	Columns [][]byte
}

// NewRow copies the columns so the caller may reuse its buffers
func NewRow(id RowID, columns [][]byte) *Row {
	cols := make([][]byte, len(columns))
	for i, c := range columns {
		if c == nil {
			continue
		}
		cols[i] = append([]byte{}, c...)
	}
	return &Row{ID: id, Columns: cols}
}

// Clone deep copy, nil for a nil row
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	return NewRow(r.ID, r.Columns)
}

// Column returns column i or nil when out of range
func (r *Row) Column(i int) []byte {
	if r == nil || i < 0 || i >= len(r.Columns) {
		return nil
	}
	return r.Columns[i]
}
