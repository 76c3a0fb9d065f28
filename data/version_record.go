package data

import (
	"encoding/binary"
	"hash/crc32"
)

// VersionRecordPos position of a record inside the data files
type VersionRecordPos struct {
	Fid    uint32
	Offset int64
	Size   int64
}

type VersionRecordType = byte

const (
	VersionRecordNormal VersionRecordType = iota
	VersionRecordTombstone
	// VersionRecordCommitFinished trailer of a commit batch, only batches
	// followed by their trailer are replayed
	VersionRecordCommitFinished
)

// crc type bodySize
const maxVersionRecordHeaderSize = crc32.Size + 1 + binary.MaxVarintLen32

// VersionRecord on-disk form of a committed version
type VersionRecord struct {
	ID       RowID
	CommitTS uint64
	Type     VersionRecordType
	Columns  [][]byte
}

type versionRecordHeader struct {
	crc        uint32
	recordType VersionRecordType
	bodySize   uint32
}

// NewVersionRecord builds the record of a committed version
func NewVersionRecord(id RowID, v *RowVersion) (*VersionRecord, error) {
	if !v.Begin.IsTimestamp() {
		return nil, ErrUncommittedVersion
	}
	record := &VersionRecord{ID: id, CommitTS: v.Begin.Value, Type: VersionRecordTombstone}
	if v.Row != nil {
		record.Type = VersionRecordNormal
		record.Columns = v.Row.Columns
	}
	return record, nil
}

// NewCommitFinishedRecord trailer written after every version of a commit
func NewCommitFinishedRecord(commitTS uint64) *VersionRecord {
	return &VersionRecord{CommitTS: commitTS, Type: VersionRecordCommitFinished}
}

// Version rebuilds a committed, open-ended version from the record
func (r *VersionRecord) Version() *RowVersion {
	v := &RowVersion{Begin: Timestamp(r.CommitTS), End: Open()}
	if r.Type == VersionRecordNormal {
		v.Row = NewRow(r.ID, r.Columns)
	}
	return v
}

// EncodeVersionRecord encodes a record, returns the bytes and their length
//
//	+---------+--------+--------------+-------------------------------------------------+
//	|  crc    |  type  |  body size   | table id | row id | commit ts | n | (len, col)* |
//	+---------+--------+--------------+-------------------------------------------------+
//	  4 bytes   1 byte   uvarint(<=5)   uvarints, column length is a varint, -1 = nil
func EncodeVersionRecord(r *VersionRecord) ([]byte, int64) {
	body := make([]byte, 0, 4*binary.MaxVarintLen64+len(r.Columns)*binary.MaxVarintLen32)
	body = binary.AppendUvarint(body, r.ID.TableID)
	body = binary.AppendUvarint(body, r.ID.RowID)
	body = binary.AppendUvarint(body, r.CommitTS)
	body = binary.AppendUvarint(body, uint64(len(r.Columns)))
	for _, col := range r.Columns {
		if col == nil {
			body = binary.AppendVarint(body, -1)
			continue
		}
		body = binary.AppendVarint(body, int64(len(col)))
		body = append(body, col...)
	}

	header := make([]byte, maxVersionRecordHeaderSize)
	header[4] = r.Type
	index := 5
	index += binary.PutUvarint(header[index:], uint64(len(body)))

	encBytes := make([]byte, index+len(body))
	copy(encBytes[:index], header[:index])
	copy(encBytes[index:], body)

	crc := crc32.ChecksumIEEE(encBytes[4:])
	binary.LittleEndian.PutUint32(encBytes[:4], crc)
	return encBytes, int64(len(encBytes))
}

// DecodeVersionRecord decodes a full record produced by EncodeVersionRecord
func DecodeVersionRecord(buf []byte) (*VersionRecord, error) {
	header, headerSize := decodeVersionRecordHeader(buf)
	if header == nil || headerSize+int64(header.bodySize) > int64(len(buf)) {
		return nil, ErrInvalidRecord
	}
	if crc32.ChecksumIEEE(buf[4:headerSize+int64(header.bodySize)]) != header.crc {
		return nil, ErrInvalidCRC
	}
	return decodeVersionRecordBody(header.recordType, buf[headerSize:headerSize+int64(header.bodySize)])
}

func decodeVersionRecordHeader(buf []byte) (*versionRecordHeader, int64) {
	if len(buf) <= 5 {
		return nil, 0
	}
	header := &versionRecordHeader{
		crc:        binary.LittleEndian.Uint32(buf[:4]),
		recordType: buf[4],
	}
	bodySize, n := binary.Uvarint(buf[5:])
	if n <= 0 {
		return nil, 0
	}
	header.bodySize = uint32(bodySize)
	return header, int64(5 + n)
}

func decodeVersionRecordBody(typ VersionRecordType, body []byte) (*VersionRecord, error) {
	record := &VersionRecord{Type: typ}
	var fields [4]uint64
	index := 0
	for i := range fields {
		v, n := binary.Uvarint(body[index:])
		if n <= 0 {
			return nil, ErrInvalidRecord
		}
		fields[i] = v
		index += n
	}
	record.ID = RowID{TableID: fields[0], RowID: fields[1]}
	record.CommitTS = fields[2]
	if fields[3] > uint64(len(body)) {
		return nil, ErrInvalidRecord
	}
	record.Columns = make([][]byte, fields[3])
	for i := range record.Columns {
		size, n := binary.Varint(body[index:])
		if n <= 0 {
			return nil, ErrInvalidRecord
		}
		index += n
		if size < 0 {
			continue
		}
		if index+int(size) > len(body) {
			return nil, ErrInvalidRecord
		}
		record.Columns[i] = append([]byte{}, body[index:index+int(size)]...)
		index += int(size)
	}
	return record, nil
}
