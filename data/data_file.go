package data

import (
	"MvccDB/fio"
	"fmt"
	"hash/crc32"
	"io"
	"path/filepath"
)

const DataFileNameSuffix = ".data"

// DataFile one append-only file of version records
type DataFile struct {
	FileId    uint32        // file id
	WriteOff  int64         // next append offset
	IOManager fio.IOManager // actual file io
}

// DataFileName name of the data file with the given id inside dirPath
func DataFileName(dirPath string, fileId uint32) string {
	return filepath.Join(dirPath, fmt.Sprintf("%09d", fileId)+DataFileNameSuffix)
}

// OpenDataFile opens (or creates) a data file
func OpenDataFile(dirPath string, fileId uint32) (*DataFile, error) {
	ioManager, err := fio.NewIOManager(DataFileName(dirPath, fileId), fio.StandardFIO)
	if err != nil {
		return nil, err
	}
	return &DataFile{
		FileId:    fileId,
		WriteOff:  0,
		IOManager: ioManager,
	}, nil
}

func (df *DataFile) Sync() error {
	return df.IOManager.Sync()
}

func (df *DataFile) Close() error {
	return df.IOManager.Close()
}

func (df *DataFile) Write(buf []byte) error {
	n, err := df.IOManager.Write(buf)
	if err != nil {
		return err
	}
	df.WriteOff += int64(n)
	return nil
}

// ReadVersionRecord reads the record starting at offset, returns it with its size.
// io.EOF marks the end of the file.
func (df *DataFile) ReadVersionRecord(offset int64) (*VersionRecord, int64, error) {
	fileSize, err := df.IOManager.Size()
	if err != nil {
		return nil, 0, err
	}
	if offset >= fileSize {
		return nil, 0, io.EOF
	}
	// the last record may be shorter than the largest possible header
	var headerBytes int64 = maxVersionRecordHeaderSize
	if offset+headerBytes > fileSize {
		headerBytes = fileSize - offset
	}
	headerBuf, err := df.readNBytes(headerBytes, offset)
	if err != nil {
		return nil, 0, err
	}
	header, headerSize := decodeVersionRecordHeader(headerBuf)
	if header == nil {
		return nil, 0, io.EOF
	}
	if header.crc == 0 && header.bodySize == 0 {
		return nil, 0, io.EOF
	}
	recordSize := headerSize + int64(header.bodySize)
	if offset+recordSize > fileSize {
		// torn tail write
		return nil, 0, io.EOF
	}
	body, err := df.readNBytes(int64(header.bodySize), offset+headerSize)
	if err != nil {
		return nil, 0, err
	}
	crc := crc32.ChecksumIEEE(headerBuf[crc32.Size:headerSize])
	crc = crc32.Update(crc, crc32.IEEETable, body)
	if crc != header.crc {
		return nil, 0, ErrInvalidCRC
	}
	record, err := decodeVersionRecordBody(header.recordType, body)
	if err != nil {
		return nil, 0, err
	}
	return record, recordSize, nil
}

func (df *DataFile) readNBytes(n int64, offset int64) (b []byte, err error) {
	b = make([]byte, n)
	_, err = df.IOManager.Read(b, offset)
	return
}
