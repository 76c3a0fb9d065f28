package storage

import (
	"MvccDB/data"
	"errors"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// LogStorage bitcask style storage: records are appended to the active data
// file, an in-memory map points every RowID at its newest record.
type LogStorage struct {
	mu         *sync.RWMutex
	options    Options
	activeFile *data.DataFile            // current append target
	olderFiles map[uint32]*data.DataFile // read only
	fileIds    []int                     // only used while loading
	index      map[data.RowID]*data.VersionRecordPos
	// baseFileId id of the first file created in an empty directory
	baseFileId uint32
	// reclaimSize bytes a merge would drop
	reclaimSize int64
	closed      bool
}

func OpenLogStorage(opts Options) (*LogStorage, error) {
	if opts.DataFileSize <= 0 {
		return nil, ErrInvalidDataFileSize
	}
	if err := os.MkdirAll(opts.DirPath, os.ModePerm); err != nil {
		return nil, err
	}
	ls := &LogStorage{
		mu:         new(sync.RWMutex),
		options:    opts,
		olderFiles: make(map[uint32]*data.DataFile),
		index:      make(map[data.RowID]*data.VersionRecordPos),
	}
	if err := ls.loadMergeFiles(); err != nil {
		return nil, err
	}
	if err := ls.loadDataFiles(); err != nil {
		return nil, err
	}
	if err := ls.loadIndexFromDataFiles(); err != nil {
		return nil, err
	}
	return ls, nil
}

// Persist appends every record of the commit followed by a finished marker.
// A crash before the marker makes recovery drop the whole batch.
func (ls *LogStorage) Persist(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return ErrStorageClosed
	}

	var commitTS uint64
	positions := make(map[data.RowID]*data.VersionRecordPos, len(entries))
	for _, e := range entries {
		record, err := data.NewVersionRecord(e.ID, e.Version)
		if err != nil {
			return err
		}
		commitTS = record.CommitTS
		pos, err := ls.appendVersionRecord(record)
		if err != nil {
			return err
		}
		positions[e.ID] = pos
	}
	finished, err := ls.appendVersionRecord(data.NewCommitFinishedRecord(commitTS))
	if err != nil {
		return err
	}
	ls.reclaimSize += finished.Size
	if ls.options.SyncWrites {
		if err := ls.activeFile.Sync(); err != nil {
			return err
		}
	}
	for id, pos := range positions {
		ls.setIndex(id, pos)
	}
	return nil
}

// setIndex callers hold mu
func (ls *LogStorage) setIndex(id data.RowID, pos *data.VersionRecordPos) {
	if old, ok := ls.index[id]; ok {
		ls.reclaimSize += old.Size
	}
	ls.index[id] = pos
}

// ReclaimableSize bytes of superseded records and commit markers
func (ls *LogStorage) ReclaimableSize() int64 {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.reclaimSize
}

func (ls *LogStorage) Load(id data.RowID) (*data.RowVersion, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	if ls.closed {
		return nil, ErrStorageClosed
	}
	pos, ok := ls.index[id]
	if !ok {
		return nil, nil
	}
	record, err := ls.readRecord(pos)
	if err != nil {
		return nil, err
	}
	return record.Version(), nil
}

func (ls *LogStorage) Fold(fn func(id data.RowID, v *data.RowVersion) bool) error {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	if ls.closed {
		return ErrStorageClosed
	}
	ids := make([]data.RowID, 0, len(ls.index))
	for id := range ls.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	for _, id := range ids {
		record, err := ls.readRecord(ls.index[id])
		if err != nil {
			return err
		}
		if !fn(id, record.Version()) {
			break
		}
	}
	return nil
}

func (ls *LogStorage) Sync() error {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	if ls.activeFile == nil || ls.closed {
		return nil
	}
	return ls.activeFile.Sync()
}

func (ls *LogStorage) Close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return nil
	}
	ls.closed = true
	return ls.closeFiles()
}

func (ls *LogStorage) closeFiles() error {
	if ls.activeFile != nil {
		if err := ls.activeFile.Sync(); err != nil {
			return err
		}
		if err := ls.activeFile.Close(); err != nil {
			return err
		}
	}
	for _, file := range ls.olderFiles {
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (ls *LogStorage) readRecord(pos *data.VersionRecordPos) (*data.VersionRecord, error) {
	var dataFile *data.DataFile
	if ls.activeFile != nil && pos.Fid == ls.activeFile.FileId {
		dataFile = ls.activeFile
	} else {
		dataFile = ls.olderFiles[pos.Fid]
	}
	if dataFile == nil {
		return nil, ErrDataDirectoryCorrupted
	}
	record, _, err := dataFile.ReadVersionRecord(pos.Offset)
	return record, err
}

// appendVersionRecord callers hold mu
func (ls *LogStorage) appendVersionRecord(record *data.VersionRecord) (*data.VersionRecordPos, error) {
	if ls.activeFile == nil {
		if err := ls.setActiveDataFile(); err != nil {
			return nil, err
		}
	}
	encRecord, size := data.EncodeVersionRecord(record)
	if ls.activeFile.WriteOff+size > ls.options.DataFileSize && ls.activeFile.WriteOff > 0 {
		if err := ls.activeFile.Sync(); err != nil {
			return nil, err
		}
		ls.olderFiles[ls.activeFile.FileId] = ls.activeFile
		if err := ls.setActiveDataFile(); err != nil {
			return nil, err
		}
	}
	writeOff := ls.activeFile.WriteOff
	if err := ls.activeFile.Write(encRecord); err != nil {
		return nil, err
	}
	return &data.VersionRecordPos{Fid: ls.activeFile.FileId, Offset: writeOff, Size: size}, nil
}

func (ls *LogStorage) setActiveDataFile() error {
	fileId := ls.baseFileId
	if ls.activeFile != nil {
		fileId = ls.activeFile.FileId + 1
	}
	dataFile, err := data.OpenDataFile(ls.options.DirPath, fileId)
	if err != nil {
		return err
	}
	ls.activeFile = dataFile
	return nil
}

func (ls *LogStorage) loadDataFiles() error {
	dirEntries, err := os.ReadDir(ls.options.DirPath)
	if err != nil {
		return err
	}
	var fileIds []int
	for _, entry := range dirEntries {
		if !strings.HasSuffix(entry.Name(), data.DataFileNameSuffix) {
			continue
		}
		// 000000001.data
		fileId, err := strconv.Atoi(strings.TrimSuffix(entry.Name(), data.DataFileNameSuffix))
		if err != nil {
			return ErrDataDirectoryCorrupted
		}
		fileIds = append(fileIds, fileId)
	}
	sort.Ints(fileIds)
	ls.fileIds = fileIds
	for i, fid := range fileIds {
		dataFile, err := data.OpenDataFile(ls.options.DirPath, uint32(fid))
		if err != nil {
			return err
		}
		if i == len(fileIds)-1 {
			ls.activeFile = dataFile
		} else {
			ls.olderFiles[uint32(fid)] = dataFile
		}
	}
	return nil
}

type pendingRecord struct {
	pos      *data.VersionRecordPos
	commitTS uint64
}

// loadIndexFromDataFiles replays every file in id order, a record only
// reaches the index once the finished marker of its commit has been read
func (ls *LogStorage) loadIndexFromDataFiles() error {
	if len(ls.fileIds) == 0 {
		return nil
	}
	pending := make(map[data.RowID]pendingRecord)
	for i, fid := range ls.fileIds {
		fileId := uint32(fid)
		var dataFile *data.DataFile
		if fileId == ls.activeFile.FileId {
			dataFile = ls.activeFile
		} else {
			dataFile = ls.olderFiles[fileId]
		}

		var offset int64 = 0
		for {
			record, size, err := dataFile.ReadVersionRecord(offset)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return err
			}
			if record.Type == data.VersionRecordCommitFinished {
				ls.reclaimSize += size
				for id, p := range pending {
					if p.commitTS == record.CommitTS {
						ls.setIndex(id, p.pos)
					} else {
						ls.reclaimSize += p.pos.Size
					}
				}
				pending = make(map[data.RowID]pendingRecord)
			} else {
				pending[record.ID] = pendingRecord{
					pos:      &data.VersionRecordPos{Fid: fileId, Offset: offset, Size: size},
					commitTS: record.CommitTS,
				}
			}
			offset += size
		}
		if i == len(ls.fileIds)-1 {
			ls.activeFile.WriteOff = offset
		}
	}

	// a torn tail cannot be appended after, files are opened O_APPEND
	fileSize, err := ls.activeFile.IOManager.Size()
	if err != nil {
		return err
	}
	if fileSize != ls.activeFile.WriteOff {
		ls.olderFiles[ls.activeFile.FileId] = ls.activeFile
		return ls.setActiveDataFile()
	}
	return nil
}
