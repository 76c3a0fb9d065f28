package storage

import (
	"MvccDB/data"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	mergeDirName          = "-merge"
	mergeFinishedFileName = "merge.finished"
)

// Merger storage that can rewrite its files to drop superseded records
type Merger interface {
	Merge() error
}

var _ Merger = (*LogStorage)(nil)

// Merge rewrites the newest record of every row into fresh data files and
// swaps them in. Writers wait for the whole merge.
//
// The merged files are built in a sibling directory first. Once they are
// synced a finished marker is written there, a crash after that point is
// completed by the next open.
func (ls *LogStorage) Merge() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return ErrStorageClosed
	}
	if ls.activeFile == nil {
		return nil
	}
	// merged files sort after every current file
	firstMergedId := ls.activeFile.FileId + 1

	mergePath := ls.mergePath()
	if err := os.RemoveAll(mergePath); err != nil {
		return err
	}
	if err := os.MkdirAll(mergePath, os.ModePerm); err != nil {
		return err
	}
	mergeOptions := ls.options
	mergeOptions.DirPath = mergePath
	mergeLS := &LogStorage{
		options:    mergeOptions,
		baseFileId: firstMergedId,
		olderFiles: make(map[uint32]*data.DataFile),
		index:      make(map[data.RowID]*data.VersionRecordPos),
	}

	// records of one commit stay together under one finished marker
	batches := make(map[uint64][]*data.VersionRecord)
	var commits []uint64
	for _, pos := range ls.index {
		record, err := ls.readRecord(pos)
		if err != nil {
			_ = mergeLS.closeFiles()
			return err
		}
		if _, ok := batches[record.CommitTS]; !ok {
			commits = append(commits, record.CommitTS)
		}
		batches[record.CommitTS] = append(batches[record.CommitTS], record)
	}
	sort.Slice(commits, func(i, j int) bool { return commits[i] < commits[j] })
	for _, commitTS := range commits {
		for _, record := range batches[commitTS] {
			if _, err := mergeLS.appendVersionRecord(record); err != nil {
				_ = mergeLS.closeFiles()
				return err
			}
		}
		if _, err := mergeLS.appendVersionRecord(data.NewCommitFinishedRecord(commitTS)); err != nil {
			_ = mergeLS.closeFiles()
			return err
		}
	}
	if mergeLS.activeFile != nil {
		if err := mergeLS.activeFile.Sync(); err != nil {
			_ = mergeLS.closeFiles()
			return err
		}
	}
	if err := mergeLS.closeFiles(); err != nil {
		return err
	}
	marker := []byte(strconv.FormatUint(uint64(firstMergedId), 10))
	if err := os.WriteFile(filepath.Join(mergePath, mergeFinishedFileName), marker, 0644); err != nil {
		return err
	}

	if err := ls.closeFiles(); err != nil {
		return err
	}
	ls.activeFile = nil
	ls.fileIds = nil
	ls.olderFiles = make(map[uint32]*data.DataFile)
	ls.index = make(map[data.RowID]*data.VersionRecordPos)
	ls.reclaimSize = 0
	if err := ls.loadMergeFiles(); err != nil {
		return err
	}
	if err := ls.loadDataFiles(); err != nil {
		return err
	}
	return ls.loadIndexFromDataFiles()
}

// /tmp/mvccdb -> /tmp/mvccdb-merge
func (ls *LogStorage) mergePath() string {
	dir := path.Dir(path.Clean(ls.options.DirPath))
	base := path.Base(ls.options.DirPath)
	return filepath.Join(dir, base+mergeDirName)
}

// loadMergeFiles installs the files of a finished merge, an unfinished
// merge directory is discarded. Files older than the merged ones are
// removed first and the merge directory goes last, so an install cut
// short by an error or a crash is repeated by the next open.
func (ls *LogStorage) loadMergeFiles() error {
	mergePath := ls.mergePath()
	if _, err := os.Stat(mergePath); os.IsNotExist(err) {
		return nil
	}

	dirEntries, err := os.ReadDir(mergePath)
	if err != nil {
		return err
	}
	var mergeFileNames []string
	for _, entry := range dirEntries {
		if strings.HasSuffix(entry.Name(), data.DataFileNameSuffix) {
			mergeFileNames = append(mergeFileNames, entry.Name())
		}
	}
	marker, err := os.ReadFile(filepath.Join(mergePath, mergeFinishedFileName))
	if os.IsNotExist(err) {
		return os.RemoveAll(mergePath)
	}
	if err != nil {
		return err
	}
	firstMergedId, err := strconv.ParseUint(string(marker), 10, 32)
	if err != nil {
		return ErrDataDirectoryCorrupted
	}

	oldEntries, err := os.ReadDir(ls.options.DirPath)
	if err != nil {
		return err
	}
	for _, entry := range oldEntries {
		if !strings.HasSuffix(entry.Name(), data.DataFileNameSuffix) {
			continue
		}
		fileId, err := strconv.ParseUint(strings.TrimSuffix(entry.Name(), data.DataFileNameSuffix), 10, 32)
		if err != nil {
			return ErrDataDirectoryCorrupted
		}
		if fileId < firstMergedId {
			if err := os.Remove(filepath.Join(ls.options.DirPath, entry.Name())); err != nil {
				return err
			}
		}
	}
	for _, fileName := range mergeFileNames {
		srcPath := filepath.Join(mergePath, fileName)
		desPath := filepath.Join(ls.options.DirPath, fileName)
		if err := os.Rename(srcPath, desPath); err != nil {
			return err
		}
	}
	return os.RemoveAll(mergePath)
}
