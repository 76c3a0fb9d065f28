package storage

import (
	"MvccDB/data"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLogStorage_InvalidSize(t *testing.T) {
	_, err := OpenLogStorage(Options{DirPath: t.TempDir()})
	assert.ErrorIs(t, err, ErrInvalidDataFileSize)
}

func TestLogStorage_Rotation(t *testing.T) {
	dir := t.TempDir()
	ls, err := OpenLogStorage(Options{DirPath: dir, DataFileSize: 64})
	require.NoError(t, err)
	defer ls.Close()

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, ls.Persist([]Entry{committed(data.RowID{TableID: 1, RowID: i}, i, "0123456789")}))
	}
	assert.NotEmpty(t, ls.olderFiles)
	for i := uint64(1); i <= 10; i++ {
		v, err := ls.Load(data.RowID{TableID: 1, RowID: i})
		require.NoError(t, err)
		assert.Equal(t, i, v.Begin.Value)
	}
}

// a batch without its finished marker must not be replayed
func TestLogStorage_TornCommit(t *testing.T) {
	dir := t.TempDir()
	ls, err := OpenLogStorage(Options{DirPath: dir, DataFileSize: 1 << 20})
	require.NoError(t, err)

	a := data.RowID{TableID: 1, RowID: 1}
	b := data.RowID{TableID: 1, RowID: 2}
	require.NoError(t, ls.Persist([]Entry{committed(a, 2, "a-old")}))

	// simulate a crash after the first record of the next commit
	ls.mu.Lock()
	record, err := data.NewVersionRecord(a, committed(a, 4, "a-new").Version)
	require.NoError(t, err)
	_, err = ls.appendVersionRecord(record)
	require.NoError(t, err)
	ls.mu.Unlock()
	require.NoError(t, ls.Close())

	ls, err = OpenLogStorage(Options{DirPath: dir, DataFileSize: 1 << 20})
	require.NoError(t, err)
	v, err := ls.Load(a)
	require.NoError(t, err)
	assert.Equal(t, []byte("a-old"), v.Row.Column(0))

	// a later commit must not resurrect the orphan record
	require.NoError(t, ls.Persist([]Entry{committed(b, 6, "b")}))
	require.NoError(t, ls.Close())

	ls, err = OpenLogStorage(Options{DirPath: dir, DataFileSize: 1 << 20})
	require.NoError(t, err)
	defer ls.Close()
	v, err = ls.Load(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.Begin.Value)
	v, err = ls.Load(b)
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestLogStorage_TornTail(t *testing.T) {
	dir := t.TempDir()
	ls, err := OpenLogStorage(Options{DirPath: dir, DataFileSize: 1 << 20})
	require.NoError(t, err)
	a := data.RowID{TableID: 1, RowID: 1}
	require.NoError(t, ls.Persist([]Entry{committed(a, 2, "a")}))
	require.NoError(t, ls.Close())

	f, err := os.OpenFile(data.DataFileName(dir, 0), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x01, 0x02, 0x03, 0x04, 0x00, 0x7f})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ls, err = OpenLogStorage(Options{DirPath: dir, DataFileSize: 1 << 20})
	require.NoError(t, err)
	defer ls.Close()
	assert.Equal(t, uint32(1), ls.activeFile.FileId)
	require.NoError(t, ls.Persist([]Entry{committed(a, 3, "a2")}))
	v, err := ls.Load(a)
	require.NoError(t, err)
	assert.Equal(t, []byte("a2"), v.Row.Column(0))
}

func TestLogStorage_Closed(t *testing.T) {
	ls, err := OpenLogStorage(Options{DirPath: t.TempDir(), DataFileSize: 1024})
	require.NoError(t, err)
	require.NoError(t, ls.Close())
	assert.NoError(t, ls.Close())
	assert.ErrorIs(t, ls.Persist([]Entry{committed(data.RowID{TableID: 1, RowID: 1}, 1, "x")}), ErrStorageClosed)
	_, err = ls.Load(data.RowID{TableID: 1, RowID: 1})
	assert.ErrorIs(t, err, ErrStorageClosed)
}
