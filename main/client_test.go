package main

import (
	"MvccDB"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/redcon"
)

func newTestClient(t *testing.T) *MvccClient {
	opts := MvccDB.DefaultOptions
	opts.GCInterval = 0
	db, err := MvccDB.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newMvccClient(db)
}

func args(values ...string) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out
}

func TestClient_AutoCommit(t *testing.T) {
	cli := newTestClient(t)

	res, err := cli.exec(insert, args("1", "alice", "30"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res)

	res, err = cli.exec(read, args("1", "1"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{[]byte("alice"), []byte("30")}, res)

	_, err = cli.exec(update, args("1", "1", "alice", "31"))
	require.NoError(t, err)
	res, err = cli.exec(scan, args("1"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		[]interface{}{uint64(1), []byte("alice"), []byte("31")},
	}, res)

	_, err = cli.exec(del, args("1", "1"))
	require.NoError(t, err)
	res, err = cli.exec(read, args("1", "1"))
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = cli.exec(update, args("1", "1", "bob"))
	assert.Equal(t, MvccDB.ErrNotFound, err)
}

func TestClient_Transaction(t *testing.T) {
	cli := newTestClient(t)
	other := newMvccClient(cli.db)

	_, err := cli.exec(commit, nil)
	assert.Equal(t, ErrNoTxn, err)
	_, err = cli.exec(begin, nil)
	require.NoError(t, err)
	_, err = cli.exec(begin, nil)
	assert.Equal(t, ErrTxnAlreadyStarted, err)

	res, err := cli.exec(put, args("2", "10", "pending"))
	require.NoError(t, err)
	assert.Equal(t, redcon.SimpleString("OK"), res)

	res, err = other.exec(read, args("2", "10"))
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = cli.exec(commit, nil)
	require.NoError(t, err)
	assert.Greater(t, res.(uint64), uint64(0))

	res, err = other.exec(read, args("2", "10"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{[]byte("pending")}, res)
}

func TestClient_ReleaseAborts(t *testing.T) {
	cli := newTestClient(t)
	_, err := cli.exec(begin, nil)
	require.NoError(t, err)
	_, err = cli.exec(insert, args("3", "x"))
	require.NoError(t, err)

	cli.release()
	assert.Nil(t, cli.txn)
	assert.Empty(t, cli.db.Store().ScanRowIDsForTable(3))

	_, err = cli.exec(abort, nil)
	assert.Equal(t, ErrNoTxn, err)
}

func TestClient_BadArguments(t *testing.T) {
	cli := newTestClient(t)
	_, err := cli.exec(insert, args("1"))
	assert.Error(t, err)
	_, err = cli.exec(read, args("x", "1"))
	assert.Error(t, err)
	_, err = cli.exec(scan, nil)
	assert.Error(t, err)
	_, err = cli.exec(gc, args("now"))
	assert.Error(t, err)

	res, err := cli.exec(gc, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res)
	res, err = cli.exec(merge, nil)
	require.NoError(t, err)
	assert.Equal(t, redcon.SimpleString("OK"), res)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultAddr, cfg.Addr)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: 127.0.0.1:7000\ndb:\n  index_type: 2\n"), 0644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, int8(2), cfg.DB.IndexType)
	assert.Equal(t, MvccDB.DefaultOptions.GCInterval, cfg.DB.GCInterval)
}
