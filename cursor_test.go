package MvccDB

import (
	"MvccDB/data"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCursor_Empty(t *testing.T) {
	db := openTestDB(t, nil)
	txn, _ := db.Begin()
	cursor, err := db.NewScanCursor(txn, 1)
	require.NoError(t, err)
	defer cursor.Close()

	assert.True(t, cursor.IsEmpty())
	assert.False(t, cursor.Forward())
	_, ok := cursor.CurrentRowID()
	assert.False(t, ok)
	row, err := cursor.CurrentRow()
	assert.NoError(t, err)
	assert.Nil(t, row)
}

func TestScanCursor_Forward(t *testing.T) {
	db := openTestDB(t, nil)
	var ids []data.RowID
	for _, v := range []string{"a", "b", "c"} {
		ids = append(ids, insertCommitted(t, db, 1, v))
	}
	insertCommitted(t, db, 2, "other table")

	txn, _ := db.Begin()
	cursor, err := txn.Scan(1)
	require.NoError(t, err)
	assert.Equal(t, 3, cursor.Len())
	assert.False(t, cursor.IsEmpty())
	_, ok := cursor.CurrentRowID()
	assert.False(t, ok)

	var values []string
	for cursor.Forward() {
		id, ok := cursor.CurrentRowID()
		require.True(t, ok)
		assert.Equal(t, ids[len(values)], id)
		row, err := cursor.CurrentRow()
		require.NoError(t, err)
		values = append(values, string(row.Columns[0]))
	}
	assert.Equal(t, []string{"a", "b", "c"}, values)
	assert.True(t, cursor.IsEmpty())
	assert.False(t, cursor.Forward())

	cursor.Rewind()
	assert.True(t, cursor.Forward())
	id, _ := cursor.CurrentRowID()
	assert.Equal(t, ids[0], id)

	cursor.Close()
	_, err = cursor.CurrentRow()
	assert.Equal(t, ErrCursorClosed, err)
	assert.True(t, cursor.IsEmpty())
}

func TestScanCursor_Stability(t *testing.T) {
	db := openTestDB(t, nil)
	first := insertCommitted(t, db, 1, "first")
	insertCommitted(t, db, 1, "second")

	txn, _ := db.Begin()
	cursor, err := txn.Scan(1)
	require.NoError(t, err)

	_, err = db.Update(func(w *Txn) error {
		if err := w.Update(first, cols("first changed")); err != nil {
			return err
		}
		_, err := w.Insert(1, cols("third"))
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cursor.Len())
	require.True(t, cursor.Forward())
	row, err := cursor.CurrentRow()
	require.NoError(t, err)
	assert.Equal(t, cols("first"), row.Columns)

	// a new cursor sees the id of the later insert but not its value
	later, err := txn.Scan(1)
	require.NoError(t, err)
	assert.Equal(t, 3, later.Len())
	for i := 0; i < 3; i++ {
		require.True(t, later.Forward())
	}
	row, err = later.CurrentRow()
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestScanCursor_DeletedRowsNotSkipped(t *testing.T) {
	db := openTestDB(t, nil)
	id := insertCommitted(t, db, 1, "gone")
	insertCommitted(t, db, 1, "kept")
	_, err := db.Update(func(txn *Txn) error {
		return txn.Delete(id)
	})
	require.NoError(t, err)

	require.NoError(t, db.View(func(txn *Txn) error {
		cursor, err := txn.Scan(1)
		require.NoError(t, err)
		require.True(t, cursor.Forward())
		row, err := cursor.CurrentRow()
		require.NoError(t, err)
		assert.Nil(t, row)
		require.True(t, cursor.Forward())
		row, err = cursor.CurrentRow()
		require.NoError(t, err)
		assert.Equal(t, cols("kept"), row.Columns)
		return nil
	}))
}
