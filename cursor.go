package MvccDB

import (
	"MvccDB/data"
)

// ScanCursor forward-only cursor over one table under one txn's snapshot.
// The RowIDs are captured when the cursor is created, each row's value is
// resolved against the snapshot only when it is asked for, so concurrent
// commits never leak into the scan. Rows without a visible version are not
// skipped, CurrentRow returns nil for them.
type ScanCursor struct {
	store  *MvStore
	txn    *Txn
	rowIDs []data.RowID
	// index -1 before the first row
	index  int
	closed bool
}

func NewScanCursor(store *MvStore, txn *Txn, tableID uint64) (*ScanCursor, error) {
	if txn == nil {
		return nil, ErrNilTransaction
	}
	if !txn.IsActive() {
		return nil, ErrInvalidTransactionState
	}
	return &ScanCursor{
		store:  store,
		txn:    txn,
		rowIDs: store.ScanRowIDsForTable(tableID),
		index:  -1,
	}, nil
}

// Forward moves to the next row, false once past the last one
func (c *ScanCursor) Forward() bool {
	if c.index < len(c.rowIDs) {
		c.index++
	}
	return c.index < len(c.rowIDs)
}

// CurrentRowID id at the current position, false before the first row or past the end
func (c *ScanCursor) CurrentRowID() (data.RowID, bool) {
	if c.index < 0 || c.index >= len(c.rowIDs) {
		return data.RowID{}, false
	}
	return c.rowIDs[c.index], true
}

// CurrentRow row at the current position as seen by the cursor's txn
func (c *ScanCursor) CurrentRow() (*data.Row, error) {
	if c.closed {
		return nil, ErrCursorClosed
	}
	id, ok := c.CurrentRowID()
	if !ok {
		return nil, nil
	}
	return c.store.Read(c.txn, id)
}

// IsEmpty no position remains
func (c *ScanCursor) IsEmpty() bool {
	return len(c.rowIDs) == 0 || c.index >= len(c.rowIDs)
}

// Rewind back to before the first row, the captured ids are kept
func (c *ScanCursor) Rewind() {
	c.index = -1
}

// Len number of captured ids
func (c *ScanCursor) Len() int {
	return len(c.rowIDs)
}

// Close drops the captured ids, the txn is not affected
func (c *ScanCursor) Close() {
	c.rowIDs = nil
	c.index = -1
	c.closed = true
}
