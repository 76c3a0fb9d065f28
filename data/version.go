package data

import (
	"fmt"
	"sync"
)

type MarkerKind = byte

const (
	// MarkerOpen end of an interval that has not been closed yet
	MarkerOpen MarkerKind = iota
	// MarkerTimestamp a finalized logical timestamp
	MarkerTimestamp
	// MarkerTxID a pending transaction, resolved through the txn registry
	MarkerTxID
)

// Marker begin or end of a version's validity interval
type Marker struct {
	Kind  MarkerKind
	Value uint64
}

func Open() Marker                 { return Marker{Kind: MarkerOpen} }
func Timestamp(ts uint64) Marker   { return Marker{Kind: MarkerTimestamp, Value: ts} }
func TxID(txID uint64) Marker      { return Marker{Kind: MarkerTxID, Value: txID} }
func (m Marker) IsOpen() bool      { return m.Kind == MarkerOpen }
func (m Marker) IsTimestamp() bool { return m.Kind == MarkerTimestamp }
func (m Marker) IsTxID() bool      { return m.Kind == MarkerTxID }

func (m Marker) String() string {
	switch m.Kind {
	case MarkerTimestamp:
		return fmt.Sprintf("ts(%d)", m.Value)
	case MarkerTxID:
		return fmt.Sprintf("tx(%d)", m.Value)
	default:
		return "open"
	}
}

// RowVersion one link of a version chain. Row == nil is a tombstone.
type RowVersion struct {
	Row   *Row
	Begin Marker
	End   Marker
}

func (v *RowVersion) IsTombstone() bool {
	return v.Row == nil
}

// IsCommitted begin has been stamped with a commit timestamp
func (v *RowVersion) IsCommitted() bool {
	return v.Begin.IsTimestamp()
}

// VersionChain all versions of one RowID, oldest first. Writers hold the
// write lock, readers the read lock. Versions are addressed by position in
// the slice, never by pointer from outside the store.
type VersionChain struct {
	sync.RWMutex
	ID       RowID
	Versions []*RowVersion
	// Dropped set once the chain is removed from the index; writers that
	// raced with the removal must look the chain up again.
	Dropped bool
	// Grace counts collector passes that saw a reclaimable tombstone head.
	Grace int
}

func NewVersionChain(id RowID) *VersionChain {
	return &VersionChain{ID: id, Versions: make([]*RowVersion, 0, 2)}
}

// Head newest version or nil
func (c *VersionChain) Head() *RowVersion {
	if len(c.Versions) == 0 {
		return nil
	}
	return c.Versions[len(c.Versions)-1]
}

func (c *VersionChain) Append(v *RowVersion) {
	c.Versions = append(c.Versions, v)
}

func (c *VersionChain) Len() int {
	return len(c.Versions)
}
