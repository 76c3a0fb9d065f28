package MvccDB

import (
	"MvccDB/data"
)

// Snapshot isolation visibility. A version is visible to txn when its begin
// is committed at or before txn's snapshot and its end is open or after the
// snapshot. Versions txn wrote itself are always visible to it.
//
// Pending markers (tx ids) are resolved through the tracker, so flipping a
// txn to Committed makes all of its versions visible in one step even
// before the markers are rewritten to timestamps. Callers hold the chain's
// read or write lock.

func (s *MvStore) isVisible(txn *Txn, v *data.RowVersion) bool {
	return s.isBeginVisible(txn, v) && s.isEndVisible(txn, v)
}

func (s *MvStore) isBeginVisible(txn *Txn, v *data.RowVersion) bool {
	switch v.Begin.Kind {
	case data.MarkerTimestamp:
		return v.Begin.Value <= txn.snapshot
	case data.MarkerTxID:
		if v.Begin.Value == txn.id {
			return v.End.IsOpen()
		}
		owner := s.tracker.get(v.Begin.Value)
		if owner == nil {
			return false
		}
		state, commitTS := owner.resolve()
		return state == TxnCommitted && commitTS <= txn.snapshot
	default:
		return false
	}
}

func (s *MvStore) isEndVisible(txn *Txn, v *data.RowVersion) bool {
	switch v.End.Kind {
	case data.MarkerOpen:
		return true
	case data.MarkerTimestamp:
		return txn.snapshot < v.End.Value
	case data.MarkerTxID:
		if v.End.Value == txn.id {
			// superseded by our own pending write
			return false
		}
		owner := s.tracker.get(v.End.Value)
		if owner == nil {
			return true
		}
		state, commitTS := owner.resolve()
		if state == TxnCommitted {
			return txn.snapshot < commitTS
		}
		return true
	default:
		return false
	}
}

// committedTS commit ts of a version's begin, false while it is uncommitted
func (s *MvStore) committedTS(v *data.RowVersion) (uint64, bool) {
	switch v.Begin.Kind {
	case data.MarkerTimestamp:
		return v.Begin.Value, true
	case data.MarkerTxID:
		owner := s.tracker.get(v.Begin.Value)
		if owner == nil {
			return 0, false
		}
		state, commitTS := owner.resolve()
		return commitTS, state == TxnCommitted
	default:
		return 0, false
	}
}

// visibleVersion newest version of chain visible to txn, nil if none
func (s *MvStore) visibleVersion(txn *Txn, chain *data.VersionChain) *data.RowVersion {
	for i := len(chain.Versions) - 1; i >= 0; i-- {
		if v := chain.Versions[i]; s.isVisible(txn, v) {
			return v
		}
	}
	return nil
}
