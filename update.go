package MvccDB

// Update runs fn in a new txn and commits it. An error from fn aborts the
// txn and is returned as is.
func (db *DB) Update(fn func(txn *Txn) error) (uint64, error) {
	txn, err := db.Begin()
	if err != nil {
		return 0, err
	}
	if err := fn(txn); err != nil {
		db.Abort(txn)
		return 0, err
	}
	return db.Commit(txn)
}

// View runs fn in a txn that is always rolled back
func (db *DB) View(fn func(txn *Txn) error) error {
	txn, err := db.Begin()
	if err != nil {
		return err
	}
	defer db.Abort(txn)
	return fn(txn)
}
