package main

import (
	"MvccDB"
	"fmt"
)

func main() {
	opts := MvccDB.DefaultOptions
	db, err := MvccDB.Open(opts)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	txn, err := db.Begin()
	if err != nil {
		panic(err)
	}
	_, err = txn.Insert(1, [][]byte{[]byte("name"), []byte("mvccdb")})
	if err != nil {
		panic(err)
	}
	if _, err := db.Commit(txn); err != nil {
		panic(err)
	}

	reader, _ := db.Begin()
	defer db.Abort(reader)
	cursor, err := reader.Scan(1)
	if err != nil {
		panic(err)
	}
	defer cursor.Close()
	for cursor.Forward() {
		row, err := cursor.CurrentRow()
		if err != nil {
			panic(err)
		}
		if row != nil {
			fmt.Printf("%s => %s\n", row.ID, row.Columns)
		}
	}
}
