package main

import (
	"MvccDB"
	"MvccDB/data"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/redcon"
)

var (
	ErrTxnAlreadyStarted = errors.New("ERR transaction already started")
	ErrNoTxn             = errors.New("ERR no transaction started")
)

func newWrongNumberOfArgsError(cmd string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", cmd)
}

type cmdHandler func(cli *MvccClient, args [][]byte) (interface{}, error)

var supportedCommands = map[string]cmdHandler{
	"begin":  begin,
	"commit": commit,
	"abort":  abort,
	"insert": insert,
	"put":    put,
	"update": update,
	"delete": del,
	"read":   read,
	"scan":   scan,
	"gc":     gc,
	"merge":  merge,
}

// MvccClient state of one connection. Statements outside BEGIN/COMMIT run
// in their own txn.
type MvccClient struct {
	db  *MvccDB.DB
	mu  sync.Mutex
	txn *MvccDB.Txn
}

func newMvccClient(db *MvccDB.DB) *MvccClient {
	return &MvccClient{db: db}
}

func execClientCommand(conn redcon.Conn, cmd redcon.Command) {
	command := strings.ToLower(string(cmd.Args[0]))

	cli, _ := conn.Context().(*MvccClient)
	switch command {
	case "quit":
		_ = conn.Close()
	case "ping":
		conn.WriteString("PONG")
	default:
		cmdFunc, ok := supportedCommands[command]
		if !ok {
			conn.WriteError("ERR unsupported command: '" + command + "'")
			return
		}
		res, err := cli.exec(cmdFunc, cmd.Args[1:])
		if err != nil {
			conn.WriteError(err.Error())
			return
		}
		conn.WriteAny(res)
	}
}

func (cli *MvccClient) exec(fn cmdHandler, args [][]byte) (interface{}, error) {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	return fn(cli, args)
}

// write runs fn in the open txn, or in a txn of its own that commits at once
func (cli *MvccClient) write(fn func(txn *MvccDB.Txn) error) error {
	if cli.txn != nil {
		return fn(cli.txn)
	}
	_, err := cli.db.Update(fn)
	return err
}

func (cli *MvccClient) view(fn func(txn *MvccDB.Txn) error) error {
	if cli.txn != nil {
		return fn(cli.txn)
	}
	return cli.db.View(fn)
}

// release aborts the open txn, if any
func (cli *MvccClient) release() {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	if cli.txn != nil {
		cli.db.Abort(cli.txn)
		cli.txn = nil
	}
}

func parseUint(arg []byte) (uint64, error) {
	v, err := strconv.ParseUint(string(arg), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ERR value is not an integer or out of range: %q", arg)
	}
	return v, nil
}

func parseRowID(table, row []byte) (data.RowID, error) {
	tableID, err := parseUint(table)
	if err != nil {
		return data.RowID{}, err
	}
	rowID, err := parseUint(row)
	if err != nil {
		return data.RowID{}, err
	}
	return data.RowID{TableID: tableID, RowID: rowID}, nil
}

func columnsReply(row *data.Row) []interface{} {
	reply := make([]interface{}, len(row.Columns))
	for i, c := range row.Columns {
		reply[i] = c
	}
	return reply
}

// ================================ transactions ================================

func begin(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) != 0 {
		return nil, newWrongNumberOfArgsError("begin")
	}
	if cli.txn != nil {
		return nil, ErrTxnAlreadyStarted
	}
	txn, err := cli.db.Begin()
	if err != nil {
		return nil, err
	}
	cli.txn = txn
	return txn.ID(), nil
}

func commit(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) != 0 {
		return nil, newWrongNumberOfArgsError("commit")
	}
	if cli.txn == nil {
		return nil, ErrNoTxn
	}
	txn := cli.txn
	cli.txn = nil
	return cli.db.Commit(txn)
}

func abort(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) != 0 {
		return nil, newWrongNumberOfArgsError("abort")
	}
	if cli.txn == nil {
		return nil, ErrNoTxn
	}
	cli.db.Abort(cli.txn)
	cli.txn = nil
	return redcon.SimpleString("OK"), nil
}

// ================================ rows ================================

// INSERT table col [col ...], replies with the allocated row id
func insert(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) < 2 {
		return nil, newWrongNumberOfArgsError("insert")
	}
	tableID, err := parseUint(args[0])
	if err != nil {
		return nil, err
	}
	var id data.RowID
	err = cli.write(func(txn *MvccDB.Txn) error {
		var err error
		id, err = txn.Insert(tableID, args[1:])
		return err
	})
	if err != nil {
		return nil, err
	}
	return id.RowID, nil
}

// PUT table row col [col ...]
func put(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) < 3 {
		return nil, newWrongNumberOfArgsError("put")
	}
	id, err := parseRowID(args[0], args[1])
	if err != nil {
		return nil, err
	}
	if err := cli.write(func(txn *MvccDB.Txn) error {
		return txn.InsertRow(id, args[2:])
	}); err != nil {
		return nil, err
	}
	return redcon.SimpleString("OK"), nil
}

// UPDATE table row col [col ...]
func update(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) < 3 {
		return nil, newWrongNumberOfArgsError("update")
	}
	id, err := parseRowID(args[0], args[1])
	if err != nil {
		return nil, err
	}
	if err := cli.write(func(txn *MvccDB.Txn) error {
		return txn.Update(id, args[2:])
	}); err != nil {
		return nil, err
	}
	return redcon.SimpleString("OK"), nil
}

func del(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) != 2 {
		return nil, newWrongNumberOfArgsError("delete")
	}
	id, err := parseRowID(args[0], args[1])
	if err != nil {
		return nil, err
	}
	if err := cli.write(func(txn *MvccDB.Txn) error {
		return txn.Delete(id)
	}); err != nil {
		return nil, err
	}
	return redcon.SimpleString("OK"), nil
}

// READ table row, nil reply when nothing is visible
func read(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) != 2 {
		return nil, newWrongNumberOfArgsError("read")
	}
	id, err := parseRowID(args[0], args[1])
	if err != nil {
		return nil, err
	}
	var row *data.Row
	if err := cli.view(func(txn *MvccDB.Txn) error {
		row, err = txn.Read(id)
		return err
	}); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return columnsReply(row), nil
}

// SCAN table, one [row, col ...] entry per visible row
func scan(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) != 1 {
		return nil, newWrongNumberOfArgsError("scan")
	}
	tableID, err := parseUint(args[0])
	if err != nil {
		return nil, err
	}
	reply := make([]interface{}, 0)
	err = cli.view(func(txn *MvccDB.Txn) error {
		cursor, err := txn.Scan(tableID)
		if err != nil {
			return err
		}
		defer cursor.Close()
		for cursor.Forward() {
			row, err := cursor.CurrentRow()
			if err != nil {
				return err
			}
			if row == nil {
				continue
			}
			entry := append([]interface{}{row.ID.RowID}, columnsReply(row)...)
			reply = append(reply, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// GC runs a collection pass, replies with the reclaimed version count
func gc(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) != 0 {
		return nil, newWrongNumberOfArgsError("gc")
	}
	return cli.db.CollectGarbage().Versions, nil
}

func merge(cli *MvccClient, args [][]byte) (interface{}, error) {
	if len(args) != 0 {
		return nil, newWrongNumberOfArgsError("merge")
	}
	if err := cli.db.Merge(); err != nil {
		return nil, err
	}
	return redcon.SimpleString("OK"), nil
}
