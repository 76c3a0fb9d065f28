package utils

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

var (
	randMu  sync.Mutex
	randStr = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	letters = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
)

// GetTestColumn deterministic column value for row i
func GetTestColumn(i int) []byte {
	return []byte(fmt.Sprintf("mvccdb-column-%09d", i))
}

// RandomValue random column value of n letters, used in tests
func RandomValue(n int) []byte {
	randMu.Lock()
	defer randMu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[randStr.Intn(len(letters))]
	}
	return []byte("mvccdb-value-" + string(b))
}

// RandomColumns count random columns of n letters each
func RandomColumns(count, n int) [][]byte {
	cols := make([][]byte, count)
	for i := range cols {
		cols[i] = RandomValue(n)
	}
	return cols
}

// RandomIntn [0, n) from the shared source
func RandomIntn(n int) int {
	randMu.Lock()
	defer randMu.Unlock()
	return randStr.Intn(n)
}
