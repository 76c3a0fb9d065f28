package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTestColumn(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, GetTestColumn(i), GetTestColumn(i))
	}
	assert.NotEqual(t, GetTestColumn(1), GetTestColumn(2))
}

func TestRandomValue(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Len(t, RandomValue(10), len("mvccdb-value-")+10)
	}
}

func TestRandomColumns(t *testing.T) {
	cols := RandomColumns(3, 8)
	assert.Len(t, cols, 3)
	for _, c := range cols {
		assert.NotEmpty(t, c)
	}
	for i := 0; i < 100; i++ {
		n := RandomIntn(5)
		assert.True(t, n >= 0 && n < 5)
	}
}
