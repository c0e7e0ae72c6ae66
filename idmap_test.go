package goshare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDMapLine(t *testing.T) {
	m := IDMap{InsideID: 0, OutsideID: 1000, Count: 1}
	assert.Equal(t, "0 1000 1\n", m.line())
}

func TestIDMapLines(t *testing.T) {
	maps := []IDMap{
		{InsideID: 0, OutsideID: 1000, Count: 1},
		{InsideID: 1, OutsideID: 100000, Count: 65536},
	}
	assert.Equal(t, "0 1000 1\n1 100000 65536\n", idMapLines(maps))
}

func TestIDMapLinesEmpty(t *testing.T) {
	assert.Equal(t, "", idMapLines(nil))
}
