package magnitude

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTableCenterIsNearZero(t *testing.T) {
	tbl := NewTable()
	// I=Q=127 or 128 sit closest to the DC center (127.5, 127.5).
	assert.Less(t, tbl.Lookup(127, 127), uint16(2000))
}

func TestNewTableCornersAreMaximal(t *testing.T) {
	tbl := NewTable()
	corner := tbl.Lookup(0, 0)
	center := tbl.Lookup(127, 127)
	assert.Greater(t, corner, center)
}

func TestNewTableMonotonicAlongAxis(t *testing.T) {
	tbl := NewTable()
	prev := tbl.Lookup(127, 127)
	for i := 128; i < 256; i++ {
		cur := tbl.Lookup(byte(i), 127)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}
