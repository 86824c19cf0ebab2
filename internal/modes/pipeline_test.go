package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// idealPreamble matches demod's phase-3 preamble pattern (peaks at
// 1,3,9,11-12), the minimum shape Scan requires before it will even
// attempt bit slicing at an offset.
func idealPreamble() []uint16 {
	m := make([]uint16, 19)
	low, high := uint16(100), uint16(4000)
	for i := range m {
		m[i] = low
	}
	m[1], m[3], m[9], m[11], m[12] = high, high, high, high, high
	return m
}

func TestScanFindsNoPreamblesInFlatNoise(t *testing.T) {
	d := NewDecoder(false, false)
	m := make([]uint16, 2000)
	for i := range m {
		m[i] = 1000
	}

	var stats Stats
	out := d.Scan(m, &stats)

	assert.Nil(t, out)
	assert.Equal(t, uint64(0), stats.Preambles)
}

// TestScanCountsPreambleAndRejectsGarbagePayload guards the fix that
// gates bit slicing on an actual preamble match: a shape that passes
// validPreamble must be counted exactly once, and the all-quiet
// payload behind it (which decodes to an all-zero DF0 frame with an
// unrecoverable ICAO) must come out scored as a reject rather than
// silently dropped.
func TestScanCountsPreambleAndRejectsGarbagePayload(t *testing.T) {
	d := NewDecoder(false, false)
	m := make([]uint16, 2000)
	for i := range m {
		m[i] = 100
	}
	copy(m[50:69], idealPreamble())

	var stats Stats
	out := d.Scan(m, &stats)

	assert.Equal(t, uint64(1), stats.Preambles)
	if assert.Len(t, out, 1) {
		assert.Equal(t, -200, out[0].Score)
		assert.False(t, out[0].Valid)
	}
}
