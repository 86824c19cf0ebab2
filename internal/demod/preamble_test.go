package demod

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// idealPreamble builds a noise-free magnitude window matching dump1090's
// phase-3 preamble pattern (peaks at 1,3,9,11-12), long enough to run
// through validPreamble.
func idealPreamble() []uint16 {
	m := make([]uint16, 19)
	low, high := uint16(100), uint16(4000)
	for i := range m {
		m[i] = low
	}
	m[1] = high
	m[3] = high
	m[9] = high
	m[11] = high
	m[12] = high
	return m
}

func TestValidPreambleAcceptsIdealPattern(t *testing.T) {
	_, ok := validPreamble(idealPreamble())
	assert.True(t, ok)
}

func TestValidPreambleRejectsFlatNoise(t *testing.T) {
	m := make([]uint16, 19)
	for i := range m {
		m[i] = 1000
	}
	_, ok := validPreamble(m)
	assert.False(t, ok)
}

func TestValidPreambleRejectsLowSNR(t *testing.T) {
	m := idealPreamble()
	// raise the "noise" floor bits so SNR check fails
	m[5], m[6], m[7] = 3000, 3000, 3000
	_, ok := validPreamble(m)
	assert.False(t, ok)
}

func TestFindPreamblesLocatesOffset(t *testing.T) {
	m := make([]uint16, 19+200)
	for i := range m {
		m[i] = 100
	}
	copy(m[30:49], idealPreamble())

	offsets := FindPreambles(m)
	assert.Contains(t, offsets, 30)
}

func TestHasPreambleAcceptsIdealPattern(t *testing.T) {
	assert.True(t, HasPreamble(idealPreamble()))
}

func TestHasPreambleRejectsFlatNoise(t *testing.T) {
	m := make([]uint16, 19)
	for i := range m {
		m[i] = 1000
	}
	assert.False(t, HasPreamble(m))
}

func TestHasPreambleRejectsShortInput(t *testing.T) {
	assert.False(t, HasPreamble(make([]uint16, 5)))
}
