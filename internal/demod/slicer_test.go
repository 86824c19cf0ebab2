package demod

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitValue(t *testing.T) {
	assert.Equal(t, byte(1), bitValue(5))
	assert.Equal(t, byte(0), bitValue(-5))
	assert.Equal(t, byte(0), bitValue(0))
}

func TestIsShortDF(t *testing.T) {
	assert.True(t, isShortDF(0))
	assert.True(t, isShortDF(4))
	assert.True(t, isShortDF(5))
	assert.True(t, isShortDF(11))
	assert.False(t, isShortDF(17))
	assert.False(t, isShortDF(20))
}

func TestDecodeBitsWithPhaseTooShortReturnsNil(t *testing.T) {
	m := make([]uint16, 50)
	assert.Nil(t, decodeBitsWithPhase(m, 4))
}

func TestTryPhasesReturnsCandidatesWithinOffset(t *testing.T) {
	m := make([]uint16, 19+longMsgBytes*19+40)
	// Alternate high/low roughly to exercise slicing without crashing;
	// correctness of the decoded bits is validated at the modes package
	// level where CRC checking can confirm a real frame.
	for i := range m {
		if i%2 == 0 {
			m[i] = 4000
		} else {
			m[i] = 100
		}
	}

	candidates := TryPhases(m, 0)
	for _, c := range candidates {
		assert.True(t, len(c.Bytes) == shortMsgBytes || len(c.Bytes) == longMsgBytes)
		assert.Equal(t, 0, c.Offset)
	}
}

func TestFrameSamples(t *testing.T) {
	// 56 and 112 bits at 2.4 samples per bit.
	assert.Equal(t, 134, FrameSamples(shortMsgBytes))
	assert.Equal(t, 268, FrameSamples(longMsgBytes))
}
