package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrectSingleBitFixesFlippedBit(t *testing.T) {
	msg := []byte{0x8d, 0x48, 0x40, 0xd6, 0x20, 0x21, 0x96, 0x68, 0x09, 0x82, 0x00, 0x00, 0x00, 0x00}
	good := append([]byte(nil), msg...)
	crc := checksum(good[:11])
	for i := 11; i < 14; i++ {
		good[i] ^= byte(crc >> uint(8*(13-i)))
	}
	assert.Equal(t, uint32(0), checksum(good))

	flipped := append([]byte(nil), good...)
	flipped[3] ^= 0x01 // flip one bit

	fixed, pos, ok := correctSingleBit(flipped, checksum(flipped))
	assert.True(t, ok)
	assert.Equal(t, good, fixed)
	assert.GreaterOrEqual(t, pos, 0)
}

func TestCorrectTwoBitRestrictedToLongFrames(t *testing.T) {
	short := make([]byte, 7)
	_, _, ok := correctTwoBit(short, checksum(short))
	assert.False(t, ok)
}

func TestCorrectTwoBitFixesTwoFlippedBits(t *testing.T) {
	good := make([]byte, 14)
	crc := checksum(good) // all-zero message, crc already 0
	assert.Equal(t, uint32(0), crc)

	flipped := append([]byte(nil), good...)
	flipped[2] ^= 0x04
	flipped[9] ^= 0x40

	fixed, pos, ok := correctTwoBit(flipped, checksum(flipped))
	assert.True(t, ok)
	assert.Equal(t, good, fixed)
	assert.NotEqual(t, pos[0], pos[1])
}
