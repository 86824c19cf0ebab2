package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumOfZeroMessage(t *testing.T) {
	msg := make([]byte, 14)
	assert.Equal(t, uint32(0), checksum(msg))
}

func TestChecksumIsLinearOverXOR(t *testing.T) {
	a := []byte{0x8d, 0x48, 0x40, 0xd6, 0x20, 0x21, 0x96, 0x68, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	b := make([]byte, 14)
	b[13] = 0xff

	xored := make([]byte, 14)
	for i := range a {
		xored[i] = a[i] ^ b[i]
	}

	assert.Equal(t, checksum(a)^checksum(b), checksum(xored))
}

func TestICAOCacheSeenAfterAdd(t *testing.T) {
	ic := NewICAOCache()
	ic.Add(0x3c4b2c)
	assert.True(t, ic.Seen(0x3c4b2c))
	assert.False(t, ic.Seen(0x112233))
}

func TestRecoverAPOnlyWhenRecentlySeen(t *testing.T) {
	ic := NewICAOCache()
	data := make([]byte, 7)
	data[0] = 0 << 3 // DF0

	// Candidate ICAO is checksum(data[:4]) XOR the AP bytes, whatever
	// it is; until it's added to the cache, recovery must fail.
	_, ok := ic.RecoverAP(data)
	assert.False(t, ok)

	candidate := checksum(data[:4]) ^ (uint32(data[4])<<16 | uint32(data[5])<<8 | uint32(data[6]))
	ic.Add(candidate)
	icao, ok := ic.RecoverAP(data)
	assert.True(t, ok)
	assert.Equal(t, candidate, icao)
}
