package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildDF17 constructs a syntactically valid DF17 frame with a correct
// checksum so Validate should accept it outright.
func buildDF17(me [7]byte, icao uint32) []byte {
	msg := make([]byte, 14)
	msg[0] = 17 << 3
	msg[1] = byte(icao >> 16)
	msg[2] = byte(icao >> 8)
	msg[3] = byte(icao)
	copy(msg[4:11], me[:])

	crc := checksum(msg[:11])
	msg[11] = byte(crc >> 16)
	msg[12] = byte(crc >> 8)
	msg[13] = byte(crc)
	return msg
}

func TestValidateAcceptsGoodDF17(t *testing.T) {
	d := NewDecoder(false, false)
	msg := buildDF17([7]byte{}, 0x3c4b2c)

	out := d.Validate(msg)
	assert.NotNil(t, out)
	assert.True(t, out.Valid)
	assert.Equal(t, uint32(0x3c4b2c), out.ICAO)
	assert.Equal(t, 1000, out.Score)
}

func TestValidateCorrectsSingleBitDF17(t *testing.T) {
	d := NewDecoder(false, false)
	msg := buildDF17([7]byte{}, 0x3c4b2c)
	msg[6] ^= 0x01

	out := d.Validate(msg)
	assert.NotNil(t, out)
	assert.True(t, out.Valid)
	assert.Equal(t, "single-bit", out.CorrectionKind)
	assert.Equal(t, 950, out.Score)
}

func TestValidateRejectsGarbageLongFrame(t *testing.T) {
	d := NewDecoder(false, false)
	msg := make([]byte, 14)
	msg[0] = 17 << 3
	for i := range msg {
		msg[i] ^= byte(i*37 + 11)
	}

	out := d.Validate(msg)
	assert.NotNil(t, out)
	assert.False(t, out.Valid)
	assert.Equal(t, -200, out.Score)
}

func TestNoFixRejectsCorrectableFrame(t *testing.T) {
	d := NewDecoder(false, true)
	msg := buildDF17([7]byte{}, 0x3c4b2c)
	msg[6] ^= 0x01

	out := d.Validate(msg)
	assert.NotNil(t, out)
	assert.False(t, out.Valid)
	assert.Equal(t, -200, out.Score)
}

func TestDecodeCallsignExtractsKnownPattern(t *testing.T) {
	// 'KLM1023 ' encoded 6 bits per character against adsbCharset.
	me := []byte{0x00, 0x2c, 0xc3, 0x71, 0xc3, 0x2c, 0xe0}
	cs := decodeCallsign(me)
	assert.Equal(t, "KLM1023", cs)
}

func TestDecodeAC12SurfaceZeroIsInvalid(t *testing.T) {
	_, ok := decodeAC12(0)
	assert.False(t, ok)
}

func TestDecodeAC13LinearEncoding(t *testing.T) {
	// Q bit set (bit 4): 25ft linear encoding, N=1008 -> 24200ft.
	// altCode = 0x0FB0 puts Q at bit4 and N=1008 across bits 0-3, 5 and
	// 7-12 (bit 6 is the M bit and is skipped).
	alt, ok := decodeAC13(0x0f, 0xb0)
	assert.True(t, ok)
	assert.Equal(t, 1008*25-1000, alt)
}

func TestDecodeAC13GillhamEncoding(t *testing.T) {
	// Q bit clear: Gillham/100ft encoding path must decode, not reject.
	// altCode = 0x01A0 decodes to hundreds=3, five-hundreds=2 -> 1300ft.
	alt, ok := decodeAC13(0x01, 0xa0)
	assert.True(t, ok)
	assert.Equal(t, 1300, alt)
}

func TestDecodeAC13RejectsMetric(t *testing.T) {
	_, ok := decodeAC13(0, 0x40)
	assert.False(t, ok)
}

func TestDecodeSquawkBitUnshuffle(t *testing.T) {
	// identity bits chosen so A=1,B=2,C=3,D=4 in dump1090's digit layout.
	identity := uint16(0)
	identity |= 1 << 11 // A1
	identity |= 1 << 3  // B2
	identity |= 1 << 12 // C1
	identity |= 1 << 10 // C2
	identity |= 1 << 0  // D4
	b2 := byte((identity >> 8) & 0x1f)
	b3 := byte(identity & 0xff)

	squawk, ok := decodeSquawk(b2, b3)
	assert.True(t, ok)
	assert.Equal(t, 1234, squawk)
}
