package modes

// Error-correction syndrome tables are built separately for the short
// (56-bit) and long (112-bit) frame lengths, rather than once against an
// 11-byte-truncated buffer regardless of the frame actually being
// corrected, which silently mis-corrects short frames. Each table maps
// a CRC syndrome to the bit position(s) that produced it.
var (
	singleBitShort = buildSingleBitTable(shortMsgBits)
	singleBitLong  = buildSingleBitTable(longMsgBits)
	twoBitLong     map[uint32][2]int // two-bit correction is restricted to long frames (DF17/18)
)

const (
	shortMsgBits = 56
	longMsgBits  = 112
)

func init() {
	twoBitLong = buildTwoBitTable(longMsgBits)
}

func buildSingleBitTable(nbits int) map[uint32]int {
	table := make(map[uint32]int, nbits)
	nbytes := nbits / 8
	for i := 0; i < nbits; i++ {
		msg := make([]byte, nbytes)
		msg[i/8] = 1 << uint(7-i%8)
		table[checksum(msg)] = i
	}
	return table
}

func buildTwoBitTable(nbits int) map[uint32][2]int {
	table := make(map[uint32][2]int, nbits*nbits/2)
	nbytes := nbits / 8
	for i := 0; i < nbits; i++ {
		for j := i + 1; j < nbits; j++ {
			msg := make([]byte, nbytes)
			msg[i/8] |= 1 << uint(7-i%8)
			msg[j/8] |= 1 << uint(7-j%8)
			table[checksum(msg)] = [2]int{i, j}
		}
	}
	return table
}

// correctSingleBit tries to flip one bit of data so that its checksum
// becomes zero, returning the corrected copy and the bit position
// flipped. aggressive-independent: dump1090 allows single-bit
// correction for any frame length.
func correctSingleBit(data []byte, crc uint32) ([]byte, int, bool) {
	var table map[uint32]int
	if len(data)*8 == shortMsgBits {
		table = singleBitShort
	} else {
		table = singleBitLong
	}
	pos, ok := table[crc]
	if !ok {
		return nil, 0, false
	}
	fixed := append([]byte(nil), data...)
	fixed[pos/8] ^= 1 << uint(7-pos%8)
	return fixed, pos, true
}

// correctTwoBit tries to flip two bits of a long frame so that its
// checksum becomes zero. Restricted to long frames: dump1090 and this
// implementation both only attempt two-bit correction on DF17/18,
// where the much larger frame gives the syndrome table room to stay
// unambiguous.
func correctTwoBit(data []byte, crc uint32) ([]byte, [2]int, bool) {
	if len(data)*8 != longMsgBits {
		return nil, [2]int{}, false
	}
	pos, ok := twoBitLong[crc]
	if !ok {
		return nil, [2]int{}, false
	}
	fixed := append([]byte(nil), data...)
	fixed[pos[0]/8] ^= 1 << uint(7-pos[0]%8)
	fixed[pos[1]/8] ^= 1 << uint(7-pos[1]%8)
	return fixed, pos, true
}
