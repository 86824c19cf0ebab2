package magnitude

import "time"

// LongFrameBits is the length in bits of a Mode S extended squitter.
const LongFrameBits = 112

// samplesPerByte is the worst-case number of magnitude samples the bit
// slicer consumes to recover one byte (see internal/demod).
const samplesPerByte = 20

// PreambleSamples is the number of magnitude samples the preamble
// pattern spans at 2.4 MS/s.
const PreambleSamples = 16

// TrailingSamples is the size of the carry-over zone that must be
// preserved across block boundaries so that a preamble straddling two
// blocks is never missed.
const TrailingSamples = PreambleSamples + (LongFrameBits/8)*samplesPerByte + 1

// Block is a decoded span of magnitude samples with its timing metadata.
type Block struct {
	Mag             []uint16
	SampleTimestamp uint64 // 12 MHz sample clock at the block's first sample
	WallTime        time.Time
	MeanPower       float64 // mean(m^2) / 65535^2
	MeanLevel       float64 // mean(m) / 65535
}

// Buffer turns blocks of interleaved IQ bytes into magnitude Blocks,
// carrying the trailing samples of one block into the front of the next.
type Buffer struct {
	table *Table
	prev  []uint16
}

// NewBuffer creates a magnitude buffer backed by the shared lookup table.
func NewBuffer(table *Table) *Buffer {
	return &Buffer{table: table, prev: make([]uint16, TrailingSamples)}
}

// Convert turns one block of interleaved IQ bytes into a magnitude Block.
// sampleTS is the 12 MHz sample clock value for the block's first sample.
// eof zeroes the trailing zone instead of carrying it into the next block.
func (b *Buffer) Convert(iq []byte, sampleTS uint64, eof bool) *Block {
	n := len(iq) / 2
	total := len(b.prev) + n

	mag := make([]uint16, total+TrailingSamples)
	copy(mag, b.prev)

	var sumSq, sumLevel uint64
	for i := 0; i < n; i++ {
		m := b.table.Lookup(iq[2*i], iq[2*i+1])
		mag[len(b.prev)+i] = m
		sumSq += uint64(m) * uint64(m)
		sumLevel += uint64(m)
	}

	if eof {
		for i := total; i < len(mag); i++ {
			mag[i] = 0
		}
		b.prev = make([]uint16, TrailingSamples)
	} else {
		start := total - TrailingSamples
		if start < 0 {
			start = 0
		}
		b.prev = append(b.prev[:0], mag[start:total]...)
		for len(b.prev) < TrailingSamples {
			b.prev = append([]uint16{0}, b.prev...)
		}
	}

	blk := &Block{
		Mag:             mag[:total],
		SampleTimestamp: sampleTS,
		WallTime:        time.Now(),
	}
	if n > 0 {
		blk.MeanPower = float64(sumSq) / float64(n) / (65535.0 * 65535.0)
		blk.MeanLevel = float64(sumLevel) / float64(n) / 65535.0
	}
	return blk
}
