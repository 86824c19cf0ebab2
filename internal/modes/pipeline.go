package modes

import "go1090/internal/demod"

// Stats tallies the pipeline's per-block outcome counts, exposed the
// way a GetStats call would.
type Stats struct {
	Preambles         uint64
	ValidMessages     uint64
	RejectedBad       uint64
	CorrectedMessages uint64
	SingleBitErrors   uint64
	TwoBitErrors      uint64
}

// Scan finds every preamble in a magnitude buffer and decodes the
// best-scoring candidate at each one, tallying stats for every
// candidate including rejects; callers filter on Message.Score before
// treating a result as an accepted frame (internal/app does this when
// routing to the registry and network dispatcher). Preamble search and
// bit slicing live in internal/demod; CRC/scoring/field decode live
// here.
func (d *Decoder) Scan(m []uint16, stats *Stats) []*Message {
	var out []*Message
	limit := len(m) - 19
	for j := 0; j < limit; j++ {
		if !demod.HasPreamble(m[j:]) {
			continue
		}
		stats.Preambles++

		candidates := demod.TryPhases(m, j)
		if candidates == nil {
			continue
		}

		best := d.bestCandidate(candidates)
		if best == nil {
			stats.RejectedBad++
			continue
		}

		out = append(out, best)
		switch best.CorrectionKind {
		case "single-bit":
			stats.SingleBitErrors++
			stats.CorrectedMessages++
		case "two-bit":
			stats.TwoBitErrors++
			stats.CorrectedMessages++
		}
		if best.Score >= 0 {
			stats.ValidMessages++
		} else {
			stats.RejectedBad++
		}

		j += demod.FrameSamples(len(best.Data)) - 1
	}
	return out
}

func (d *Decoder) bestCandidate(candidates []demod.Candidate) *Message {
	var best *Message
	bestScore := -1 << 30
	for _, c := range candidates {
		msg := d.Validate(c.Bytes)
		if msg == nil {
			continue
		}
		msg.Timestamp = uint64(c.Offset)
		if msg.Score > bestScore {
			best = msg
			bestScore = msg.Score
		}
	}
	return best
}
