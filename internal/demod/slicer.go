package demod

// The slicePhaseN functions correlate a 2-sample-per-symbol window
// against the five possible sub-sample alignments of a Manchester
// symbol pair. Each set of coefficients sums to zero, so no DC offset
// correction is needed.
func slicePhase0(m []uint16) int {
	return 5*int(m[0]) - 3*int(m[1]) - 2*int(m[2])
}

func slicePhase1(m []uint16) int {
	return 4*int(m[0]) - int(m[1]) - 3*int(m[2])
}

func slicePhase2(m []uint16) int {
	return 3*int(m[0]) + int(m[1]) - 4*int(m[2])
}

func slicePhase3(m []uint16) int {
	return 2*int(m[0]) + 3*int(m[1]) - 5*int(m[2])
}

func slicePhase4(m []uint16) int {
	return int(m[0]) + 5*int(m[1]) - 5*int(m[2]) - int(m[3])
}

func bitValue(correlation int) byte {
	if correlation > 0 {
		return 1
	}
	return 0
}

// decodeBitsWithPhase slices longMsgBytes bytes out of m starting at the
// preamble (m[0] is the first preamble sample) using the given phase
// (4..8, dump1090's numbering), truncating to shortMsgBytes as soon as
// byte 0's downlink format indicates a short frame.
func decodeBitsWithPhase(m []uint16, tryPhase int) []byte {
	if len(m) < 19+longMsgBytes*19 {
		return nil
	}

	msg := make([]byte, longMsgBytes)
	pPtr := 19 + tryPhase/5
	phase := tryPhase % 5

	for i := 0; i < longMsgBytes; i++ {
		if pPtr+20 > len(m) {
			return nil
		}

		var theByte byte
		switch phase {
		case 0:
			theByte =
				bitValue(slicePhase0(m[pPtr:pPtr+3]))<<7 |
					bitValue(slicePhase2(m[pPtr+2:pPtr+5]))<<6 |
					bitValue(slicePhase4(m[pPtr+4:pPtr+8]))<<5 |
					bitValue(slicePhase1(m[pPtr+7:pPtr+10]))<<4 |
					bitValue(slicePhase3(m[pPtr+9:pPtr+12]))<<3 |
					bitValue(slicePhase0(m[pPtr+12:pPtr+15]))<<2 |
					bitValue(slicePhase2(m[pPtr+14:pPtr+17]))<<1 |
					bitValue(slicePhase4(m[pPtr+16:pPtr+20]))<<0
			phase = 1
			pPtr += 19

		case 1:
			theByte =
				bitValue(slicePhase1(m[pPtr:pPtr+3]))<<7 |
					bitValue(slicePhase3(m[pPtr+2:pPtr+5]))<<6 |
					bitValue(slicePhase0(m[pPtr+5:pPtr+8]))<<5 |
					bitValue(slicePhase2(m[pPtr+7:pPtr+10]))<<4 |
					bitValue(slicePhase4(m[pPtr+9:pPtr+13]))<<3 |
					bitValue(slicePhase1(m[pPtr+12:pPtr+15]))<<2 |
					bitValue(slicePhase3(m[pPtr+14:pPtr+17]))<<1 |
					bitValue(slicePhase0(m[pPtr+17:pPtr+20]))<<0
			phase = 2
			pPtr += 19

		case 2:
			theByte =
				bitValue(slicePhase2(m[pPtr:pPtr+3]))<<7 |
					bitValue(slicePhase4(m[pPtr+2:pPtr+6]))<<6 |
					bitValue(slicePhase1(m[pPtr+5:pPtr+8]))<<5 |
					bitValue(slicePhase3(m[pPtr+7:pPtr+10]))<<4 |
					bitValue(slicePhase0(m[pPtr+10:pPtr+13]))<<3 |
					bitValue(slicePhase2(m[pPtr+12:pPtr+15]))<<2 |
					bitValue(slicePhase4(m[pPtr+14:pPtr+18]))<<1 |
					bitValue(slicePhase1(m[pPtr+17:pPtr+20]))<<0
			phase = 3
			pPtr += 19

		case 3:
			theByte =
				bitValue(slicePhase3(m[pPtr:pPtr+3]))<<7 |
					bitValue(slicePhase0(m[pPtr+3:pPtr+6]))<<6 |
					bitValue(slicePhase2(m[pPtr+5:pPtr+8]))<<5 |
					bitValue(slicePhase4(m[pPtr+7:pPtr+11]))<<4 |
					bitValue(slicePhase1(m[pPtr+10:pPtr+13]))<<3 |
					bitValue(slicePhase3(m[pPtr+12:pPtr+15]))<<2 |
					bitValue(slicePhase0(m[pPtr+15:pPtr+18]))<<1 |
					bitValue(slicePhase2(m[pPtr+17:pPtr+20]))<<0
			phase = 4
			pPtr += 19

		case 4:
			theByte =
				bitValue(slicePhase4(m[pPtr:pPtr+4]))<<7 |
					bitValue(slicePhase1(m[pPtr+3:pPtr+6]))<<6 |
					bitValue(slicePhase3(m[pPtr+5:pPtr+8]))<<5 |
					bitValue(slicePhase0(m[pPtr+8:pPtr+11]))<<4 |
					bitValue(slicePhase2(m[pPtr+10:pPtr+13]))<<3 |
					bitValue(slicePhase4(m[pPtr+12:pPtr+16]))<<2 |
					bitValue(slicePhase1(m[pPtr+15:pPtr+18]))<<1 |
					bitValue(slicePhase3(m[pPtr+17:pPtr+20]))<<0
			phase = 0
			pPtr += 20

		default:
			return nil
		}

		msg[i] = theByte

		if i == 0 {
			df := msg[0] >> 3
			if isShortDF(df) {
				return msg[:shortMsgBytes]
			}
		}
	}

	return msg
}

// TryPhases slices a candidate frame at every phase (dump1090 tries
// phases 4 through 8) starting at preamble offset j within m, returning
// every phase that produced a frame. internal/modes picks the
// highest-scoring one after CRC validation.
func TryPhases(m []uint16, j int) []Candidate {
	if j >= len(m) {
		return nil
	}
	tail := m[j:]

	var out []Candidate
	for tryPhase := 4; tryPhase <= 8; tryPhase++ {
		bytes := decodeBitsWithPhase(tail, tryPhase)
		if bytes == nil {
			continue
		}
		out = append(out, Candidate{Bytes: bytes, Offset: j, Phase: tryPhase})
	}
	return out
}

// FrameSamples returns how many magnitude samples a frame of the given
// byte length occupies, used by callers to skip past a decoded message
// before resuming the preamble search.
func FrameSamples(msgBytes int) int {
	return msgBytes * 8 * 12 / 5
}
