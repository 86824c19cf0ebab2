package modes

import "math"

// Decoder validates candidate frames against the CRC, recovers XOR-ed
// ICAO addresses, scores messages, and decodes their per-DF fields.
type Decoder struct {
	icao       *ICAOCache
	aggressive bool // --aggressive; does not change which frames are corrected (see NewDecoder)
	noFix      bool // disable single-/two-bit correction entirely (--no-fix)
}

// NewDecoder builds a decoder. aggressive mirrors the CLI's
// --aggressive flag. Two-bit correction is applied to DF17/18 only,
// whether or not aggressive is set: tryCorrect corrects DF11/17/18 and
// DF11 is a short frame, so no other long frame reaches it. noFix
// mirrors --no-fix, disabling the error-correct1/error-correct2 policy
// entirely so only frames with a clean CRC are ever accepted.
func NewDecoder(aggressive, noFix bool) *Decoder {
	return &Decoder{icao: NewICAOCache(), aggressive: aggressive, noFix: noFix}
}

// Validate checks a candidate frame's CRC, attempts error correction
// and XOR-AP ICAO recovery as appropriate for its DF, and returns the
// scored Message (nil only for a frame of the wrong length); per-DF
// fields are decoded only when the score is non-negative. score() always runs, matching dump1090's behaviour of
// keeping a record of rejected messages for statistics even when it
// discards them from the aircraft table.
func (d *Decoder) Validate(data []byte) *Message {
	if len(data) != shortMsgBytes && len(data) != longMsgBytes {
		return nil
	}
	df := data[0] >> 3

	msg := &Message{Data: append([]byte(nil), data...), DF: df}
	crc := checksum(msg.Data)
	msg.CRC = crc

	switch df {
	case 11:
		// IID occupies the low 7 bits of the CRC remainder: the checksum
		// of the first 32 bits XORed with the 24-bit PI field.
		n := len(msg.Data)
		pi := uint32(msg.Data[n-3])<<16 | uint32(msg.Data[n-2])<<8 | uint32(msg.Data[n-1])
		if (checksum(msg.Data[:n-3])^pi)&0xffff80 == 0 {
			msg.Valid = true
			msg.ICAO = extractICAO(msg.Data)
			d.icao.Add(msg.ICAO)
		}
	case 17, 18:
		if crc == 0 {
			msg.Valid = true
			msg.ICAO = extractICAO(msg.Data)
			d.icao.Add(msg.ICAO)
		}
	case 0, 4, 5, 16, 20, 21:
		// AP field is XOR-ed with the ICAO address; recover it via the
		// recently-seen cache rather than expecting crc == 0.
		if icao, ok := d.icao.RecoverAP(msg.Data); ok {
			msg.Valid = true
			msg.ICAO = icao
		}
	}

	if !msg.Valid && !d.noFix {
		d.tryCorrect(msg, df, crc)
	}

	msg.Score = d.score(msg)
	if msg.Score < 0 {
		return msg
	}

	d.decodeFields(msg)
	return msg
}

// tryCorrect attempts single- then two-bit correction, limited to the
// DFs whose CRC is expected to be exactly zero (DF11/17/18) since
// correction needs a trustworthy zero-syndrome target.
func (d *Decoder) tryCorrect(msg *Message, df byte, crc uint32) {
	if df != 11 && df != 17 && df != 18 {
		return
	}

	if fixed, pos, ok := correctSingleBit(msg.Data, crc); ok {
		msg.Data = fixed
		msg.CorrectionKind = "single-bit"
		msg.Valid = true
		msg.ICAO = extractICAO(msg.Data)
		d.icao.Add(msg.ICAO)
		_ = pos
		return
	}

	longFrame := len(msg.Data)*8 == longMsgBits
	if longFrame && (df == 17 || df == 18 || d.aggressive) {
		if fixed, pos, ok := correctTwoBit(msg.Data, crc); ok {
			msg.Data = fixed
			msg.CorrectionKind = "two-bit"
			msg.Valid = true
			msg.ICAO = extractICAO(msg.Data)
			d.icao.Add(msg.ICAO)
			_ = pos
		}
	}
}

// score assigns dump1090's exact point values: +1000 for a message
// whose ICAO address is trusted, -50 per bit corrected, -200 for an
// uncorrected/unrecoverable ICAO. A negative score means reject.
func (d *Decoder) score(msg *Message) int {
	if !msg.Valid {
		return -200
	}

	score := 1000
	switch msg.CorrectionKind {
	case "single-bit":
		score -= 50
	case "two-bit":
		score -= 100
	}
	return score
}

func extractICAO(data []byte) uint32 {
	if len(data) < 4 {
		return 0
	}
	return uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
}

// decodeFields populates the per-DF fields of msg from its (possibly
// corrected) data bytes.
func (d *Decoder) decodeFields(msg *Message) {
	data := msg.Data
	switch msg.DF {
	case 4, 20:
		msg.Altitude, msg.HaveAlt = decodeAC13(data[2], data[3])
		msg.OnGround = (data[0]>>2)&0x01 == 1
	case 5, 21:
		msg.Squawk, msg.HaveSquawk = decodeSquawk(data[2], data[3])
		msg.OnGround = (data[0]>>2)&0x01 == 1
	case 17, 18:
		d.decodeExtendedSquitter(msg)
	}
}

func (d *Decoder) decodeExtendedSquitter(msg *Message) {
	data := msg.Data
	if len(data) < 11 {
		return
	}
	me := data[4:]
	tc := byte(getBits(me, 1, 5))
	msg.TypeCode = tc

	switch {
	case tc >= 1 && tc <= 4:
		msg.Callsign = decodeCallsign(me)
	case tc >= 9 && tc <= 18, tc >= 20 && tc <= 22:
		// Airborne position: altitude + CPR lat/lon.
		msg.OnGround = false
		ac12 := uint16(getBits(me, 9, 20))
		msg.Altitude, msg.HaveAlt = decodeAC12(ac12)
		msg.CPRFlagOdd = getBits(me, 22, 22) == 1
		msg.CPRLatRaw = getBits(me, 23, 39)
		msg.CPRLonRaw = getBits(me, 40, 56)
		msg.HaveCPR = true
	case tc >= 5 && tc <= 8:
		// Surface position: ground speed/track + CPR lat/lon.
		msg.OnGround = true
		msg.CPRFlagOdd = getBits(me, 22, 22) == 1
		msg.CPRLatRaw = getBits(me, 23, 39)
		msg.CPRLonRaw = getBits(me, 40, 56)
		msg.HaveCPR = true
	case tc == 19:
		d.decodeVelocity(msg, me)
	}
}

func decodeCallsign(me []byte) string {
	var chars [8]byte
	bitRanges := [8][2]int{{9, 14}, {15, 20}, {21, 26}, {27, 32}, {33, 38}, {39, 44}, {45, 50}, {51, 56}}
	for i, r := range bitRanges {
		idx := getBits(me, r[0], r[1])
		if int(idx) >= len(adsbCharset) {
			return ""
		}
		chars[i] = adsbCharset[idx]
	}
	for _, c := range chars {
		ok := (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == ' '
		if !ok {
			return ""
		}
	}
	return trimTrailingSpace(chars[:])
}

func trimTrailingSpace(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

// decodeAC13 decodes the 13-bit altitude field used by DF4/20: 25ft
// linear encoding when the Q bit is set, Gillham (100ft-resolution
// Gray code) otherwise. The Gillham branch uses the same simplified
// 500ft/100ft decomposition decodeAC12 already applies to the
// extended-squitter AC12 field; metric (M-bit set)
// altitudes are not decoded.
func decodeAC13(b2, b3 byte) (int, bool) {
	altCode := uint16(b2&0x1f)<<8 | uint16(b3)
	if altCode == 0 {
		return 0, false
	}
	if altCode&0x0040 != 0 {
		return 0, false // M bit set: metric altitude, not decoded
	}

	if altCode&0x10 != 0 {
		// N skips the M bit (bit 6) and the Q bit (bit 4).
		n := ((altCode & 0x1f80) >> 2) | ((altCode & 0x0020) >> 1) | (altCode & 0x000f)
		return int(n)*25 - 1000, true
	}

	n13 := ((altCode & 0x0fc0) << 1) | (altCode & 0x003f)
	if n13 == 0 {
		return 0, false
	}
	hundreds := int((n13 >> 8) & 0x07)
	fiveHundreds := int((n13 >> 4) & 0x0f)
	altitude := (fiveHundreds*5 + hundreds) * 100
	if altitude < -2000 || altitude > 60000 {
		return 0, false
	}
	return altitude, true
}

// decodeAC12 decodes the 12-bit AC12 altitude field used by DF17/18
// airborne position messages.
func decodeAC12(altCode uint16) (int, bool) {
	if altCode == 0 {
		return 0, false
	}
	qBit := altCode&0x10 != 0
	if qBit {
		n := ((altCode & 0x0fe0) >> 1) | (altCode & 0x000f)
		return int(n)*25 - 1000, true
	}

	n13 := ((altCode & 0x0fc0) << 1) | (altCode & 0x003f)
	if n13 == 0 {
		return 0, false
	}
	hundreds := int((n13 >> 8) & 0x07)
	fiveHundreds := int((n13 >> 4) & 0x0f)
	altitude := (fiveHundreds*5 + hundreds) * 100
	if altitude < -2000 || altitude > 60000 {
		return 0, false
	}
	return altitude, true
}

func decodeSquawk(b2, b3 byte) (int, bool) {
	identity := uint16(b2&0x1f)<<8 | uint16(b3)
	// ID13 bit order, MSB first: C1 A1 C2 A2 C4 A4 X B1 D1 B2 D2 B4 D4.
	bit := func(n uint) int { return int(identity>>n) & 1 }
	a := bit(7)<<2 | bit(9)<<1 | bit(11)  // A4 A2 A1
	b := bit(1)<<2 | bit(3)<<1 | bit(5)   // B4 B2 B1
	c := bit(8)<<2 | bit(10)<<1 | bit(12) // C4 C2 C1
	dd := bit(0)<<2 | bit(2)<<1 | bit(4)  // D4 D2 D1
	return a*1000 + b*100 + c*10 + dd, true
}

func (d *Decoder) decodeVelocity(msg *Message, me []byte) {
	subtype := byte(getBits(me, 6, 8))
	if subtype < 1 || subtype > 4 {
		return
	}

	if subtype == 1 || subtype == 2 {
		ewRaw := getBits(me, 15, 24)
		nsRaw := getBits(me, 26, 35)
		if ewRaw != 0 && nsRaw != 0 {
			mult := 1 << (subtype - 1)
			ewVel := int(ewRaw-1) * mult
			if getBits(me, 14, 14) != 0 {
				ewVel = -ewVel
			}
			nsVel := int(nsRaw-1) * mult
			if getBits(me, 25, 25) != 0 {
				nsVel = -nsVel
			}
			msg.GroundSpeed = int(math.Sqrt(float64(nsVel*nsVel+ewVel*ewVel)) + 0.5)
			if msg.GroundSpeed > 0 {
				track := math.Atan2(float64(ewVel), float64(nsVel)) * 180.0 / math.Pi
				if track < 0 {
					track += 360
				}
				msg.Track = track
			}
			msg.HaveVelocity = true
		}
	} else {
		if getBits(me, 14, 14) != 0 {
			msg.Track = float64(getBits(me, 15, 24)) * 360.0 / 1024.0
		}
		airspeedRaw := getBits(me, 26, 35)
		if airspeedRaw != 0 {
			msg.GroundSpeed = int(airspeedRaw-1) * (1 << (subtype - 3))
			msg.HaveVelocity = true
		}
	}

	vrRaw := getBits(me, 38, 46)
	if vrRaw != 0 {
		vr := int(vrRaw-1) * 64
		if getBits(me, 37, 37) != 0 {
			vr = -vr
		}
		msg.VerticalRate = vr
		msg.HaveVelocity = true
	}
}
