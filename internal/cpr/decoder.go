// Package cpr decodes the Compact Position Reporting encoding used by
// ADS-B airborne and surface position messages.
package cpr

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// cprMax is 2^17, the resolution of the 17-bit CPR lat/lon fields.
const cprMax = 131072.0

// airborneFreshness and surfaceFreshness bound how old the other-parity
// frame of a pair may be before a global decode is refused:
// surface position updates are much less frequent, so its window is
// wider.
const (
	airborneFreshness = 10 * time.Second
	surfaceFreshness  = 50 * time.Second
)

// Frame is one CPR-encoded position report.
type Frame struct {
	LatCPR   uint32
	LonCPR   uint32
	Odd      bool
	Surface  bool
	Received time.Time
}

// pair tracks the most recent even/odd frames for one aircraft so a
// global decode can be attempted as soon as both are fresh.
type pair struct {
	even, odd *Frame
	lastFix   *Position
	fixedAt   time.Time
}

// Position is a decoded WGS-84 coordinate.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Decoder tracks per-ICAO CPR frame pairs and decodes positions,
// falling back to local (single-frame, reference-relative) decoding
// when no fresh pair is available.
type Decoder struct {
	logger *logrus.Logger

	mu    sync.Mutex
	pairs map[uint32]*pair
}

// NewDecoder creates a CPR decoder.
func NewDecoder(logger *logrus.Logger) *Decoder {
	return &Decoder{logger: logger, pairs: make(map[uint32]*pair)}
}

// modInt is the always-non-negative modulo used throughout CPR math.
func modInt(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

// Decode ingests a new frame for icao and returns the best available
// position: a global (two-frame) decode if the paired frame is still
// fresh and agrees on latitude zone, otherwise a local decode relative
// to refLat/refLon (typically the aircraft's last known fix, or the
// receiver's own position as a last resort).
func (d *Decoder) Decode(icao uint32, f Frame, refLat, refLon float64) (Position, bool) {
	d.mu.Lock()
	p, ok := d.pairs[icao]
	if !ok {
		p = &pair{}
		d.pairs[icao] = p
	}
	if f.Odd {
		p.odd = &f
	} else {
		p.even = &f
	}
	even, odd := p.even, p.odd
	d.mu.Unlock()

	if even != nil && odd != nil {
		freshness := airborneFreshness
		if f.Surface {
			freshness = surfaceFreshness
		}
		if absDuration(even.Received.Sub(odd.Received)) <= freshness {
			if pos, ok := d.decodeGlobal(even, odd); ok {
				d.mu.Lock()
				p.lastFix = &pos
				p.fixedAt = f.Received
				d.mu.Unlock()
				return pos, true
			}
		}
	}

	pos, ok := d.decodeLocal(f, refLat, refLon)
	if ok {
		d.mu.Lock()
		p.lastFix = &pos
		p.fixedAt = f.Received
		d.mu.Unlock()
	}
	return pos, ok
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// LastFix returns the most recently decoded position for icao, if any.
func (d *Decoder) LastFix(icao uint32) (Position, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pairs[icao]
	if !ok || p.lastFix == nil {
		return Position{}, false
	}
	return *p.lastFix, true
}

// decodeGlobal is the two-frame CPR decode. lat zone width uses
// 360/60 for the even frame and 360/59.5 for the odd frame. Some
// ports of this algorithm use 360/59.0 (360 / (4*NZ - 1) with NZ=15)
// for the odd zone width instead; this decoder does not.
func (d *Decoder) decodeGlobal(even, odd *Frame) (Position, bool) {
	const dlatEven = 360.0 / 60.0
	const dlatOdd = 360.0 / 59.5

	lat0, lat1 := float64(even.LatCPR), float64(odd.LatCPR)
	lon0, lon1 := float64(even.LonCPR), float64(odd.LonCPR)

	j := int(math.Floor(((59*lat0 - 60*lat1) / cprMax) + 0.5))

	rlat0 := dlatEven * (float64(modInt(j, 60)) + lat0/cprMax)
	rlat1 := dlatOdd * (float64(modInt(j, 59)) + lat1/cprMax)

	if rlat0 >= 270 {
		rlat0 -= 360
	}
	if rlat1 >= 270 {
		rlat1 -= 360
	}

	if rlat0 < -90 || rlat0 > 90 || rlat1 < -90 || rlat1 > 90 {
		return Position{}, false
	}
	if nlTable(rlat0) != nlTable(rlat1) {
		return Position{}, false
	}

	var rlat, rlon float64
	if odd.Received.After(even.Received) {
		ni := nFunction(rlat1, 1)
		m := int(math.Floor((((lon0 * float64(nlTable(rlat1)-1)) -
			(lon1 * float64(nlTable(rlat1)))) / cprMax) + 0.5))
		rlon = dlonFunction(rlat1, 1) * (float64(modInt(m, ni)) + lon1/cprMax)
		rlat = rlat1
	} else {
		ni := nFunction(rlat0, 0)
		m := int(math.Floor((((lon0 * float64(nlTable(rlat0)-1)) -
			(lon1 * float64(nlTable(rlat0)))) / cprMax) + 0.5))
		rlon = dlonFunction(rlat0, 0) * (float64(modInt(m, ni)) + lon0/cprMax)
		rlat = rlat0
	}

	// antimeridian wrap back into -180..+180
	rlon -= math.Floor((rlon+180)/360) * 360

	return Position{Latitude: rlat, Longitude: rlon}, true
}

// decodeLocal decodes a single CPR frame relative to a known reference
// position, used when no fresh paired frame is available.
func (d *Decoder) decodeLocal(f Frame, refLat, refLon float64) (Position, bool) {
	dlat := 360.0 / 60.0
	oddFlag := 0
	if f.Odd {
		dlat = 360.0 / 59.5
		oddFlag = 1
	}

	lat := float64(f.LatCPR)
	lon := float64(f.LonCPR)

	j := int(math.Floor(refLat/dlat + 0.5))
	rlat := dlat * (float64(j) + lat/cprMax)

	if rlat-refLat > dlat/2.0 {
		rlat -= dlat
	} else if rlat-refLat < -dlat/2.0 {
		rlat += dlat
	}
	if rlat < -90 || rlat > 90 {
		return Position{}, false
	}

	ni := nFunction(rlat, oddFlag)
	dlon := 360.0 / float64(ni)
	m := int(math.Floor(refLon/dlon + 0.5))
	rlon := dlon * (float64(m) + lon/cprMax)

	if rlon-refLon > dlon/2.0 {
		rlon -= dlon
	} else if rlon-refLon < -dlon/2.0 {
		rlon += dlon
	}
	rlon -= math.Floor((rlon+180)/360) * 360

	return Position{Latitude: rlat, Longitude: rlon}, true
}

// Forget drops tracking state for an aircraft that has left the
// registry, called from the registry's eviction path so CPR state
// doesn't outlive the aircraft record.
func (d *Decoder) Forget(icao uint32) {
	d.mu.Lock()
	delete(d.pairs, icao)
	d.mu.Unlock()
}
