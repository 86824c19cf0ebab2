// Package registry is the in-memory aircraft table: one record per
// ICAO address, updated from decoded Mode S messages and evicted on a
// periodic tick.
package registry

import (
	"math"
	"sync"
	"time"

	"go1090/internal/cpr"
	"go1090/internal/modes"
)

// ShowState models the visibility lifecycle an interactive view would
// drive off of: a record is surfaced once on creation, tracked
// silently while live, then surfaced once more on the way out.
type ShowState int

const (
	FirstTime ShowState = iota
	Normal
	LastTime
	None
)

// rssiSlots is the size of the ring buffer of recent signal levels.
const rssiSlots = 4

// Aircraft is one registry record.
type Aircraft struct {
	ICAO uint32

	Callsign string
	Altitude int
	HaveAlt  bool

	GroundSpeed  int
	Heading      float64
	HeadingValid bool
	VerticalRate int

	Squawk     int
	HaveSquawk bool
	OnGround   bool

	FirstSeen time.Time
	LastSeen  time.Time
	Messages  uint64

	rssi      [rssiSlots]float64
	rssiNext  int
	rssiCount int

	Lat, Lon    float64
	HavePos     bool
	PosUpdated  time.Time

	EstLat, EstLon float64
	EstUpdated     time.Time
	EstDistanceNM  float64

	ShowState ShowState
}

// RecordRSSI pushes a new signal level into the 4-slot ring.
func (a *Aircraft) RecordRSSI(level float64) {
	a.rssi[a.rssiNext] = level
	a.rssiNext = (a.rssiNext + 1) % rssiSlots
	if a.rssiCount < rssiSlots {
		a.rssiCount++
	}
}

// MeanRSSI averages the populated ring slots, used for the HTTP API's
// rssi field.
func (a *Aircraft) MeanRSSI() float64 {
	if a.rssiCount == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < a.rssiCount; i++ {
		sum += a.rssi[i]
	}
	return sum / float64(a.rssiCount)
}

// Registry is the ICAO-keyed aircraft table. A single-threaded event
// loop would need no locking around registry mutation, but this
// implementation runs network I/O (readers, the HTTP server) on their
// own goroutines, so the table is guarded by mu instead.
type Registry struct {
	cpr *cpr.Decoder

	interactiveTTL time.Duration
	refLat, refLon float64

	mu       sync.Mutex
	aircraft map[uint32]*Aircraft
}

// NewRegistry builds an empty registry. refLat/refLon seed local CPR
// decoding (and distance estimates) until an aircraft has its own
// confirmed fix to use as a reference.
func NewRegistry(cprDecoder *cpr.Decoder, interactiveTTL time.Duration, refLat, refLon float64) *Registry {
	return &Registry{
		cpr:            cprDecoder,
		interactiveTTL: interactiveTTL,
		refLat:         refLat,
		refLon:         refLon,
		aircraft:       make(map[uint32]*Aircraft),
	}
}

// Find returns the record for icao, if tracked.
func (r *Registry) Find(icao uint32) (*Aircraft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.aircraft[icao]
	return a, ok
}

// FindOrCreate returns icao's record, creating it in FirstTime state
// if this is the first time it has been seen.
func (r *Registry) FindOrCreate(icao uint32, now time.Time) *Aircraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findOrCreateLocked(icao, now)
}

func (r *Registry) findOrCreateLocked(icao uint32, now time.Time) *Aircraft {
	if a, ok := r.aircraft[icao]; ok {
		return a
	}
	a := &Aircraft{
		ICAO:      icao,
		FirstSeen: now,
		LastSeen:  now,
		ShowState: FirstTime,
	}
	r.aircraft[icao] = a
	return a
}

// WithAircraft finds or creates icao's record and runs fn on it while
// holding the registry lock, for callers (e.g. the SBS_IN synthetic
// update path) that need to apply several field updates atomically.
func (r *Registry) WithAircraft(icao uint32, now time.Time, fn func(*Aircraft)) *Aircraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findOrCreateLocked(icao, now)
	fn(a)
	return a
}

// OnMessage applies a decoded message's fields onto icao's record,
// creating the record if needed.
func (r *Registry) OnMessage(msg *modes.Message, rssi float64, now time.Time) *Aircraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findOrCreateLocked(msg.ICAO, now)
	a.LastSeen = now
	a.Messages++
	a.RecordRSSI(rssi)

	if msg.Callsign != "" {
		a.Callsign = msg.Callsign
	}
	if msg.HaveAlt {
		a.Altitude = msg.Altitude
		a.HaveAlt = true
	}
	if msg.HaveSquawk {
		a.Squawk = msg.Squawk
		a.HaveSquawk = true
	}
	if msg.DF == 4 || msg.DF == 5 || msg.DF == 17 || msg.DF == 18 || msg.DF == 20 || msg.DF == 21 {
		a.OnGround = msg.OnGround
	}
	if msg.HaveVelocity {
		a.GroundSpeed = msg.GroundSpeed
		if msg.Track != 0 || msg.GroundSpeed > 0 {
			a.Heading = msg.Track
			a.HeadingValid = true
		}
		a.VerticalRate = msg.VerticalRate
	}

	if msg.HaveCPR {
		refLat, refLon := r.refLat, r.refLon
		if a.HavePos {
			refLat, refLon = a.Lat, a.Lon
		}
		frame := cpr.Frame{
			LatCPR:   msg.CPRLatRaw,
			LonCPR:   msg.CPRLonRaw,
			Odd:      msg.CPRFlagOdd,
			Surface:  msg.OnGround,
			Received: now,
		}
		if pos, ok := r.cpr.Decode(msg.ICAO, frame, refLat, refLon); ok {
			a.Lat, a.Lon = pos.Latitude, pos.Longitude
			a.HavePos = true
			a.PosUpdated = now
			a.EstLat, a.EstLon = pos.Latitude, pos.Longitude
			a.EstUpdated = now
		}
	}

	return a
}

// earthRadiusNM is used for the estimated-distance haversine calculation.
const earthRadiusNM = 3440.065

// Tick runs the periodic registry maintenance: show-state transitions,
// TTL eviction, and position extrapolation. Called every 125ms.
func (r *Registry) Tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for icao, a := range r.aircraft {
		switch a.ShowState {
		case FirstTime:
			a.ShowState = Normal
		case LastTime:
			a.ShowState = None
		case None:
			delete(r.aircraft, icao)
			r.cpr.Forget(icao)
			continue
		}

		if now.Sub(a.LastSeen) > r.interactiveTTL {
			if a.ShowState == Normal {
				a.ShowState = LastTime
			}
		}

		r.extrapolate(a, now)
	}
}

// extrapolate advances an aircraft's estimated position along its last
// known heading and ground speed, giving an interactive view something
// to render between real position fixes.
func (r *Registry) extrapolate(a *Aircraft, now time.Time) {
	if !a.HavePos || !a.HeadingValid || a.GroundSpeed <= 0 {
		return
	}
	dt := now.Sub(a.EstUpdated).Seconds()
	if dt <= 0 {
		return
	}

	speedNMPerSec := float64(a.GroundSpeed) / 3600.0
	distNM := speedNMPerSec * dt

	headingRad := a.Heading * math.Pi / 180.0
	dLat := (distNM / earthRadiusNM) * math.Cos(headingRad) * 180.0 / math.Pi
	dLon := (distNM / earthRadiusNM) * math.Sin(headingRad) / math.Cos(a.EstLat*math.Pi/180.0) * 180.0 / math.Pi

	a.EstLat += dLat
	a.EstLon += dLon
	a.EstUpdated = now

	a.EstDistanceNM = haversineNM(r.refLat, r.refLon, a.EstLat, a.EstLon)
}

func haversineNM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180.0
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusNM * c
}

// All returns a snapshot slice (by value, so a concurrent mutation
// can't race with a reader iterating the result) of every tracked
// aircraft, for the HTTP JSON endpoints.
func (r *Registry) All() []Aircraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Aircraft, 0, len(r.aircraft))
	for _, a := range r.aircraft {
		out = append(out, *a)
	}
	return out
}

// Len reports how many aircraft are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.aircraft)
}
