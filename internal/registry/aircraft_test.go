package registry

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go1090/internal/cpr"
	"go1090/internal/modes"
)

func newTestRegistry() *Registry {
	return NewRegistry(cpr.NewDecoder(logrus.New()), 60*time.Second, 52.0, 4.0)
}

func TestFindOrCreateStartsInFirstTime(t *testing.T) {
	r := newTestRegistry()
	now := time.Now()
	a := r.FindOrCreate(0x3c4b2c, now)

	assert.Equal(t, FirstTime, a.ShowState)
	assert.Equal(t, now, a.FirstSeen)

	again := r.FindOrCreate(0x3c4b2c, now.Add(time.Second))
	assert.Same(t, a, again)
}

func TestRSSIRingAverages(t *testing.T) {
	a := &Aircraft{}
	a.RecordRSSI(-10)
	a.RecordRSSI(-20)
	assert.InDelta(t, -15.0, a.MeanRSSI(), 0.001)

	for i := 0; i < rssiSlots; i++ {
		a.RecordRSSI(-5)
	}
	assert.InDelta(t, -5.0, a.MeanRSSI(), 0.001)
}

func TestOnMessageUpdatesFieldsAndCreatesRecord(t *testing.T) {
	r := newTestRegistry()
	now := time.Now()

	msg := &modes.Message{
		ICAO:       0x3c4b2c,
		DF:         17,
		Callsign:   "KLM1023",
		HaveAlt:    true,
		Altitude:   35000,
		HaveSquawk: true,
		Squawk:     1200,
	}

	a := r.OnMessage(msg, -12.5, now)
	assert.Equal(t, "KLM1023", a.Callsign)
	assert.Equal(t, 35000, a.Altitude)
	assert.Equal(t, 1200, a.Squawk)
	assert.Equal(t, uint64(1), a.Messages)

	again, ok := r.Find(0x3c4b2c)
	assert.True(t, ok)
	assert.Same(t, a, again)
}

func TestTickEvictsStaleAircraftThroughShowStates(t *testing.T) {
	r := newTestRegistry()
	now := time.Now()
	a := r.FindOrCreate(0x112233, now)

	r.Tick(now) // FirstTime -> Normal
	assert.Equal(t, Normal, a.ShowState)

	a.LastSeen = now.Add(-2 * time.Minute) // exceed TTL
	r.Tick(now)
	assert.Equal(t, LastTime, a.ShowState)

	r.Tick(now) // LastTime -> None
	assert.Equal(t, None, a.ShowState)

	r.Tick(now) // None -> unlinked
	_, ok := r.Find(0x112233)
	assert.False(t, ok)
}

func TestTickDeletesFromMapNotJustMarksEvicted(t *testing.T) {
	// Unlike the Regentag reference this registry's eviction actually
	// removes the record from the map.
	r := newTestRegistry()
	now := time.Now()
	r.FindOrCreate(0xaaaaaa, now)
	r.aircraft[0xaaaaaa].ShowState = None

	before := r.Len()
	r.Tick(now)
	assert.Equal(t, before-1, r.Len())
}
