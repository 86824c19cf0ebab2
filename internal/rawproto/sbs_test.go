package rawproto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go1090/internal/modes"
	"go1090/internal/registry"
)

func TestFormatSurveillanceAltitude(t *testing.T) {
	w := NewSBSWriter()
	msg := &modes.Message{DF: 4, ICAO: 0x3c4b2c, HaveAlt: true, Altitude: 35000}

	line := w.Format(msg, nil, time.Now())
	fields := strings.Split(line, ",")
	assert.Equal(t, "MSG", fields[0])
	assert.Equal(t, "5", fields[1])
	assert.Equal(t, "3C4B2C", fields[4])
	assert.Equal(t, "35000", fields[11])
}

func TestFormatIdentificationCallsign(t *testing.T) {
	w := NewSBSWriter()
	msg := &modes.Message{DF: 17, ICAO: 0xabcdef, TypeCode: 4, Callsign: "UAL123"}

	line := w.Format(msg, nil, time.Now())
	fields := strings.Split(line, ",")
	assert.Equal(t, "1", fields[1])
	assert.Equal(t, "UAL123", fields[10])
}

func TestFormatUnsupportedDFReturnsEmpty(t *testing.T) {
	w := NewSBSWriter()
	msg := &modes.Message{DF: 24}
	assert.Equal(t, "", w.Format(msg, nil, time.Now()))
}

func TestFormatAirbornePositionUsesRegistrySnapshot(t *testing.T) {
	w := NewSBSWriter()
	ac := &registry.Aircraft{HavePos: true, Lat: 52.25, Lon: 3.91}
	msg := &modes.Message{DF: 17, TypeCode: 11, HaveAlt: true, Altitude: 38000}

	line := w.Format(msg, ac, time.Now())
	fields := strings.Split(line, ",")
	assert.Equal(t, "52.250000", fields[14])
	assert.Equal(t, "3.910000", fields[15])
}

func TestParseSBSLineIngestsMSGRecord(t *testing.T) {
	line := "MSG,3,1,1,3C4B2C,1,2026/07/29,10:00:00.000,2026/07/29,10:00:00.000,UAL123,35000,400,90.0,52.25,3.91,,1200,0,0,0,0"
	u, ok := ParseSBSLine(line)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x3c4b2c), u.ICAO)
	assert.Equal(t, "UAL123", u.Callsign)
	assert.Equal(t, 35000, u.Altitude)
	assert.Equal(t, 1200, u.Squawk)
}

func TestParseSBSLineRejectsNonMSGRecord(t *testing.T) {
	_, ok := ParseSBSLine("STA,1,1,1,3C4B2C,1,,,,,,,,,,,,,,,,")
	assert.False(t, ok)
}
