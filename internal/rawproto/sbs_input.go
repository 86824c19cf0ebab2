package rawproto

import (
	"fmt"
	"strconv"
	"strings"
)

// sbsFieldCount is the fixed BaseStation CSV record width.
const sbsFieldCount = 22

// SBSUpdate is a synthetic aircraft update decoded from an SBS input
// record, keyed by the ICAO hex in column 5.
type SBSUpdate struct {
	ICAO         uint32
	Callsign     string
	HaveAlt      bool
	Altitude     int
	HaveSpeed    bool
	GroundSpeed  int
	HaveTrack    bool
	Track        float64
	HaveLat      bool
	Latitude     float64
	HaveLon      bool
	Longitude    float64
	HaveSquawk   bool
	Squawk       int
}

// ParseSBSLine parses one BaseStation CSV line. Only MSG records are
// ingested; everything else (SEL/ID/AIR/STA/CLK) returns ok=false.
func ParseSBSLine(line string) (SBSUpdate, bool) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) < sbsFieldCount || fields[0] != msgMessageType {
		return SBSUpdate{}, false
	}

	icao, err := strconv.ParseUint(fields[4], 16, 32)
	if err != nil {
		return SBSUpdate{}, false
	}

	var u SBSUpdate
	u.ICAO = uint32(icao)

	if cs := strings.TrimSpace(fields[10]); cs != "" {
		u.Callsign = cs
	}
	if alt, err := strconv.Atoi(fields[11]); err == nil {
		u.Altitude, u.HaveAlt = alt, true
	}
	if gs, err := strconv.Atoi(fields[12]); err == nil {
		u.GroundSpeed, u.HaveSpeed = gs, true
	}
	if tr, err := strconv.ParseFloat(fields[13], 64); err == nil {
		u.Track, u.HaveTrack = tr, true
	}
	if lat, err := strconv.ParseFloat(fields[14], 64); err == nil {
		u.Latitude, u.HaveLat = lat, true
	}
	if lon, err := strconv.ParseFloat(fields[15], 64); err == nil {
		u.Longitude, u.HaveLon = lon, true
	}
	if sq, err := strconv.Atoi(fields[17]); err == nil {
		u.Squawk, u.HaveSquawk = sq, true
	}

	return u, true
}

// FormatSBSHeader is a convenience for manual inspection that
// describes the fixed 22-column layout.
func FormatSBSHeader() string {
	return fmt.Sprintf("%d columns: MSG,transmission,session,aircraft,hexident,flight,...", sbsFieldCount)
}
