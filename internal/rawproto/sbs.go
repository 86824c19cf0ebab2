package rawproto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go1090/internal/modes"
	"go1090/internal/registry"
)

// BaseStation message/transmission type constants.
const (
	msgMessageType = "MSG"

	transmissionESIDCat       = 1
	transmissionESSurface     = 2
	transmissionESAirborne    = 3
	transmissionESVelocity    = 4
	transmissionSurveillance  = 5
	transmissionSurveillance2 = 6
	transmissionAirToAir      = 7
	transmissionAllCall       = 8
)

// SBSLine is a fully populated BaseStation CSV record.
type SBSLine struct {
	TransmissionType int
	SessionID        int
	AircraftID       int
	HexIdent         string
	FlightID         int
	Generated        time.Time
	Logged           time.Time
	Callsign         string
	Altitude         string
	GroundSpeed      string
	Track            string
	Latitude         string
	Longitude        string
	VerticalRate     string
	Squawk           string
	OnGround         string
}

// SBSWriter renders decoded messages as BaseStation CSV lines.
type SBSWriter struct {
	sessionID  int
	aircraftID int
}

// NewSBSWriter creates a writer. sessionID/aircraftID are constant for
// the life of the process rather than reset per connection.
func NewSBSWriter() *SBSWriter {
	return &SBSWriter{sessionID: 1, aircraftID: 1}
}

// Format converts a decoded message plus its registry snapshot into a
// CSV line, or "" if this DF/type code has no BaseStation equivalent.
func (w *SBSWriter) Format(msg *modes.Message, ac *registry.Aircraft, now time.Time) string {
	line := &SBSLine{
		SessionID:  w.sessionID,
		AircraftID: w.aircraftID,
		FlightID:   w.aircraftID,
		Generated:  now,
		Logged:     now,
		HexIdent:   fmt.Sprintf("%06X", msg.ICAO),
	}

	switch msg.DF {
	case 4, 5, 20, 21:
		line.TransmissionType = transmissionSurveillance
		if msg.HaveAlt {
			line.Altitude = strconv.Itoa(msg.Altitude)
		}
		if msg.HaveSquawk {
			line.Squawk = fmt.Sprintf("%04d", msg.Squawk)
		}
	case 11:
		line.TransmissionType = transmissionAllCall
	case 17, 18:
		switch {
		case msg.TypeCode >= 1 && msg.TypeCode <= 4:
			line.TransmissionType = transmissionESIDCat
			line.Callsign = msg.Callsign
		case msg.TypeCode >= 5 && msg.TypeCode <= 8:
			line.TransmissionType = transmissionESSurface
			w.fillPosition(line, ac)
		case msg.TypeCode >= 9 && msg.TypeCode <= 18, msg.TypeCode >= 20 && msg.TypeCode <= 22:
			line.TransmissionType = transmissionESAirborne
			w.fillPosition(line, ac)
			if msg.HaveAlt {
				line.Altitude = strconv.Itoa(msg.Altitude)
			}
		case msg.TypeCode == 19:
			line.TransmissionType = transmissionESVelocity
			if msg.HaveVelocity {
				if msg.GroundSpeed != 0 {
					line.GroundSpeed = strconv.Itoa(msg.GroundSpeed)
				}
				if msg.Track != 0 {
					line.Track = fmt.Sprintf("%.1f", msg.Track)
				}
				if msg.VerticalRate != 0 {
					line.VerticalRate = strconv.Itoa(msg.VerticalRate)
				}
			}
		default:
			return ""
		}
	default:
		return ""
	}

	if ac != nil && ac.OnGround {
		line.OnGround = "1"
	}

	return formatSBSCSV(line)
}

func (w *SBSWriter) fillPosition(line *SBSLine, ac *registry.Aircraft) {
	if ac == nil || !ac.HavePos {
		return
	}
	line.Latitude = fmt.Sprintf("%.6f", ac.Lat)
	line.Longitude = fmt.Sprintf("%.6f", ac.Lon)
}

func formatSBSCSV(l *SBSLine) string {
	fields := []string{
		msgMessageType,
		strconv.Itoa(l.TransmissionType),
		strconv.Itoa(l.SessionID),
		strconv.Itoa(l.AircraftID),
		l.HexIdent,
		strconv.Itoa(l.FlightID),
		l.Generated.Format("2006/01/02"),
		l.Generated.Format("15:04:05.000"),
		l.Logged.Format("2006/01/02"),
		l.Logged.Format("15:04:05.000"),
		l.Callsign,
		l.Altitude,
		l.GroundSpeed,
		l.Track,
		l.Latitude,
		l.Longitude,
		l.VerticalRate,
		l.Squawk,
		"", // Alert
		"", // Emergency
		"", // SPI
		l.OnGround,
	}
	return strings.Join(fields, ",")
}
