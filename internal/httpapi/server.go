// Package httpapi serves the JSON data endpoints and the diagnostic
// WebSocket echo endpoint.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"go1090/internal/registry"
)

// ReceiverInfo backs /data/receiver.json.
type ReceiverInfo struct {
	Version     string  `json:"version"`
	RefreshMS   int     `json:"refresh"`
	HistorySize int     `json:"history"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// AircraftEntry is one element of aircraft.json's aircraft array.
type AircraftEntry struct {
	Hex      string  `json:"hex"`
	Flight   string  `json:"flight,omitempty"`
	AltBaro  int     `json:"alt_baro,omitempty"`
	GS       int     `json:"gs,omitempty"`
	Track    float64 `json:"track,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Seen     float64 `json:"seen"`
	SeenPos  float64 `json:"seen_pos,omitempty"`
	RSSI     float64 `json:"rssi"`
	Messages uint64  `json:"messages"`
}

// AircraftList backs both /data/aircraft.json and /chunks/chunks.json.
type AircraftList struct {
	Now      float64         `json:"now"`
	Messages uint64          `json:"messages"`
	Aircraft []AircraftEntry `json:"aircraft"`
}

// Server wires the registry into the HTTP handlers.
type Server struct {
	logger   *logrus.Logger
	registry *registry.Registry
	upgrader websocket.Upgrader

	Version     string
	RefreshMS   int
	HistorySize int
	Lat, Lon    float64
	WebRoot     string

	totalMessages func() uint64
}

// NewServer builds the HTTP handler set. totalMessages reports the
// process-wide decoded message count for the receiver/aircraft JSON
// payloads.
func NewServer(reg *registry.Registry, logger *logrus.Logger, totalMessages func() uint64) *Server {
	return &Server{
		logger:        logger,
		registry:      reg,
		upgrader:      websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		RefreshMS:     1000,
		HistorySize:   120,
		totalMessages: totalMessages,
	}
}

// Handler builds the full mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.withMethodCheck(s.handleRoot))
	mux.HandleFunc("/data/receiver.json", s.withMethodCheck(s.handleReceiver))
	mux.HandleFunc("/data.json", s.withMethodCheck(s.handleAircraftList))
	mux.HandleFunc("/data/aircraft.json", s.withMethodCheck(s.handleAircraftList))
	mux.HandleFunc("/chunks/chunks.json", s.withMethodCheck(s.handleAircraftList))
	mux.HandleFunc("/echo", s.handleEcho)
	mux.HandleFunc("/favicon.ico", s.handleFavicon)
	mux.HandleFunc("/favicon.png", s.handleFavicon)
	return mux
}

// withMethodCheck rejects anything but GET/HEAD with 400.
func (s *Server) withMethodCheck(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusBadRequest)
			return
		}
		h(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Debug("failed to encode JSON response")
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.handleStatic(w, r)
		return
	}
	http.Redirect(w, r, "/index.html", http.StatusMovedPermanently)
}

func (s *Server) handleReceiver(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, ReceiverInfo{
		Version:     s.Version,
		RefreshMS:   s.RefreshMS,
		HistorySize: s.HistorySize,
		Lat:         s.Lat,
		Lon:         s.Lon,
	})
}

func (s *Server) handleAircraftList(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	list := AircraftList{Now: float64(now.UnixNano()) / 1e9}
	if s.totalMessages != nil {
		list.Messages = s.totalMessages()
	}

	for _, a := range s.registry.All() {
		entry := AircraftEntry{
			Hex:      hexICAO(a.ICAO),
			Flight:   a.Callsign,
			GS:       a.GroundSpeed,
			Track:    a.Heading,
			Seen:     now.Sub(a.LastSeen).Seconds(),
			RSSI:     a.MeanRSSI(),
			Messages: a.Messages,
		}
		if a.HaveAlt {
			entry.AltBaro = a.Altitude
		}
		if a.HavePos {
			entry.Lat = a.Lat
			entry.Lon = a.Lon
			entry.SeenPos = now.Sub(a.PosUpdated).Seconds()
		}
		list.Aircraft = append(list.Aircraft, entry)
	}

	s.writeJSON(w, list)
}

func hexICAO(icao uint32) string {
	const hexDigits = "0123456789abcdef"
	b := [6]byte{}
	for i := 5; i >= 0; i-- {
		b[i] = hexDigits[icao&0xf]
		icao >>= 4
	}
	return string(b[:])
}

// handleEcho upgrades to a WebSocket and echoes every message back,
// purely as a connectivity diagnostic.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, msg); err != nil {
			return
		}
	}
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/x-icon")
	w.Write(embeddedFavicon)
}

// handleStatic serves files out of WebRoot, 404ing anything missing;
// handleRoot sends every path other than "/" here.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if s.WebRoot == "" {
		http.NotFound(w, r)
		return
	}
	http.FileServer(http.Dir(s.WebRoot)).ServeHTTP(w, r)
}
