package app

import "time"

// Default configuration constants, mirroring dump1090's own defaults
// and typical RTL-SDR tuning defaults.
const (
	DefaultFrequency  = 1090000000 // 1090 MHz
	DefaultSampleRate = 2400000    // 2.4 MHz, the demodulator's only supported rate
	DefaultGain       = 40         // tenths of dB; 0 selects automatic gain control

	DefaultRawOutPort = 30002
	DefaultRawInPort  = 30001
	DefaultSBSOutPort = 30003
	// DefaultSBSInPort has no dump1090 precedent (SBS_IN is unused in
	// passive mode); 30004 continues the 3000x numbering the other four
	// ports use rather than colliding with an arbitrary third-party
	// default (DESIGN.md open-question decision).
	DefaultSBSInPort = 30004
	DefaultHTTPPort  = 8080

	DefaultInteractiveTTL = 60 * time.Second
)

// Config holds the whole CLI/config surface plus ambient
// (logging/version) settings.
type Config struct {
	// IQ source (mutually exclusive: a file/stdin replay or a tuned
	// RTL-SDR device).
	InFile string // --infile; "-" means stdin
	Loops  int    // --loops; 0 means forever

	Frequency   uint32 // --freq
	SampleRate  uint32 // implementation detail, not a flag: demod assumes 2.4MHz
	Gain        int    // --gain, tenths of dB; ignored (auto) when GainAuto
	GainAuto    bool   // --gain-auto, or --gain 0
	PPM         int    // --ppm
	DeviceIndex int

	Aggressive bool // --aggressive
	NoFix      bool // --no-fix
	Metric     bool // --metric
	Raw        bool // --raw: also print accepted frames as raw hex on stdout

	Interactive bool // --interactive: accepted for CLI compatibility; the
	// interactive terminal view itself lives outside this core, and
	// nothing else reads this field.

	Net       bool // --net: enable the five network services
	NetOnly   bool // --net-only: run network services without an IQ source
	NetActive bool // --net-active: RAW_IN/SBS_IN dial out instead of listening

	RawOutPort int
	RawInPort  int
	SBSOutPort int
	SBSInPort  int
	HTTPPort   int

	HostRawIn string // --host-raw-in, host:port dialed when NetActive
	HostSBSIn string // --host-sbs-in

	DenyV4 []string
	DenyV6 []string

	InteractiveTTL time.Duration // --interactive-ttl
	RefLat, RefLon float64       // receiver's own position, seeds local CPR decode

	LogDir       string
	LogRotateUTC bool
	Verbose      bool
	ShowVersion  bool
}
