package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go1090/internal/app"
)

func main() {
	var config app.Config
	var gainAutoFlag bool

	rootCmd := &cobra.Command{
		Use:   "go1090",
		Short: "ADS-B Decoder (dump1090-style)",
		Long: `ADS-B Decoder using RTL-SDR (dump1090-style implementation).

Captures I/Q samples from RTL-SDR at 2.4MHz, or replays a prerecorded
capture with --infile, demodulates ADS-B messages using dump1090's
correlation-based approach with proper phase tracking and scoring,
validates CRC, tracks aircraft, and serves the result over five fixed
network services (--net) as well as decoding it locally.

Example usage:
  go1090 --freq 1090000000 --gain 40 --device 0 --net
  go1090 --infile capture.bin --net-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion()
				return nil
			}
			config.GainAuto = gainAutoFlag || config.Gain == 0

			application := app.NewApplication(config)
			return application.Start()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.Flags()

	// IQ source.
	flags.StringVar(&config.InFile, "infile", "", "Replay IQ samples from a file (\"-\" for stdin) instead of a live RTL-SDR")
	flags.IntVar(&config.Loops, "loops", 1, "Number of times to replay --infile (0 = forever)")

	// Tuning.
	flags.Uint32Var(&config.Frequency, "freq", app.DefaultFrequency, "Frequency to tune to (Hz)")
	flags.IntVarP(&config.Gain, "gain", "g", app.DefaultGain, "Gain setting, tenths of dB (0 selects automatic gain control)")
	flags.BoolVar(&gainAutoFlag, "gain-auto", false, "Force automatic gain control regardless of --gain")
	flags.IntVar(&config.PPM, "ppm", 0, "Frequency correction, parts per million (accepted; not applied to the device)")
	flags.IntVarP(&config.DeviceIndex, "device", "d", 0, "RTL-SDR device index")

	// Decode policy.
	flags.BoolVar(&config.Aggressive, "aggressive", false, "Accepted for CLI compatibility; two-bit error correction stays limited to DF17/18")
	flags.BoolVar(&config.NoFix, "no-fix", false, "Disable single-/two-bit error correction entirely")
	flags.BoolVar(&config.Metric, "metric", false, "Accepted for CLI compatibility; output stays in feet and knots")
	flags.BoolVar(&config.Raw, "raw", false, "Print accepted frames as raw hex on stdout")
	flags.BoolVar(&config.Interactive, "interactive", false, "Accepted for CLI compatibility with dump1090's interactive mode")

	// Networking.
	flags.BoolVar(&config.Net, "net", false, "Enable the five network services (RAW_OUT/RAW_IN/SBS_OUT/SBS_IN/HTTP)")
	flags.BoolVar(&config.NetOnly, "net-only", false, "Run network services only, without tuning an IQ source")
	flags.BoolVar(&config.NetActive, "net-active", false, "Dial out for RAW_IN/SBS_IN instead of listening")
	flags.IntVar(&config.RawOutPort, "net-ro-port", app.DefaultRawOutPort, "RAW_OUT TCP port")
	flags.IntVar(&config.RawInPort, "net-ri-port", app.DefaultRawInPort, "RAW_IN TCP port")
	flags.IntVar(&config.SBSOutPort, "net-sbs-port", app.DefaultSBSOutPort, "SBS_OUT TCP port")
	flags.IntVar(&config.SBSInPort, "net-sbs-in-port", app.DefaultSBSInPort, "SBS_IN TCP port")
	flags.IntVar(&config.HTTPPort, "net-http-port", app.DefaultHTTPPort, "HTTP service port")
	flags.StringVar(&config.HostRawIn, "host-raw-in", "", "host:port to dial for RAW_IN when --net-active")
	flags.StringVar(&config.HostSBSIn, "host-sbs-in", "", "host:port to dial for SBS_IN when --net-active")
	flags.StringSliceVar(&config.DenyV4, "net-deny-v4", nil, "IPv4 CIDRs denied from connecting to any network service")
	flags.StringSliceVar(&config.DenyV6, "net-deny-v6", nil, "IPv6 CIDRs denied from connecting to any network service")

	// Aircraft tracking.
	flags.DurationVar(&config.InteractiveTTL, "interactive-ttl", app.DefaultInteractiveTTL, "How long an aircraft is tracked after its last message")
	flags.Float64Var(&config.RefLat, "lat", 0, "Receiver latitude, used to seed local CPR position decoding")
	flags.Float64Var(&config.RefLon, "lon", 0, "Receiver longitude, used to seed local CPR position decoding")

	// Ambient.
	flags.StringVarP(&config.LogDir, "log-dir", "l", "./logs", "Log directory")
	flags.BoolVarP(&config.LogRotateUTC, "utc", "u", true, "Use UTC for log rotation")
	flags.BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	flags.BoolVar(&config.ShowVersion, "version", false, "Show version information")

	config.SampleRate = app.DefaultSampleRate

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(app.ExitCodeOf(err)))
	}
}
