// Package app wires the receiver's components — magnitude conversion,
// preamble/bit demodulation, Mode S decode, CPR, the aircraft registry,
// and the network dispatcher — into one runnable engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"go1090/internal/cpr"
	"go1090/internal/httpapi"
	"go1090/internal/logging"
	"go1090/internal/magnitude"
	"go1090/internal/modes"
	netsvc "go1090/internal/net"
	"go1090/internal/rawproto"
	"go1090/internal/registry"
	"go1090/internal/sdr"
)

// ExitCode classifies a Start error into the exit status spec.md §6
// requires: 1 for configuration/usage errors (rejected before the loop
// starts), 2 for I/O or device errors (SDR, file, or network failures).
// A nil error or one with no ExitCode implies 0.
type ExitCode int

const (
	ExitConfig ExitCode = 1
	ExitIO     ExitCode = 2
)

// startError pairs an error with the exit code its category maps to,
// so cmd/go1090 can report spec.md §6's exact exit codes without
// string-matching error text.
type startError struct {
	code ExitCode
	err  error
}

func (e *startError) Error() string { return e.err.Error() }
func (e *startError) Unwrap() error { return e.err }

// ExitCodeOf extracts the intended process exit code from an error
// returned by Application.Start, defaulting to ExitIO for any error
// that wasn't classified (a defensive fallback, not an expected path).
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return 0
	}
	var se *startError
	if errors.As(err, &se) {
		return se.code
	}
	return ExitIO
}

// Application is the running receiver: one IQ source (file or RTL-SDR,
// absent in --net-only mode), the decode pipeline, the aircraft
// registry, and the network dispatcher.
type Application struct {
	config Config
	logger *logrus.Logger

	magBuf     *magnitude.Buffer
	decoder    *modes.Decoder
	cprDecoder *cpr.Decoder
	registry   *registry.Registry
	dispatcher *netsvc.Dispatcher
	sbsWriter  *rawproto.SBSWriter
	httpServer *httpapi.Server
	logRotator *logging.LogRotator

	source source
	device *sdr.Device // non-nil only when streaming from real hardware

	statsMu sync.Mutex
	stats   modes.Stats

	totalMessages uint64 // atomic

	rawParsersMu sync.Mutex
	rawParsers   map[string]*rawproto.RawParser

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication creates a new application instance.
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		rawParsers: make(map[string]*rawproto.RawParser),
	}
}

// Start initializes every component, runs the engine, and blocks until
// a shutdown signal arrives.
func (a *Application) Start() error {
	a.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("starting ADS-B receiver")

	if err := a.validateConfig(); err != nil {
		return &startError{ExitConfig, fmt.Errorf("configuration error: %w", err)}
	}

	if err := a.initializeComponents(); err != nil {
		return &startError{ExitIO, fmt.Errorf("failed to initialize components: %w", err)}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := a.run(); err != nil {
		a.logger.WithError(err).Error("application error")
		return &startError{ExitIO, err}
	}

	var activeConnectFailed string
	if a.dispatcher != nil {
		select {
		case activeConnectFailed = <-a.dispatcher.Failed():
		case <-sigChan:
			a.logger.Info("received shutdown signal")
		}
	} else {
		<-sigChan
		a.logger.Info("received shutdown signal")
	}

	a.shutdown()
	if activeConnectFailed != "" {
		return &startError{ExitIO, fmt.Errorf("%s: active-connect failed, exiting", activeConnectFailed)}
	}
	return nil
}

// validateConfig rejects combinations that can never produce a useful
// run: configuration errors exit before the loop starts.
func (a *Application) validateConfig() error {
	if a.config.InFile != "" && !a.config.NetOnly && a.config.Frequency == 0 {
		// not actually reachable via the CLI (frequency always has a
		// default), kept as the shape of a config-error check future
		// flags can extend.
	}
	if a.config.NetActive && !a.config.Net && !a.config.NetOnly {
		return fmt.Errorf("--net-active requires --net or --net-only")
	}
	if a.config.InFile == "" && a.config.NetOnly == false && a.config.DeviceIndex < 0 {
		return fmt.Errorf("device index must be >= 0")
	}
	return nil
}

// initializeComponents builds every component but starts nothing.
func (a *Application) initializeComponents() error {
	switch {
	case a.config.InFile != "":
		a.source = newFileSource(a.config.InFile, a.config.Loops)
	case a.config.NetOnly:
		a.source = nil
	default:
		dev, err := sdr.Open(a.config.DeviceIndex, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open RTL-SDR: %w", err)
		}
		gain := a.config.Gain
		if a.config.GainAuto {
			gain = 0
		}
		if err := dev.Configure(a.config.Frequency, a.config.SampleRate, gain); err != nil {
			return fmt.Errorf("failed to configure RTL-SDR: %w", err)
		}
		a.device = dev
		a.source = newDeviceSource(dev)
	}

	a.magBuf = magnitude.NewBuffer(magnitude.NewTable())
	a.decoder = modes.NewDecoder(a.config.Aggressive, a.config.NoFix)
	a.cprDecoder = cpr.NewDecoder(a.logger)

	ttl := a.config.InteractiveTTL
	if ttl <= 0 {
		ttl = DefaultInteractiveTTL
	}
	a.registry = registry.NewRegistry(a.cprDecoder, ttl, a.config.RefLat, a.config.RefLon)
	a.sbsWriter = rawproto.NewSBSWriter()

	a.httpServer = httpapi.NewServer(a.registry, a.logger, func() uint64 {
		return atomic.LoadUint64(&a.totalMessages)
	})
	a.httpServer.Version = Version
	a.httpServer.Lat, a.httpServer.Lon = a.config.RefLat, a.config.RefLon

	logDir := a.config.LogDir
	if logDir == "" {
		logDir = "./logs"
	}
	var err error
	a.logRotator, err = logging.NewLogRotator(logDir, a.config.LogRotateUTC, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize log rotator: %w", err)
	}

	if a.config.Net || a.config.NetOnly {
		dispCfg := netsvc.Config{
			Active:     a.config.NetActive,
			RawOutPort: orDefault(a.config.RawOutPort, DefaultRawOutPort),
			RawInPort:  orDefault(a.config.RawInPort, DefaultRawInPort),
			SBSOutPort: orDefault(a.config.SBSOutPort, DefaultSBSOutPort),
			SBSInPort:  orDefault(a.config.SBSInPort, DefaultSBSInPort),
			HTTPPort:   orDefault(a.config.HTTPPort, DefaultHTTPPort),
			HostRawIn:  a.config.HostRawIn,
			HostSBSIn:  a.config.HostSBSIn,
			DenyV4:     a.config.DenyV4,
			DenyV6:     a.config.DenyV6,
		}
		a.dispatcher = netsvc.NewDispatcher(dispCfg, a.logger)
		a.dispatcher.OnRawLine(a.handleRawLine)
		a.dispatcher.OnSBSLine(a.handleSBSLine)
	}

	return nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// run starts every background goroutine and returns without blocking;
// Start blocks separately on the shutdown signal.
func (a *Application) run() error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logRotator.Start(a.ctx)
	}()

	if a.dispatcher != nil {
		if err := a.dispatcher.Start(a.ctx, &a.wg); err != nil {
			return fmt.Errorf("starting network dispatcher: %w", err)
		}
		a.wg.Add(1)
		go a.serveHTTP()
	}

	if a.source != nil {
		blocks, err := a.source.Blocks(a.ctx)
		if err != nil {
			return fmt.Errorf("starting IQ source: %w", err)
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.processBlocks(blocks)
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.tickLoop()
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reportStatistics()
	}()

	a.logger.Info("all components started")
	return nil
}

// serveHTTP runs the HTTP/JSON endpoints on top of the dispatcher's
// deny-filtered HTTP listener.
func (a *Application) serveHTTP() {
	defer a.wg.Done()

	ln, err := a.dispatcher.ListenHTTP()
	if err != nil {
		a.logger.WithError(err).Error("failed to start HTTP service")
		return
	}

	srv := &http.Server{Handler: a.httpServer.Handler()}
	go func() {
		<-a.ctx.Done()
		srv.Close()
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		a.logger.WithError(err).Debug("http server stopped")
	}
}

// processBlocks converts each IQ block to magnitudes, demodulates it,
// and dispatches every accepted message, preserving sample order.
func (a *Application) processBlocks(blocks <-chan iqBlock) {
	var sampleClock uint64
	for {
		select {
		case <-a.ctx.Done():
			return
		case blk, ok := <-blocks:
			if !ok {
				return
			}

			magBlock := a.magBuf.Convert(blk.Data, sampleClock, blk.EOF)
			sampleClock += uint64(len(blk.Data)/2) * 5 // 2.4 MHz samples -> 12 MHz ticks

			a.statsMu.Lock()
			msgs := a.decoder.Scan(magBlock.Mag, &a.stats)
			a.statsMu.Unlock()

			now := time.Now()
			for _, msg := range msgs {
				if msg.Score < 0 {
					continue
				}
				a.handleMessage(msg, 0, now)
			}
		}
	}
}

// handleMessage applies a decoded message to the registry and fans it
// out to the raw/SBS output services, shared by the IQ pipeline and
// by messages recovered from an upstream RAW_IN feeder.
func (a *Application) handleMessage(msg *modes.Message, rssi float64, now time.Time) {
	atomic.AddUint64(&a.totalMessages, 1)
	ac := a.registry.OnMessage(msg, rssi, now)

	if a.config.Raw {
		fmt.Print(rawproto.FormatRaw(msg.Data))
	}

	if a.dispatcher == nil {
		return
	}
	a.dispatcher.RawOut.Broadcast([]byte(rawproto.FormatRaw(msg.Data)))
	if line := a.sbsWriter.Format(msg, ac, now); line != "" {
		a.dispatcher.SBSOut.Broadcast([]byte(line + "\r\n"))
	}
}

// handleRawLine decodes frames received on RAW_IN and applies them
// exactly like locally-demodulated messages.
func (a *Application) handleRawLine(remote string, line []byte) {
	a.rawParsersMu.Lock()
	p, ok := a.rawParsers[remote]
	if !ok {
		p = rawproto.NewRawParser()
		a.rawParsers[remote] = p
	}
	a.rawParsersMu.Unlock()

	for _, frame := range p.Feed(append(line, '\n')) {
		msg := a.decoder.Validate(frame)
		if msg == nil || msg.Score < 0 {
			continue
		}
		a.handleMessage(msg, 0, time.Now())
	}
}

// handleSBSLine applies a BaseStation CSV record received on SBS_IN as
// a synthetic aircraft update, bypassing the decoder since there is no
// Mode S frame to validate.
func (a *Application) handleSBSLine(remote string, line string) {
	u, ok := rawproto.ParseSBSLine(line)
	if !ok {
		return
	}

	now := time.Now()
	a.registry.WithAircraft(u.ICAO, now, func(ac *registry.Aircraft) {
		ac.LastSeen = now
		ac.Messages++
		if u.Callsign != "" {
			ac.Callsign = u.Callsign
		}
		if u.HaveAlt {
			ac.Altitude, ac.HaveAlt = u.Altitude, true
		}
		if u.HaveSpeed {
			ac.GroundSpeed = u.GroundSpeed
		}
		if u.HaveTrack {
			ac.Heading, ac.HeadingValid = u.Track, true
		}
		if u.HaveLat && u.HaveLon {
			ac.Lat, ac.Lon = u.Latitude, u.Longitude
			ac.HavePos, ac.PosUpdated = true, now
			ac.EstLat, ac.EstLon, ac.EstUpdated = ac.Lat, ac.Lon, now
		}
		if u.HaveSquawk {
			ac.Squawk, ac.HaveSquawk = u.Squawk, true
		}
	})
}

// tickLoop runs the registry's periodic maintenance every 125ms.
func (a *Application) tickLoop() {
	ticker := time.NewTicker(125 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.registry.Tick(time.Now())
		}
	}
}

// reportStatistics periodically logs demodulation and registry
// counters.
func (a *Application) reportStatistics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.statsMu.Lock()
			stats := a.stats
			a.statsMu.Unlock()

			fields := logrus.Fields{
				"preambles":  stats.Preambles,
				"valid":      stats.ValidMessages,
				"rejected":   stats.RejectedBad,
				"corrected":  stats.CorrectedMessages,
				"single_bit": stats.SingleBitErrors,
				"two_bit":    stats.TwoBitErrors,
				"tracked":    a.registry.Len(),
				"total_msgs": atomic.LoadUint64(&a.totalMessages),
			}
			if a.dispatcher != nil {
				fields["raw_out_clients"] = a.dispatcher.RawOut.ClientCount()
				fields["sbs_out_clients"] = a.dispatcher.SBSOut.ClientCount()
				fields["raw_out_unique_clients"] = a.dispatcher.RawOut.UniqueClients()
				fields["sbs_out_unique_clients"] = a.dispatcher.SBSOut.UniqueClients()
			}
			a.logger.WithFields(fields).Info("receiver statistics")
		}
	}
}

// shutdown cancels every goroutine, waits (bounded) for them to exit,
// and releases hardware/file resources.
func (a *Application) shutdown() {
	a.logger.Info("shutting down application")
	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("all goroutines finished")
	case <-time.After(5 * time.Second):
		a.logger.Warn("shutdown timeout, forcing exit")
	}

	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.device != nil {
		a.device.Close()
	}
	if a.logRotator != nil {
		a.logRotator.Close()
	}

	a.logger.Info("shutdown completed")
}
