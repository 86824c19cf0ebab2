package net

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Dispatcher owns the five fixed network services and wires inbound
// data to caller-supplied handlers.
type Dispatcher struct {
	logger   *logrus.Logger
	RawOut   *Service
	RawIn    *Service
	SBSOut   *Service
	SBSIn    *Service
	HTTPSvc  *Service

	onRawLine func(remote string, line []byte)
	onSBSLine func(remote string, line string)

	// failed carries the service name of an active-connect (dial-out)
	// failure. The process is expected to exit its main loop in this
	// case, since the user explicitly asked for an upstream feeder.
	// Buffered so both RAW_IN and SBS_IN can report without blocking on
	// a reader.
	failed chan string
}

// Config carries the dispatcher's port/host/deny-list configuration,
// mirroring the CLI's networking flags.
type Config struct {
	Active bool

	RawOutPort int
	RawInPort  int
	SBSOutPort int
	SBSInPort  int
	HTTPPort   int

	HostRawIn string // host:port to dial when Active
	HostSBSIn string

	DenyV4 []string
	DenyV6 []string
}

// NewDispatcher constructs all five services from cfg, without
// starting any of them.
func NewDispatcher(cfg Config, logger *logrus.Logger) *Dispatcher {
	deny := append(append([]string{}, cfg.DenyV4...), cfg.DenyV6...)

	d := &Dispatcher{logger: logger, failed: make(chan string, 2)}
	d.RawOut = NewService(RawOut, cfg.RawOutPort, "", false, deny, logger)
	d.RawIn = NewService(RawIn, cfg.RawInPort, cfg.HostRawIn, cfg.Active && cfg.HostRawIn != "", deny, logger)
	d.SBSOut = NewService(SBSOut, cfg.SBSOutPort, "", false, deny, logger)
	d.SBSIn = NewService(SBSIn, cfg.SBSInPort, cfg.HostSBSIn, cfg.Active && cfg.HostSBSIn != "", deny, logger)
	d.HTTPSvc = NewService(HTTP, cfg.HTTPPort, "", false, deny, logger)
	return d
}

// OnRawLine registers the callback invoked for every complete `*...;`
// frame received on RAW_IN.
func (d *Dispatcher) OnRawLine(fn func(remote string, line []byte)) {
	d.onRawLine = fn
}

// OnSBSLine registers the callback invoked for every CSV line received
// on SBS_IN.
func (d *Dispatcher) OnSBSLine(fn func(remote string, line string)) {
	d.onSBSLine = fn
}

// Failed reports the name of an active-connect service (RAW_IN or
// SBS_IN under --net-active) that failed to resolve/connect/time out.
// The caller is expected to treat this as fatal and shut the process
// down.
func (d *Dispatcher) Failed() <-chan string {
	return d.failed
}

// Start launches all five services' accept/dial loops.
func (d *Dispatcher) Start(ctx context.Context, wg *sync.WaitGroup) error {
	services := []*Service{d.RawOut, d.RawIn, d.SBSOut, d.SBSIn, d.HTTPSvc}
	for _, s := range services {
		if s.Kind == RawIn || s.Kind == SBSIn {
			if err := d.runInboundReader(ctx, wg, s); err != nil {
				return err
			}
			continue
		}
		if s.Kind == HTTP {
			// HTTP is served by net/http through ListenHTTP instead of the
			// line-oriented broadcast loop the other services use.
			continue
		}
		if err := s.Run(ctx, wg); err != nil {
			return err
		}
	}
	return nil
}

// ListenHTTP opens the HTTP service's listener with the same deny-list
// filtering the other services apply on accept, for callers that want
// to run net/http's own request handling on top (internal/httpapi).
func (d *Dispatcher) ListenHTTP() (net.Listener, error) {
	ln, err := listen(d.HTTPSvc.Port)
	if err != nil {
		return nil, fmt.Errorf("%s: listen on :%d: %w", HTTP, d.HTTPSvc.Port, err)
	}
	d.HTTPSvc.listener = ln
	return &denyFilteredListener{Listener: ln, svc: d.HTTPSvc}, nil
}

// denyFilteredListener wraps a net.Listener so HTTP accepts are subject
// to the same deny-list and Accepted/Rejected counters as the other
// services, without routing them through Service's line-broadcast path.
type denyFilteredListener struct {
	net.Listener
	svc *Service
}

func (l *denyFilteredListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		ip := net.ParseIP(host)
		l.svc.mu.Lock()
		if host != "" {
			l.svc.recordUnique(host)
		}
		if ip != nil && l.svc.denied(ip) {
			l.svc.Rejected++
			l.svc.mu.Unlock()
			conn.Close()
			continue
		}
		l.svc.Accepted++
		l.svc.mu.Unlock()
		return conn, nil
	}
}

// runInboundReader wraps handleAccepted for RAW_IN/SBS_IN so every
// accepted connection also gets an independent line-reading goroutine
// feeding the registered callback, in addition to the normal
// broadcast-eligible write loop (a RAW_IN client can in principle also
// be written to, e.g. for keep-alives).
func (d *Dispatcher) runInboundReader(ctx context.Context, wg *sync.WaitGroup, s *Service) error {
	if s.Active {
		wg.Add(1)
		go d.runActiveInbound(ctx, wg, s)
		return nil
	}

	ln, err := listen(s.Port)
	if err != nil {
		return err
	}
	s.listener = ln

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ln.Close()
		go func() {
			<-ctx.Done()
			ln.Close()
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.handleAccepted(ctx, wg, conn)
			d.readInbound(ctx, wg, s, conn)
		}
	}()
	return nil
}

func (d *Dispatcher) runActiveInbound(ctx context.Context, wg *sync.WaitGroup, s *Service) {
	defer wg.Done()
	conn, err := dial(s.RemoteAddr)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{"service": s.Kind, "remote": s.RemoteAddr, "error": err}).
			Error("active-connect failed, signalling shutdown")
		select {
		case d.failed <- s.Kind.String():
		default:
		}
		return
	}
	s.handleAccepted(ctx, wg, conn)
	d.readInbound(ctx, wg, s, conn)
}

func (d *Dispatcher) readInbound(ctx context.Context, wg *sync.WaitGroup, s *Service, conn net.Conn) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(conn)
		remote := conn.RemoteAddr().String()
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line := scanner.Bytes()
			if s.Kind == RawIn && d.onRawLine != nil {
				cp := append([]byte(nil), line...)
				d.onRawLine(remote, cp)
			} else if s.Kind == SBSIn && d.onSBSLine != nil {
				d.onSBSLine(remote, string(line))
			}
		}
	}()
}

func listen(port int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%d", port))
}

func dial(addr string) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, connectTimeout)
}

// Close tears down every service.
func (d *Dispatcher) Close() {
	d.RawOut.Close()
	d.RawIn.Close()
	d.SBSOut.Close()
	d.SBSIn.Close()
	d.HTTPSvc.Close()
}
