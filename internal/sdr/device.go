//go:build cgo

// Package sdr wraps librtlsdr (via github.com/jpoirier/gortlsdr) to feed
// raw 8-bit interleaved I/Q samples at 2.4MHz into the magnitude
// converter, matching the receiver chain's only hardware-facing
// component.
package sdr

import (
	"context"
	"errors"
	"fmt"

	rtlsdr "github.com/jpoirier/gortlsdr"
	"github.com/sirupsen/logrus"
)

// readChunkSize is the unit librtlsdr's async callback hands us; large
// enough to amortize the callback overhead without holding onto stale
// samples for long.
const readChunkSize = 16 * 16384

// Device is a tuned, running RTL-SDR dongle.
type Device struct {
	dev      *rtlsdr.Context
	logger   *logrus.Logger
	index    int
	isOpen   bool
	cancelFn context.CancelFunc
}

// Open finds device index, but does not tune or start streaming yet.
func Open(index int, logger *logrus.Logger) (*Device, error) {
	count := rtlsdr.GetDeviceCount()
	if count == 0 {
		return nil, errors.New("no RTL-SDR devices found")
	}
	if index >= count {
		return nil, fmt.Errorf("device index %d out of range (0-%d)", index, count-1)
	}
	return &Device{logger: logger, index: index}, nil
}

// Configure tunes the device to frequencyHz at sampleRateHz, with gain
// in tenths-of-dB units (0 selects automatic gain control).
func (d *Device) Configure(frequencyHz, sampleRateHz uint32, gainTenthsDB int) error {
	dev, err := rtlsdr.Open(d.index)
	if err != nil {
		return fmt.Errorf("open rtl-sdr device %d: %w", d.index, err)
	}
	d.dev = dev
	d.isOpen = true

	if err := d.dev.SetCenterFreq(int(frequencyHz)); err != nil {
		return fmt.Errorf("set center frequency: %w", err)
	}
	if err := d.dev.SetSampleRate(int(sampleRateHz)); err != nil {
		return fmt.Errorf("set sample rate: %w", err)
	}

	if gainTenthsDB == 0 {
		if err := d.dev.SetTunerGainMode(false); err != nil {
			return fmt.Errorf("set auto gain: %w", err)
		}
	} else {
		if err := d.dev.SetTunerGainMode(true); err != nil {
			return fmt.Errorf("set manual gain mode: %w", err)
		}
		if err := d.dev.SetTunerGain(gainTenthsDB); err != nil {
			return fmt.Errorf("set gain: %w", err)
		}
	}

	if err := d.dev.ResetBuffer(); err != nil {
		return fmt.Errorf("reset buffer: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"device_index": d.index,
		"frequency_hz": frequencyHz,
		"sample_rate":  sampleRateHz,
		"gain_tenths":  gainTenthsDB,
	}).Info("rtl-sdr device configured")
	return nil
}

// Stream starts async reads and pushes each raw I/Q chunk onto
// samples until ctx is cancelled. It blocks until the read loop exits.
func (d *Device) Stream(ctx context.Context, samples chan<- []byte) error {
	if !d.isOpen {
		return errors.New("device not open")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	d.cancelFn = cancel

	callback := func(data []byte) {
		cp := append([]byte(nil), data...)
		select {
		case samples <- cp:
		case <-streamCtx.Done():
		default:
			d.logger.Debug("dropping rtl-sdr chunk, consumer channel full")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				d.logger.WithField("panic", p).Error("rtl-sdr capture panic")
			}
		}()
		errCh <- d.dev.ReadAsync(callback, nil, 0, readChunkSize)
	}()

	<-streamCtx.Done()
	if err := d.dev.CancelAsync(); err != nil {
		d.logger.WithError(err).Debug("cancel async read failed")
	}
	return <-errCh
}

// Close releases the device.
func (d *Device) Close() error {
	if d.cancelFn != nil {
		d.cancelFn()
	}
	if d.dev != nil && d.isOpen {
		if err := d.dev.Close(); err != nil {
			return fmt.Errorf("close rtl-sdr device: %w", err)
		}
		d.isOpen = false
	}
	return nil
}
