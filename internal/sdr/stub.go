//go:build !cgo

package sdr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Device is a stub on non-cgo builds; librtlsdr requires cgo to link.
type Device struct{}

// Open always fails on non-cgo builds.
func Open(index int, logger *logrus.Logger) (*Device, error) {
	return nil, fmt.Errorf("rtl-sdr support requires a cgo-enabled build")
}

func (d *Device) Configure(frequencyHz, sampleRateHz uint32, gainTenthsDB int) error {
	return fmt.Errorf("rtl-sdr support requires a cgo-enabled build")
}

func (d *Device) Stream(ctx context.Context, samples chan<- []byte) error {
	return fmt.Errorf("rtl-sdr support requires a cgo-enabled build")
}

func (d *Device) Close() error {
	return nil
}
