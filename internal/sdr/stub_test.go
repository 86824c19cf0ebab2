//go:build !cgo

package sdr

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestOpenFailsWithoutCgo(t *testing.T) {
	_, err := Open(0, logrus.New())
	assert.Error(t, err)
}
