package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"go1090/internal/app"
)

func TestShowVersionPrintsVersionString(t *testing.T) {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	app.ShowVersion()

	w.Close()
	os.Stdout = oldStdout

	output := make([]byte, 1024)
	n, _ := r.Read(output)
	result := string(output[:n])

	assert.Contains(t, result, "Go1090 ADS-B Decoder")
}

func TestConstants(t *testing.T) {
	assert.Equal(t, uint32(1090000000), uint32(app.DefaultFrequency))
	assert.Equal(t, uint32(2400000), uint32(app.DefaultSampleRate))
	assert.Equal(t, 40, app.DefaultGain)
}
