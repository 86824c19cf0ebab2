// Package rawproto implements the raw hex and SBS (BaseStation) wire
// formats used by the network dispatcher's four message-carrying
// services.
package rawproto

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// RawParser consumes a byte stream framed as `*<hex>;` records
// separated by line feeds, the format rtl_adsb/dump1090's RAW_IN
// service emits and accepts. Unlike a single-shot line parser, this one
// buffers partial messages across calls, since a network read can
// split a frame anywhere.
type RawParser struct {
	buf           []byte
	invalidFrames uint64
}

// NewRawParser creates an empty parser.
func NewRawParser() *RawParser {
	return &RawParser{}
}

// Feed appends newly read bytes and returns every complete frame's
// decoded payload found so far. Invalid hex or length increments
// InvalidFrames and resyncs to the next `*`.
func (p *RawParser) Feed(data []byte) [][]byte {
	p.buf = append(p.buf, data...)

	var out [][]byte
	for {
		start := bytes.IndexByte(p.buf, '*')
		if start < 0 {
			p.buf = p.buf[:0]
			break
		}
		if start > 0 {
			p.buf = p.buf[start:]
		}

		end := bytes.IndexByte(p.buf, ';')
		if end < 0 {
			break // incomplete frame, wait for more data
		}

		hexPart := p.buf[1:end]
		frame, ok := decodeHexFrame(hexPart)
		p.buf = p.buf[end+1:]
		if bytes.HasPrefix(p.buf, []byte("\n")) {
			p.buf = p.buf[1:]
		}

		if !ok {
			p.invalidFrames++
			continue
		}
		out = append(out, frame)
	}
	return out
}

// InvalidFrames reports how many frames were rejected for bad hex or
// length since the parser was created.
func (p *RawParser) InvalidFrames() uint64 {
	return p.invalidFrames
}

// decodeHexFrame validates and decodes a raw-format payload: 14 hex
// chars for a short (7-byte) frame, 28 for a long (14-byte) one.
func decodeHexFrame(hexPart []byte) ([]byte, bool) {
	if len(hexPart) != 14 && len(hexPart) != 28 {
		return nil, false
	}
	frame := make([]byte, len(hexPart)/2)
	if _, err := hex.Decode(frame, hexPart); err != nil {
		return nil, false
	}
	return frame, true
}

// FormatRaw renders a decoded frame back into the `*<hex>;\n` wire
// format for the RAW_OUT service.
func FormatRaw(data []byte) string {
	return fmt.Sprintf("*%s;\n", hex.EncodeToString(data))
}
