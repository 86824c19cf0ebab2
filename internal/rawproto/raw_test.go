package rawproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedParsesSingleLongFrame(t *testing.T) {
	p := NewRawParser()
	frames := p.Feed([]byte("*8d4840d6202196b902702838de73;\n"))
	assert.Len(t, frames, 1)
	assert.Len(t, frames[0], 14)
}

func TestFeedHandlesSplitFrameAcrossCalls(t *testing.T) {
	p := NewRawParser()
	whole := "*5d4840d6202196;\n"
	half := len(whole) / 2

	frames := p.Feed([]byte(whole[:half]))
	assert.Empty(t, frames)

	frames = p.Feed([]byte(whole[half:]))
	assert.Len(t, frames, 1)
	assert.Len(t, frames[0], 7)
}

func TestFeedResyncsPastInvalidFrame(t *testing.T) {
	p := NewRawParser()
	frames := p.Feed([]byte("*zz;\n*5d4840d6202196;\n"))
	assert.Len(t, frames, 1)
	assert.Equal(t, uint64(1), p.InvalidFrames())
}

func TestFormatRawRoundTrips(t *testing.T) {
	data := []byte{0x5d, 0x48, 0x40, 0xd6, 0x20, 0x21, 0x96}
	out := FormatRaw(data)
	assert.Equal(t, "*5d4840d6202196;\n", out)

	p := NewRawParser()
	frames := p.Feed([]byte(out))
	assert.Len(t, frames, 1)
	assert.Equal(t, data, frames[0])
}
