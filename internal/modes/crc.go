// Package modes implements the Mode S CRC engine, per-downlink-format
// frame decoding, and dump1090-style message scoring.
package modes

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// generatorPoly is the Mode S CRC-24 polynomial.
const generatorPoly = 0xfff409

// crcTable is the standard byte-at-a-time CRC table derived from
// generatorPoly.
var crcTable [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		c := uint32(i) << 16
		for b := 0; b < 8; b++ {
			if c&0x800000 != 0 {
				c = (c << 1) ^ generatorPoly
			} else {
				c = c << 1
			}
		}
		crcTable[i] = c & 0x00ffffff
	}
}

// checksum computes the Mode S CRC-24 remainder over data.
func checksum(data []byte) uint32 {
	var rem uint32
	for _, b := range data {
		rem = (rem << 8) ^ crcTable[b^byte(rem>>16)]
		rem &= 0xffffff
	}
	return rem
}

// icaoCacheTTL is how long an ICAO stays in the "recently seen under a
// trustworthy CRC" set, consulted when recovering XOR-ed AP fields.
const icaoCacheTTL = 60 * time.Second

// ICAOCache tracks ICAO addresses recently confirmed by a non-XORed CRC
// (DF11/17/18), backing brute-force AP recovery for DF 0/4/5/16/20/21.
type ICAOCache struct {
	c *cache.Cache
}

// NewICAOCache creates a cache with the default TTL and cleanup interval.
func NewICAOCache() *ICAOCache {
	return &ICAOCache{c: cache.New(icaoCacheTTL, icaoCacheTTL/6)}
}

// Add records addr as recently seen under a trustworthy checksum.
func (ic *ICAOCache) Add(addr uint32) {
	ic.c.SetDefault(fmt.Sprintf("%06x", addr), addr)
}

// Seen reports whether addr was recently added.
func (ic *ICAOCache) Seen(addr uint32) bool {
	_, ok := ic.c.Get(fmt.Sprintf("%06x", addr))
	return ok
}

// RecoverAP attempts to recover the ICAO address for a DF whose address
// parity field is XOR-ed with the message checksum (DF 0/4/5/16/20/21).
// The transmitter sends AP = checksum(msg) XOR ICAO, where msg is the
// frame without its last 24 bits, so XORing the AP bytes with the
// checksum of the leading bytes reconstructs the candidate ICAO. It is
// accepted only if that ICAO was recently confirmed via a non-XORed frame.
func (ic *ICAOCache) RecoverAP(data []byte) (icao uint32, ok bool) {
	n := len(data)
	if n < 3 {
		return 0, false
	}
	ap := uint32(data[n-3])<<16 | uint32(data[n-2])<<8 | uint32(data[n-1])
	candidate := checksum(data[:n-3]) ^ ap
	if ic.Seen(candidate) {
		return candidate, true
	}
	return 0, false
}
