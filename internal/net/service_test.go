package net

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "RAW_OUT", RawOut.String())
	assert.Equal(t, "HTTP", HTTP.String())
}

func TestDeniedMatchesCIDR(t *testing.T) {
	logger := logrus.New()
	s := NewService(RawOut, 0, "", false, []string{"10.0.0.0/8"}, logger)

	assert.True(t, s.denied(net.ParseIP("10.1.2.3")))
	assert.False(t, s.denied(net.ParseIP("192.168.1.1")))
}

func TestMalformedCIDRIsSkippedNotFatal(t *testing.T) {
	logger := logrus.New()
	s := NewService(RawOut, 0, "", false, []string{"not-a-cidr"}, logger)
	assert.Empty(t, s.denyV4)
	assert.Empty(t, s.denyV6)
}

func TestBroadcastDeliversToConnectedClient(t *testing.T) {
	logger := logrus.New()
	s := NewService(RawOut, 0, "", false, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()
	s.listener = ln

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.handleAccepted(ctx, &wg, conn)
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	assert.NoError(t, err)
	defer clientConn.Close()

	time.Sleep(50 * time.Millisecond)
	s.Broadcast([]byte("*8d4840d6202196b902702838de73;\n"))

	buf := make([]byte, 64)
	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := clientConn.Read(buf)
	assert.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "8d4840d6202196")

	cancel()
}

func TestClientCountStartsAtZero(t *testing.T) {
	logger := logrus.New()
	s := NewService(RawOut, 0, "", false, nil, logger)
	assert.Equal(t, 0, s.ClientCount())
}

// TestUniqueClientsCountsDeniedAccepts guards scenario S6: a denied
// accept must still grow the service's unique-IP statistic even
// though the connection is immediately closed with no data sent.
func TestUniqueClientsCountsDeniedAccepts(t *testing.T) {
	logger := logrus.New()
	s := NewService(RawOut, 0, "", false, []string{"127.0.0.1/32"}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()
	s.listener = ln

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.handleAccepted(ctx, &wg, conn)
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	assert.NoError(t, err)
	defer clientConn.Close()

	wg.Wait()
	assert.Equal(t, uint64(1), s.Rejected)
	assert.Equal(t, 0, s.ClientCount())
	assert.Equal(t, 1, s.UniqueClients())
}

func TestRecordUniqueGrowsInStepsAndDedupes(t *testing.T) {
	logger := logrus.New()
	s := NewService(RawOut, 0, "", false, nil, logger)

	s.mu.Lock()
	for i := 0; i < uniqueIPStep+1; i++ {
		s.recordUnique(net.IPv4(10, 0, byte(i/256), byte(i%256)).String())
	}
	s.recordUnique(net.IPv4(10, 0, 0, 0).String())
	s.mu.Unlock()

	assert.Equal(t, uniqueIPStep+1, s.UniqueClients())
	assert.Equal(t, 2*uniqueIPStep, s.uniqueIPCap)
}
