package relay

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/statsd-relay/internal/fixtures"
)

// upListener accepts one connection, reads the probe request, and replies
// with the literal up response.
func upListener(t *testing.T) *net.TCPListener {
	t.Helper()
	l, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, len(HealthCheckRequest))
		io.ReadFull(conn, buf)
		conn.Write([]byte(HealthCheckUpResponse))
	}()
	return l
}

func hostFor(t *testing.T, l *net.TCPListener) *Host {
	t.Helper()
	addr := l.Addr().(*net.TCPAddr)
	return NewHost(addr.IP, 0, addr.Port)
}

func TestHealthCheckMarksAliveOnUpResponse(t *testing.T) {
	t.Parallel()
	l := upListener(t)
	defer l.Close()

	h := hostFor(t, l)
	checker := NewHealthChecker(fixtures.NewTestLogger(t), time.Second)
	ctx := context.Background()
	checker.Tick(ctx, []*Host{h})

	r := <-checker.Results()
	checker.Apply(r)
	assert.True(t, h.Alive())
}

func TestHealthCheckMarksDownOnConnectFailure(t *testing.T) {
	t.Parallel()
	l, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	l.Close() // nothing listening now

	h := NewHost(addr.IP, 0, addr.Port)
	checker := NewHealthChecker(fixtures.NewTestLogger(t), 200*time.Millisecond)
	checker.Tick(context.Background(), []*Host{h})

	r := <-checker.Results()
	checker.Apply(r)
	assert.False(t, h.Alive())
}

func TestHealthCheckMarksDownOnTruncatedUpResponse(t *testing.T) {
	t.Parallel()
	l, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, len(HealthCheckRequest))
		io.ReadFull(conn, buf)
		conn.Write([]byte("health: up")) // missing trailing '\n'
	}()

	h := hostFor(t, l)
	checker := NewHealthChecker(fixtures.NewTestLogger(t), time.Second)
	checker.Tick(context.Background(), []*Host{h})

	r := <-checker.Results()
	checker.Apply(r)
	assert.False(t, h.Alive())
}

func TestStuckProbeForciblyAbortedAtNextTick(t *testing.T) {
	t.Parallel()
	l, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer l.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	h := hostFor(t, l)
	h.alive = true
	checker := NewHealthChecker(fixtures.NewTestLogger(t), 10*time.Second)
	checker.Tick(context.Background(), []*Host{h})

	conn := <-accepted // connected, but the server never responds: probe is stuck in READING
	defer conn.Close()
	require.True(t, h.probeOutstanding())

	// next tick finds the previous probe still active and force-aborts it
	checker.Tick(context.Background(), []*Host{h})
	assert.False(t, h.Alive())
}
