package relay

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
)

type probeState int

const (
	probeIdle probeState = iota
	probeConnecting
	probeSending
	probeReading
	probeDown
)

func (s probeState) String() string {
	switch s {
	case probeConnecting:
		return "CONNECTING"
	case probeSending:
		return "SENDING"
	case probeReading:
		return "READING"
	case probeDown:
		return "DOWN"
	default:
		return "IDLE"
	}
}

// Host is a downstream collector, identified by a resolved address and a
// data port (UDP) and health port (TCP). It is mutated exclusively by the
// reactor goroutine; the in-flight probe goroutine (if any) only ever
// reports outcomes back over a channel, never touches the Host directly.
type Host struct {
	addr       net.IP
	dataPort   int
	healthPort int

	alive      bool
	probeState probeState
	probeEpoch int
	probeAbort context.CancelFunc
}

// NewHost creates a freshly reconciled host: not yet known alive, no probe
// in flight.
func NewHost(addr net.IP, dataPort, healthPort int) *Host {
	return &Host{addr: addr, dataPort: dataPort, healthPort: healthPort}
}

func (h *Host) Addr() net.IP { return h.addr }

func (h *Host) Alive() bool { return h.alive }

// DataAddr is the UDP address egress datagrams are sent to.
func (h *Host) DataAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: h.addr, Port: h.dataPort}
}

// HealthAddr is the TCP address the probe dials.
func (h *Host) HealthAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: h.addr, Port: h.healthPort}
}

// probeOutstanding reports whether a tick would find this host's previous
// probe still in flight.
func (h *Host) probeOutstanding() bool {
	return h.probeAbort != nil
}

// abort force-aborts any in-flight probe, immediately closing its socket.
// Used both by an overdue tick and by reconciliation removing the host.
func (h *Host) abort() {
	if h.probeAbort != nil {
		h.probeAbort()
		h.probeAbort = nil
	}
	h.probeState = probeIdle
}

// HostSet is the live set of downstream hosts, with a round-robin selection
// cursor. Not safe for concurrent use; owned exclusively by the reactor.
type HostSet struct {
	log        logrus.FieldLogger
	hosts      []*Host
	cursor     int
	dataPort   int
	healthPort int
}

// NewHostSet creates an empty host set. dataPort/healthPort are applied to
// every host created through Reconcile.
func NewHostSet(log logrus.FieldLogger, dataPort, healthPort int) *HostSet {
	return &HostSet{log: log, cursor: -1, dataPort: dataPort, healthPort: healthPort}
}

// Hosts returns the live hosts. The returned slice must not be mutated.
func (hs *HostSet) Hosts() []*Host { return hs.hosts }

// Seed populates the host set once, used at startup for a literal numeric
// downstream that is never refreshed by the resolver.
func (hs *HostSet) Seed(addrs []net.IP) {
	hs.Reconcile(addrs)
}

// Select advances the round-robin cursor and returns the next alive host,
// or nil if none are alive. The exact starting position after churn is not
// a guaranteed property; only the round-robin distribution over the
// currently alive hosts is.
func (hs *HostSet) Select() *Host {
	n := len(hs.hosts)
	if n == 0 {
		return nil
	}
	idx := hs.cursor
	if idx < 0 {
		idx = 0
	}
	for i := 0; i < n; i++ {
		idx = (idx + 1) % n
		if hs.hosts[idx].alive {
			hs.cursor = idx
			return hs.hosts[idx]
		}
	}
	hs.cursor = -1
	return nil
}

// Reconcile merges a freshly resolved address set into the live host set.
// Surviving hosts keep their identity (alive bit, in-flight probe); removed
// hosts have their in-flight probe force-aborted; new addresses become
// freshly allocated hosts with alive=false.
func (hs *HostSet) Reconcile(addrs []net.IP) {
	consumed := make([]bool, len(addrs))
	kept := make([]*Host, 0, len(hs.hosts)+len(addrs))

	for _, h := range hs.hosts {
		found := -1
		for i, a := range addrs {
			if !consumed[i] && a.Equal(h.addr) {
				found = i
				break
			}
		}
		if found >= 0 {
			consumed[found] = true
			kept = append(kept, h)
			continue
		}
		h.abort()
		hs.log.WithField("host", h.addr.String()).Info("downstream removed")
	}

	for i, a := range addrs {
		if consumed[i] {
			continue
		}
		kept = append(kept, NewHost(a, hs.dataPort, hs.healthPort))
		hs.log.WithField("host", a.String()).Info("downstream added")
	}

	hs.hosts = kept
}
