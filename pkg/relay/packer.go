package relay

import (
	"net"

	"github.com/sirupsen/logrus"
)

// Egress owns the double-buffered ring and the UDP socket packed datagrams
// are sent from. It is mutated exclusively by the reactor goroutine.
type Egress struct {
	log         logrus.FieldLogger
	ring        *ring
	hosts       *HostSet
	conn        *net.UDPConn
	packetsSent int
	metrics     *Metrics
}

// NewEgress opens the egress UDP socket and wires it to hosts for
// destination selection. metrics may be nil.
func NewEgress(log logrus.FieldLogger, hosts *HostSet, metrics *Metrics) (*Egress, error) {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, err
	}
	return &Egress{log: log, ring: newRing(), hosts: hosts, conn: conn, metrics: metrics}, nil
}

// Close releases the egress socket.
func (e *Egress) Close() error {
	return e.conn.Close()
}

// Flush packs table into the ring. If the ring was previously idle, this is
// the "writable watcher would have been armed" moment: the egress socket
// is rotated if it's exceeded its packet budget, and a synchronous drain
// is attempted immediately.
func (e *Egress) Flush(table *SlotTable) {
	shouldDrain, discarded := e.ring.pack(table)
	if discarded {
		e.log.Error("egress ring saturated, discarding current slot table")
	}
	if !shouldDrain {
		return
	}
	e.maybeRotateSocket()
	e.drain()
}

// drain sends every currently queued buffer to the selected downstream,
// one sendto per buffer, until the ring empties or no host is alive. In
// the latter case the queued buffer is deliberately left marked full and
// undrained, mirroring the original's behavior of stopping the write
// watcher without clearing the buffer: it is later discarded by the
// capacity-loss path on a subsequent rotation if nothing frees it up.
func (e *Egress) drain() {
	for {
		data, ok := e.ring.peek()
		if !ok {
			return
		}
		host := e.hosts.Select()
		if host == nil {
			e.log.Error("no downstream hosts available, dropping queued buffer")
			return
		}
		if _, err := e.conn.WriteToUDP(data, host.DataAddr()); err != nil {
			e.log.WithError(err).Warn("sendto failed")
		}
		e.packetsSent++
		if e.metrics != nil {
			e.metrics.PacketsSent.Add(1)
		}
		if e.ring.advance() {
			return
		}
	}
}

// maybeRotateSocket bounds the lifetime of the egress socket's ephemeral
// source port by reopening it once packetsSent exceeds MaxPacketsPerSocket.
func (e *Egress) maybeRotateSocket() {
	if e.packetsSent <= MaxPacketsPerSocket {
		return
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		e.log.WithError(err).Error("socket() failed, keeping existing egress socket")
		return
	}
	e.packetsSent = 0
	e.conn.Close()
	e.conn = conn
}
