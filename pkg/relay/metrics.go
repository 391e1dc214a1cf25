package relay

import "expvar"

// Metrics are the counters exposed on the admin HTTP server's /debug/vars
// endpoint. expvar.Int is safe for concurrent access, so these can be read
// from the admin goroutine while the reactor goroutine updates them.
type Metrics struct {
	PacketsReceived *expvar.Int
	BadLines        *expvar.Int
	PacketsSent     *expvar.Int
	AliveHosts      *expvar.Int
}

// NewMetrics creates a fresh, unpublished set of counters.
func NewMetrics() *Metrics {
	return &Metrics{
		PacketsReceived: new(expvar.Int),
		BadLines:        new(expvar.Int),
		PacketsSent:     new(expvar.Int),
		AliveHosts:      new(expvar.Int),
	}
}

// Publish registers the counters under expvar's default map using prefix
// as a common name prefix, so they surface on /debug/vars.
func (m *Metrics) Publish(prefix string) {
	expvar.Publish(prefix+"_packets_received", m.PacketsReceived)
	expvar.Publish(prefix+"_bad_lines", m.BadLines)
	expvar.Publish(prefix+"_packets_sent", m.PacketsSent)
	expvar.Publish(prefix+"_alive_hosts", m.AliveHosts)
}
