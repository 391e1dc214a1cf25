package relay

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/ash2k/stager/wait"
	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"
	"golang.org/x/time/rate"

	"github.com/relaycore/statsd-relay/internal/lexer"
	"github.com/relaycore/statsd-relay/pkg/healthcheck"
	"github.com/relaycore/statsd-relay/pkg/pool"
	"github.com/relaycore/statsd-relay/pkg/ready"
	"github.com/relaycore/statsd-relay/pkg/util"
)

// ingressBufSize is the size of the scratch buffer a single ReadFrom reads
// into, matching the original's DATA_BUF_SIZE.
const ingressBufSize = 4096

// Config is the subset of the loaded configuration the reactor needs to
// run. It's a separate, minimal type so pkg/relay does not depend on
// internal/config.
type Config struct {
	DataPort             int
	FlushInterval        time.Duration
	HealthCheckInterval  time.Duration
	DNSRefreshInterval   time.Duration
	DownstreamHost       string
	DownstreamIsLiteral  bool
	DownstreamDataPort   int
	DownstreamHealthPort int
}

// Server is the single-threaded reactor: the sole goroutine that mutates
// the slot table, the egress ring, and the host set. Every other goroutine
// (ingress reader, resolver, per-probe) communicates with it exclusively
// over channels.
type Server struct {
	log     logrus.FieldLogger
	metrics *Metrics

	conn   net.PacketConn
	table  *SlotTable
	egress *Egress
	hosts  *HostSet
	health *HealthChecker

	resolver *Resolver
	pktPool  *pool.PacketPool

	badLineLogLimiter *rate.Limiter

	flushInterval  time.Duration
	healthInterval time.Duration
}

// NewServer wires up a relay reactor from cfg. It opens the ingress socket
// and the egress socket, but starts no goroutines; call Run to start it.
func NewServer(log logrus.FieldLogger, cfg Config, metrics *Metrics) (*Server, error) {
	if metrics == nil {
		metrics = NewMetrics()
	}

	conn, err := net.ListenPacket("udp4", net.JoinHostPort("", strconv.Itoa(cfg.DataPort)))
	if err != nil {
		return nil, err
	}

	hosts := NewHostSet(log, cfg.DownstreamDataPort, cfg.DownstreamHealthPort)
	egress, err := NewEgress(log, hosts, metrics)
	if err != nil {
		conn.Close()
		return nil, err
	}

	s := &Server{
		log:               log,
		metrics:           metrics,
		conn:              conn,
		egress:            egress,
		hosts:             hosts,
		health:            NewHealthChecker(log, cfg.HealthCheckInterval),
		pktPool:           pool.NewPacketPool(ingressBufSize),
		badLineLogLimiter: rate.NewLimiter(invalidSampleLogRate, invalidSampleLogBurst),
		flushInterval:     cfg.FlushInterval,
		healthInterval:    cfg.HealthCheckInterval,
	}
	s.table = NewSlotTable(log, func() { s.egress.Flush(s.table) })

	if cfg.DownstreamIsLiteral {
		hosts.Seed([]net.IP{net.ParseIP(cfg.DownstreamHost)})
	} else {
		s.resolver = NewResolver(log, cfg.DownstreamHost, cfg.DNSRefreshInterval, util.NewResolveBackOffFactory())
	}

	return s, nil
}

// LocalAddr returns the ingress socket's bound address, primarily useful in
// tests that bind to an ephemeral port (DataPort: 0).
func (s *Server) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// HealthChecks implements healthcheck.HealthCheckProvider: the relay
// considers itself live as long as at least one downstream is known,
// regardless of its current alive bit (that's the deeper, slower-moving
// signal /debug/vars already exposes).
func (s *Server) HealthChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{
		func() (string, healthcheck.HealthyStatus) {
			if len(s.hosts.Hosts()) == 0 {
				return "no downstream hosts configured", healthcheck.Unhealthy
			}
			return "ok", healthcheck.Healthy
		},
	}
}

// Run drives the reactor loop until ctx is cancelled. It owns the ingress
// socket (readable), the flush and health periodics, and the resolver's
// address handoff channel; everything funnels through this one select
// loop.
func (s *Server) Run(ctx context.Context) error {
	defer s.egress.Close()

	var wg wait.Group
	defer wg.Wait()
	// Runs before wg.Wait: closing the ingress socket is what unblocks
	// readIngress's ReadFrom once ctx is cancelled.
	defer s.conn.Close()

	ready.Add(ctx, 1)

	ingressCh := make(chan []byte, 64)
	wg.StartWithContext(ctx, func(ctx context.Context) {
		s.readIngress(ctx, ingressCh)
	})

	var addressesCh <-chan []net.IP
	if s.resolver != nil {
		addressesCh = s.resolver.Addresses()
		wg.StartWithContext(ctx, s.resolver.Run)
	}

	clk := clock.FromContext(ctx)
	flushTicker := clk.NewTicker(s.flushInterval)
	defer flushTicker.Stop()
	healthTicker := clk.NewTicker(s.healthInterval)
	defer healthTicker.Stop()

	ready.SignalReady(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case pkt := <-ingressCh:
			s.handlePacket(pkt)
		case <-flushTicker.C:
			if s.table.Accounting() > 0 {
				s.egress.Flush(s.table)
			}
		case <-healthTicker.C:
			s.health.Tick(ctx, s.hosts.Hosts())
		case r := <-s.health.Results():
			s.health.Apply(r)
			s.updateAliveCount()
		case addrs := <-addressesCh:
			s.hosts.Reconcile(addrs)
			s.updateAliveCount()
		}
	}
}

func (s *Server) updateAliveCount() {
	n := int64(0)
	for _, h := range s.hosts.Hosts() {
		if h.Alive() {
			n++
		}
	}
	s.metrics.AliveHosts.Set(n)
}

// readIngress is the only other goroutine that touches the ingress socket.
// It performs the blocking read and forwards raw datagram bytes over a
// channel; it does no parsing and touches no state the reactor owns.
func (s *Server) readIngress(ctx context.Context, out chan<- []byte) {
	for {
		buf := s.pktPool.Get()
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			s.pktPool.Put(buf)
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Error("ingress read failed")
			continue
		}
		if n == 0 {
			s.pktPool.Put(buf)
			continue
		}
		select {
		case out <- buf[:n]:
		case <-ctx.Done():
			s.pktPool.Put(buf)
			return
		}
	}
}

// handlePacket interprets one ingress datagram. pkt must have been obtained
// from s.pktPool (readIngress's only caller); it is returned to the pool
// once every line has been folded into the slot table.
func (s *Server) handlePacket(pkt []byte) {
	orig := pkt
	defer func() {
		if s.pktPool != nil {
			s.pktPool.Put(orig[:cap(orig)])
		}
	}()

	s.metrics.PacketsReceived.Add(1)
	if len(pkt) > 0 && pkt[len(pkt)-1] != '\n' {
		pkt = append(pkt, '\n')
	}
	for _, line := range lexer.Lines(pkt) {
		if len(line) < 6 || len(line) >= MTU-MaxCounterLength {
			s.metrics.BadLines.Add(1)
			if s.badLineLogLimiter == nil || s.badLineLogLimiter.Allow() {
				s.log.WithField("length", len(line)).Error("invalid metric line length")
			}
			continue
		}
		s.table.InsertLine(line)
	}
}
