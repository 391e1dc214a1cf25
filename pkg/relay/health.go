package relay

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// probeResult is a completed (or failed) probe's outcome, reported by a
// probe goroutine back to the reactor over a channel. epoch lets the
// reactor discard a result from a probe it has already force-aborted and
// superseded with a newer one.
type probeResult struct {
	host  *Host
	epoch int
	alive bool
}

// HealthChecker drives the per-host TCP probe state machine. Each tick
// starts (at most) one probe goroutine per host; the goroutine only ever
// communicates back via the results channel, never touching Host fields
// directly, so the reactor goroutine remains the sole mutator of host
// state.
type HealthChecker struct {
	log     logrus.FieldLogger
	timeout time.Duration
	results chan probeResult
}

// NewHealthChecker creates a checker whose probe dial is bounded by timeout,
// and whose write and read phases together are bounded by a second timeout.
func NewHealthChecker(log logrus.FieldLogger, timeout time.Duration) *HealthChecker {
	return &HealthChecker{
		log:     log,
		timeout: timeout,
		results: make(chan probeResult, MaxDownstreamNum),
	}
}

// Results is the channel the reactor selects on to apply completed probe
// outcomes.
func (c *HealthChecker) Results() <-chan probeResult {
	return c.results
}

// Tick starts a new probe for every host. A host whose previous probe is
// still outstanding is proof of a stuck probe: it is forcibly aborted
// (closing its socket immediately) and marked down before the new probe
// starts. This bounds fd usage to at most one in-flight probe per host.
func (c *HealthChecker) Tick(ctx context.Context, hosts []*Host) {
	for _, h := range hosts {
		if h.probeOutstanding() {
			h.abort()
			c.transitionDown(h, "probe still outstanding at next tick")
		}
		h.probeEpoch++
		h.probeState = probeConnecting
		probeCtx, abort := context.WithCancel(ctx)
		h.probeAbort = abort
		go c.probe(probeCtx, h, h.probeEpoch)
	}
}

// Apply applies a completed probe's outcome to its host. Stale results
// (from a probe already superseded by a force-abort and a newer tick) are
// dropped. alive transitions only log on the edge, matching the falling-
// edge-only down-event rule.
func (c *HealthChecker) Apply(r probeResult) {
	h := r.host
	if r.epoch != h.probeEpoch {
		return
	}
	h.probeAbort = nil
	h.probeState = probeIdle
	if r.alive {
		if !h.alive {
			c.log.WithField("host", h.addr.String()).Info("downstream up")
		}
		h.alive = true
		return
	}
	c.transitionDown(h, "health check failed")
}

func (c *HealthChecker) transitionDown(h *Host, reason string) {
	if h.alive {
		c.log.WithField("host", h.addr.String()).WithField("reason", reason).Warn("downstream down")
	}
	h.alive = false
	h.probeAbort = nil
	h.probeState = probeDown
}

// probe runs the non-blocking-in-spirit connect/send/read cycle as one
// blocking goroutine; Go's netpoller already multiplexes the blocking-
// looking calls onto the OS's readiness mechanism, so there is no separate
// CONNECTING/SENDING/READING watcher to re-arm by hand. Cancelling ctx
// force-closes the socket, immediately unblocking Write/Read.
func (c *HealthChecker) probe(ctx context.Context, h *Host, epoch int) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp4", h.HealthAddr().String())
	if err != nil {
		c.results <- probeResult{host: h, epoch: epoch, alive: false}
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := conn.Write([]byte(HealthCheckRequest)); err != nil {
		c.results <- probeResult{host: h, epoch: epoch, alive: false}
		return
	}

	buf := make([]byte, HealthCheckBufSize)
	n, err := conn.Read(buf)
	if err != nil || n < len(HealthCheckUpResponse) || string(buf[:len(HealthCheckUpResponse)]) != HealthCheckUpResponse {
		c.results <- probeResult{host: h, epoch: epoch, alive: false}
		return
	}
	c.results <- probeResult{host: h, epoch: epoch, alive: true}
}
