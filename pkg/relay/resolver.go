package relay

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	"github.com/relaycore/statsd-relay/pkg/util"
)

// Resolver is the single background producer of fresh downstream address
// sets. It communicates with the reactor exclusively through a capacity-1
// channel: a non-blocking send reproduces the "producer loops while the
// previous result is still unconsumed, skip this cycle" backpressure
// without spinning.
type Resolver struct {
	log      logrus.FieldLogger
	hostname string
	interval time.Duration
	backoff  util.BackoffFactory
	resolve  func(ctx context.Context, host string) ([]net.IP, error)
	out      chan []net.IP
}

// NewResolver creates a resolver for hostname, ticking every interval.
func NewResolver(log logrus.FieldLogger, hostname string, interval time.Duration, backoffFactory util.BackoffFactory) *Resolver {
	return &Resolver{
		log:      log,
		hostname: hostname,
		interval: interval,
		backoff:  backoffFactory,
		resolve:  lookupHost,
		out:      make(chan []net.IP, 1),
	}
}

func lookupHost(ctx context.Context, host string) ([]net.IP, error) {
	ipAddrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	addrs := make([]net.IP, 0, len(ipAddrs))
	for _, a := range ipAddrs {
		addrs = append(addrs, a.IP)
	}
	return addrs, nil
}

// Addresses is the channel the reactor selects on to receive freshly
// resolved address sets.
func (r *Resolver) Addresses() <-chan []net.IP {
	return r.out
}

// Run sleeps for interval, ticking with the clock attached to ctx (or the
// real clock if none is attached), until ctx is cancelled.
func (r *Resolver) Run(ctx context.Context) {
	clk := clock.FromContext(ctx)
	ticker := clk.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick performs one resolution cycle, unless the previous result is still
// sitting unconsumed in r.out, in which case the lookup itself is skipped
// (matching the original's "if (in_addr_new_ready == 0) get_dns_data()"
// rate limit: a slow consumer must not cause a pile-up of outstanding
// lookups, not just a pile-up of buffered results).
func (r *Resolver) tick(ctx context.Context) {
	if len(r.out) > 0 {
		r.log.Debug("previous resolution not yet consumed, skipping this refresh cycle")
		return
	}

	var addrs []net.IP
	err := backoff.Retry(func() error {
		resolved, err := r.resolve(ctx, r.hostname)
		if err != nil {
			return err
		}
		addrs = resolved
		return nil
	}, r.backoff())
	if err != nil {
		r.log.WithError(err).Warn("dns lookup failed")
		return
	}

	if len(addrs) > MaxDownstreamNum {
		addrs = addrs[:MaxDownstreamNum]
	}

	r.out <- addrs
}
