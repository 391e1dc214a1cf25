package relay

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/statsd-relay/internal/fixtures"
)

func ip(s string) net.IP { return net.ParseIP(s) }

func TestReconcileAddsNewHosts(t *testing.T) {
	t.Parallel()
	hs := NewHostSet(fixtures.NewTestLogger(t), 8125, 8126)
	hs.Reconcile([]net.IP{ip("10.0.0.1"), ip("10.0.0.2")})

	require.Len(t, hs.Hosts(), 2)
	for _, h := range hs.Hosts() {
		assert.False(t, h.Alive())
	}
}

func TestReconcilePreservesAliveBitForSurvivors(t *testing.T) {
	t.Parallel()
	hs := NewHostSet(fixtures.NewTestLogger(t), 8125, 8126)
	hs.Reconcile([]net.IP{ip("10.0.0.1"), ip("10.0.0.2")})
	hs.Hosts()[0].alive = true

	hs.Reconcile([]net.IP{ip("10.0.0.1"), ip("10.0.0.2")})

	require.Len(t, hs.Hosts(), 2)
	found := false
	for _, h := range hs.Hosts() {
		if h.addr.Equal(ip("10.0.0.1")) {
			found = true
			assert.True(t, h.Alive())
		}
	}
	assert.True(t, found)
}

func TestReconcileRemovesAbsentHosts(t *testing.T) {
	t.Parallel()
	hs := NewHostSet(fixtures.NewTestLogger(t), 8125, 8126)
	hs.Reconcile([]net.IP{ip("10.0.0.1"), ip("10.0.0.2")})

	hs.Reconcile([]net.IP{ip("10.0.0.2")})

	require.Len(t, hs.Hosts(), 1)
	assert.True(t, hs.Hosts()[0].addr.Equal(ip("10.0.0.2")))
}

func TestReconcileIsNoOpForUnchangedSet(t *testing.T) {
	t.Parallel()
	hs := NewHostSet(fixtures.NewTestLogger(t), 8125, 8126)
	hs.Reconcile([]net.IP{ip("10.0.0.1"), ip("10.0.0.2")})
	before := hs.Hosts()

	hs.Reconcile([]net.IP{ip("10.0.0.1"), ip("10.0.0.2")})

	after := hs.Hosts()
	require.Len(t, after, 2)
	assert.Same(t, before[0], after[0])
	assert.Same(t, before[1], after[1])
}

func TestSelectRoundRobinsOverAliveHosts(t *testing.T) {
	t.Parallel()
	hs := NewHostSet(fixtures.NewTestLogger(t), 8125, 8126)
	hs.Reconcile([]net.IP{ip("10.0.0.1"), ip("10.0.0.2")})
	for _, h := range hs.Hosts() {
		h.alive = true
	}

	counts := map[string]int{}
	for i := 0; i < 100; i++ {
		h := hs.Select()
		require.NotNil(t, h)
		counts[h.addr.String()]++
	}

	for _, c := range counts {
		assert.InDelta(t, 50, c, 1)
	}
}

func TestSelectReturnsNilWhenNoneAlive(t *testing.T) {
	t.Parallel()
	hs := NewHostSet(fixtures.NewTestLogger(t), 8125, 8126)
	hs.Reconcile([]net.IP{ip("10.0.0.1")})

	assert.Nil(t, hs.Select())
}

func TestSelectSkipsDownHosts(t *testing.T) {
	t.Parallel()
	hs := NewHostSet(fixtures.NewTestLogger(t), 8125, 8126)
	hs.Reconcile([]net.IP{ip("10.0.0.1"), ip("10.0.0.2")})
	hs.Hosts()[0].alive = true
	hs.Hosts()[1].alive = false

	for i := 0; i < 10; i++ {
		h := hs.Select()
		require.NotNil(t, h)
		assert.True(t, h.addr.Equal(ip("10.0.0.1")))
	}
}
