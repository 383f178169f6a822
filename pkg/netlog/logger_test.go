package netlog

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/netlog/pkg/core"
	"github.com/irctrakz/netlog/pkg/filter"
	"github.com/irctrakz/netlog/pkg/ring"
)

func newStore(t *testing.T) *ring.Store {
	t.Helper()
	st, err := ring.New(64 * 1024)
	require.NoError(t, err)
	return st
}

func curlEvent() *core.Event {
	return &core.Event{
		PID:      42,
		UID:      1000,
		Path:     "/usr/bin/curl",
		Action:   core.ActionConnect,
		Protocol: core.ProtoTCP,
		Family:   core.FamilyInet,
		Src:      netip.MustParseAddrPort("10.0.0.1:5000"),
		Dst:      netip.MustParseAddrPort("93.184.216.34:443"),
	}
}

func TestLoggerStoresEvents(t *testing.T) {
	st := newStore(t)
	l := NewLogger(st, nil)
	assert.Equal(t, AllProbes, l.Probes())

	l.Log(curlEvent())
	seq, _ := st.Next()
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, core.LoggerMetrics{Received: 1, Stored: 1}, l.Metrics())
}

func TestLoggerHonoursProbeMask(t *testing.T) {
	st := newStore(t)
	l := NewLogger(st, nil)
	l.Disable(ProbeTCPConnect)
	assert.False(t, l.Enabled(ProbeTCPConnect))
	assert.True(t, l.Enabled(ProbeTCPAccept))

	l.Log(curlEvent())
	accept := curlEvent()
	accept.Action = core.ActionAccept
	l.Log(accept)

	// No probe covers TCP bind, so it is always kept.
	bind := curlEvent()
	bind.Action = core.ActionBind
	l.Log(bind)

	seq, _ := st.Next()
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, uint64(1), l.Metrics().ProbeDisabled)

	l.Enable(ProbeTCPConnect)
	l.Log(curlEvent())
	seq, _ = st.Next()
	assert.Equal(t, uint64(3), seq)

	l.SetProbes(0)
	l.Log(curlEvent())
	seq, _ = st.Next()
	assert.Equal(t, uint64(3), seq)
}

func TestLoggerAppliesWhitelist(t *testing.T) {
	st := newStore(t)
	wl, err := filter.NewWhitelist([]string{"/usr/bin/curl|443"})
	require.NoError(t, err)
	l := NewLogger(st, wl)
	assert.Same(t, wl, l.Whitelist())

	l.Log(curlEvent())
	other := curlEvent()
	other.Dst = netip.MustParseAddrPort("93.184.216.34:80")
	l.Log(other)

	seq, _ := st.Next()
	assert.Equal(t, uint64(1), seq)
	m := l.Metrics()
	assert.Equal(t, uint64(2), m.Received)
	assert.Equal(t, uint64(1), m.Whitelisted)
	assert.Equal(t, uint64(1), m.Stored)
}
