package netlog

import (
	"sync/atomic"

	"github.com/irctrakz/netlog/pkg/core"
	"github.com/irctrakz/netlog/pkg/filter"
	"github.com/irctrakz/netlog/pkg/ring"
)

// Logger is the single ingestion entry point. It drops events whose probe is
// disabled or that the allow-list covers, and appends the rest. Log never
// blocks and never fails.
type Logger struct {
	store     *ring.Store
	whitelist *filter.Whitelist
	probes    atomic.Uint32

	received      atomic.Uint64
	probeDisabled atomic.Uint64
	whitelisted   atomic.Uint64
	stored        atomic.Uint64
}

var _ core.EventSink = (*Logger)(nil)

// NewLogger returns a Logger with every probe enabled. whitelist may be nil.
func NewLogger(store *ring.Store, whitelist *filter.Whitelist) *Logger {
	l := &Logger{store: store, whitelist: whitelist}
	l.probes.Store(uint32(AllProbes))
	return l
}

// Log records ev unless it is filtered out. Events no probe covers are
// always recorded.
func (l *Logger) Log(ev *core.Event) {
	l.received.Add(1)
	if p, ok := ProbeFor(ev.Protocol, ev.Action); ok && !l.Enabled(p) {
		l.probeDisabled.Add(1)
		return
	}
	if l.whitelist != nil && l.whitelist.Match(ev) {
		l.whitelisted.Add(1)
		return
	}
	l.store.Append(ev)
	l.stored.Add(1)
}

// Probes returns the enabled probe set.
func (l *Logger) Probes() Probes { return Probes(l.probes.Load()) }

// SetProbes replaces the enabled probe set.
func (l *Logger) SetProbes(p Probes) { l.probes.Store(uint32(p & AllProbes)) }

// Enabled reports whether every probe in p is enabled.
func (l *Logger) Enabled(p Probes) bool { return l.Probes()&p == p }

// Enable turns on the probes in p.
func (l *Logger) Enable(p Probes) { l.probes.Or(uint32(p & AllProbes)) }

// Disable turns off the probes in p.
func (l *Logger) Disable(p Probes) { l.probes.And(^uint32(p)) }

// Whitelist returns the allow-list, which may be nil.
func (l *Logger) Whitelist() *filter.Whitelist { return l.whitelist }

// Metrics returns the logger's counters.
func (l *Logger) Metrics() core.LoggerMetrics {
	return core.LoggerMetrics{
		Received:      l.received.Load(),
		ProbeDisabled: l.probeDisabled.Load(),
		Whitelisted:   l.whitelisted.Load(),
		Stored:        l.stored.Load(),
	}
}
