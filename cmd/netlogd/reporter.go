package main

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"github.com/irctrakz/netlog/pkg/logging"
	"github.com/irctrakz/netlog/pkg/metrics"
)

type metricsSnapshot struct {
	Timestamp string            `json:"ts"`
	Store     map[string]uint64 `json:"store"`
	Readers   map[string]uint64 `json:"readers"`
	Logger    map[string]uint64 `json:"logger"`
	Capture   map[string]uint64 `json:"capture,omitempty"`
	RT        map[string]uint64 `json:"rt"`
}

// reporter periodically dumps counters to the process log.
type reporter struct {
	srcs   metrics.Sources
	format string

	// previous eviction count, for the per-interval delta
	lastEvictions uint64
}

func (r *reporter) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.dump()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *reporter) snapshot() metricsSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := metricsSnapshot{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RT: map[string]uint64{
			"heap_alloc": ms.HeapAlloc,
			"heap_inuse": ms.HeapInuse,
			"sys":        ms.Sys,
			"num_gc":     uint64(ms.NumGC),
			"goroutines": uint64(runtime.NumGoroutine()),
		},
	}
	if r.srcs.Store != nil {
		m := r.srcs.Store()
		delta := m.Evictions - r.lastEvictions
		r.lastEvictions = m.Evictions
		snap.Store = map[string]uint64{
			"capacity":        m.Capacity,
			"used":            m.UsedBytes,
			"first_seq":       m.FirstSeq,
			"next_seq":        m.NextSeq,
			"appends":         m.Appends,
			"evictions":       m.Evictions,
			"evictions_delta": delta,
			"wraps":           m.Wraps,
			"truncations":     m.Truncations,
		}
	}
	if r.srcs.Readers != nil {
		m := r.srcs.Readers()
		snap.Readers = map[string]uint64{
			"open":        m.OpenHandles,
			"lines":       m.Lines,
			"bytes":       m.Bytes,
			"overruns":    m.Overruns,
			"would_block": m.WouldBlock,
			"interrupted": m.Interrupted,
			"too_large":   m.TooLarge,
		}
	}
	if r.srcs.Logger != nil {
		m := r.srcs.Logger()
		snap.Logger = map[string]uint64{
			"received":       m.Received,
			"probe_disabled": m.ProbeDisabled,
			"whitelisted":    m.Whitelisted,
			"stored":         m.Stored,
		}
	}
	if r.srcs.Capture != nil {
		snap.Capture = r.srcs.Capture()
	}
	return snap
}

func (r *reporter) dump() {
	snap := r.snapshot()
	switch r.format {
	case "json":
		b, _ := json.Marshal(snap)
		logging.Infof("metrics: %s", string(b))
	default:
		logging.Infof("metrics: ts=%s | store: used=%d/%d seq=%d..%d app=%d evict=%d dE=%d wrap=%d trunc=%d | readers: open=%d lines=%d bytes=%d overrun=%d | logger: recv=%d probe=%d white=%d stored=%d | capture: emitted=%d qfd=%d | rt: heap=%dMi gor=%d gc=%d",
			snap.Timestamp,
			snap.Store["used"], snap.Store["capacity"],
			snap.Store["first_seq"], snap.Store["next_seq"],
			snap.Store["appends"], snap.Store["evictions"], snap.Store["evictions_delta"],
			snap.Store["wraps"], snap.Store["truncations"],
			snap.Readers["open"], snap.Readers["lines"], snap.Readers["bytes"], snap.Readers["overruns"],
			snap.Logger["received"], snap.Logger["probe_disabled"], snap.Logger["whitelisted"], snap.Logger["stored"],
			snap.Capture["eventsEmitted"], snap.Capture["queueFullDrops"],
			snap.RT["heap_alloc"]/(1024*1024), snap.RT["goroutines"], snap.RT["num_gc"],
		)
	}
}
