package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/netlog/pkg/core"
)

// gather returns every sample keyed by family name plus label value.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestCollectorExportsAllSources(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := Register(reg, Sources{
		Store: func() core.StoreMetrics {
			return core.StoreMetrics{Capacity: 4096, UsedBytes: 176, FirstSeq: 2, NextSeq: 4, Appends: 4, Evictions: 2, Wraps: 1}
		},
		Readers: func() core.ReaderMetrics {
			return core.ReaderMetrics{OpenHandles: 3, Lines: 10, Bytes: 900, Overruns: 1}
		},
		Logger: func() core.LoggerMetrics {
			return core.LoggerMetrics{Received: 7, ProbeDisabled: 2, Whitelisted: 1, Stored: 4}
		},
		Capture: func() map[string]uint64 {
			return map[string]uint64{"eventsEmitted": 5, "queueFullDrops": 0}
		},
	})
	require.NoError(t, err)

	got := gather(t, reg)
	assert.Equal(t, 4096.0, got["netlog_store_capacity_bytes"])
	assert.Equal(t, 176.0, got["netlog_store_used_bytes"])
	assert.Equal(t, 2.0, got["netlog_store_evictions_total"])
	assert.Equal(t, 1.0, got["netlog_store_wraps_total"])
	assert.Equal(t, 3.0, got["netlog_reader_open_handles"])
	assert.Equal(t, 1.0, got["netlog_reader_errors_total{overrun}"])
	assert.Equal(t, 0.0, got["netlog_reader_errors_total{too_large}"])
	assert.Equal(t, 2.0, got["netlog_logger_filtered_total{probe_disabled}"])
	assert.Equal(t, 4.0, got["netlog_logger_stored_total"])
	assert.Equal(t, 5.0, got["netlog_capture_packets{eventsEmitted}"])
}

func TestCollectorSkipsMissingSources(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := Register(reg, Sources{
		Logger: func() core.LoggerMetrics { return core.LoggerMetrics{Received: 1} },
	})
	require.NoError(t, err)

	got := gather(t, reg)
	assert.Equal(t, 1.0, got["netlog_logger_received_total"])
	_, ok := got["netlog_store_capacity_bytes"]
	assert.False(t, ok)
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := Register(reg, Sources{})
	require.NoError(t, err)
	_, err = Register(reg, Sources{})
	assert.Error(t, err)
}
