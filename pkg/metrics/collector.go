// Package metrics exports the log engine's counters to Prometheus.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/irctrakz/netlog/pkg/core"
)

const namespace = "netlog"

// Sources are the snapshots the collector reads on every scrape. Nil
// sources are skipped.
type Sources struct {
	Store   func() core.StoreMetrics
	Readers func() core.ReaderMetrics
	Logger  func() core.LoggerMetrics
	Capture func() map[string]uint64
}

// Collector implements prometheus.Collector over Sources.
type Collector struct {
	src Sources

	capacity    *prometheus.Desc
	usedBytes   *prometheus.Desc
	firstSeq    *prometheus.Desc
	nextSeq     *prometheus.Desc
	appends     *prometheus.Desc
	evictions   *prometheus.Desc
	wraps       *prometheus.Desc
	truncations *prometheus.Desc

	openHandles *prometheus.Desc
	lines       *prometheus.Desc
	bytes       *prometheus.Desc
	readErrors  *prometheus.Desc

	received *prometheus.Desc
	filtered *prometheus.Desc
	stored   *prometheus.Desc

	capture *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func desc(subsystem, name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
}

// NewCollector creates a collector reading from src.
func NewCollector(src Sources) *Collector {
	return &Collector{
		src: src,

		capacity:    desc("store", "capacity_bytes", "Size of the record arena in bytes"),
		usedBytes:   desc("store", "used_bytes", "Arena bytes held by live records"),
		firstSeq:    desc("store", "first_seq", "Sequence number of the oldest live record"),
		nextSeq:     desc("store", "next_seq", "Sequence number the next record will receive"),
		appends:     desc("store", "appends_total", "Records appended"),
		evictions:   desc("store", "evictions_total", "Records evicted to make room"),
		wraps:       desc("store", "wraps_total", "Times the writer restarted at the arena start"),
		truncations: desc("store", "truncations_total", "Records whose path was shortened"),

		openHandles: desc("reader", "open_handles", "Reader handles currently open"),
		lines:       desc("reader", "lines_total", "Lines delivered to readers"),
		bytes:       desc("reader", "bytes_total", "Bytes delivered to readers"),
		readErrors:  desc("reader", "errors_total", "Reads that failed, by reason", "reason"),

		received: desc("logger", "received_total", "Events offered to the logger"),
		filtered: desc("logger", "filtered_total", "Events dropped before storage, by reason", "reason"),
		stored:   desc("logger", "stored_total", "Events appended to the store"),

		capture: desc("capture", "packets", "Capture processor counters", "counter"),
	}
}

// Register creates a collector for src and registers it with reg.
func Register(reg prometheus.Registerer, src Sources) (*Collector, error) {
	c := NewCollector(src)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.capacity, c.usedBytes, c.firstSeq, c.nextSeq,
		c.appends, c.evictions, c.wraps, c.truncations,
		c.openHandles, c.lines, c.bytes, c.readErrors,
		c.received, c.filtered, c.stored, c.capture,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	gauge := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), labels...)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	if c.src.Store != nil {
		m := c.src.Store()
		gauge(c.capacity, m.Capacity)
		gauge(c.usedBytes, m.UsedBytes)
		gauge(c.firstSeq, m.FirstSeq)
		gauge(c.nextSeq, m.NextSeq)
		counter(c.appends, m.Appends)
		counter(c.evictions, m.Evictions)
		counter(c.wraps, m.Wraps)
		counter(c.truncations, m.Truncations)
	}

	if c.src.Readers != nil {
		m := c.src.Readers()
		gauge(c.openHandles, m.OpenHandles)
		counter(c.lines, m.Lines)
		counter(c.bytes, m.Bytes)
		counter(c.readErrors, m.Overruns, "overrun")
		counter(c.readErrors, m.WouldBlock, "would_block")
		counter(c.readErrors, m.Interrupted, "interrupted")
		counter(c.readErrors, m.TooLarge, "too_large")
	}

	if c.src.Logger != nil {
		m := c.src.Logger()
		counter(c.received, m.Received)
		counter(c.filtered, m.ProbeDisabled, "probe_disabled")
		counter(c.filtered, m.Whitelisted, "whitelisted")
		counter(c.stored, m.Stored)
	}

	if c.src.Capture != nil {
		m := c.src.Capture()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			counter(c.capture, m[k], k)
		}
	}
}
