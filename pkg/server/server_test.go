package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/netlog/pkg/core"
	"github.com/irctrakz/netlog/pkg/metrics"
	"github.com/irctrakz/netlog/pkg/netlog"
	"github.com/irctrakz/netlog/pkg/record"
	"github.com/irctrakz/netlog/pkg/ring"
)

func connectEvent(pid int32) *core.Event {
	return &core.Event{
		PID:      pid,
		UID:      1000,
		Path:     "/usr/bin/curl",
		Action:   core.ActionConnect,
		Protocol: core.ProtoTCP,
		Family:   core.FamilyInet,
		Src:      netip.MustParseAddrPort("10.0.0.1:5000"),
		Dst:      netip.MustParseAddrPort("93.184.216.34:443"),
	}
}

func newDevice(t *testing.T, capacity int) (*netlog.Device, *netlog.Logger) {
	t.Helper()
	st, err := ring.New(capacity)
	require.NoError(t, err)
	return netlog.NewDevice(st, record.DefaultHeader()), netlog.NewLogger(st, nil)
}

func TestLogStreamFromStart(t *testing.T) {
	dev, l := newDevice(t, 64*1024)
	// Claim the history so the stream relies on from=start.
	_ = dev.Open(0)
	l.Log(connectEvent(1))
	l.Log(connectEvent(2))

	ts := httptest.NewServer(New(dev, Options{}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/log?from=start", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

	br := bufio.NewReader(resp.Body)
	for _, want := range []string{"/usr/bin/curl[1]", "/usr/bin/curl[2]"} {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		assert.Contains(t, line, want)
	}

	l.Log(connectEvent(3))
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "/usr/bin/curl[3] TCP 10.0.0.1:5000 -> 93.184.216.34:443 (uid=1000)")

	cancel()
	require.Eventually(t, func() bool { return dev.Metrics().OpenHandles == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestLogStreamFromEnd(t *testing.T) {
	dev, l := newDevice(t, 64*1024)
	l.Log(connectEvent(1))

	ts := httptest.NewServer(New(dev, Options{}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/log?from=end", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The handler is streaming once headers arrive; only new records follow.
	l.Log(connectEvent(2))
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "/usr/bin/curl[2]")
}

func TestLogStreamRejectsBadFrom(t *testing.T) {
	dev, _ := newDevice(t, 4096)
	rec := httptest.NewRecorder()
	New(dev, Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/log?from=middle", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uint64(0), dev.Metrics().OpenHandles)
}

func TestLogStreamMethodNotAllowed(t *testing.T) {
	dev, _ := newDevice(t, 4096)
	rec := httptest.NewRecorder()
	New(dev, Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/log", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// gatedWriter blocks every Write until gate is closed.
type gatedWriter struct {
	header  http.Header
	gate    chan struct{}
	entered chan struct{}

	mu  sync.Mutex
	buf bytes.Buffer
}

func newGatedWriter() *gatedWriter {
	return &gatedWriter{
		header:  make(http.Header),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
}

func (g *gatedWriter) Header() http.Header { return g.header }
func (g *gatedWriter) WriteHeader(int)     {}
func (g *gatedWriter) Flush()              {}

func (g *gatedWriter) Write(p []byte) (int, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.Write(p)
}

func (g *gatedWriter) String() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.String()
}

func TestLogStreamReportsOverrun(t *testing.T) {
	dev, l := newDevice(t, ring.MinCapacity)
	l.Log(connectEvent(1))

	gw := newGatedWriter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/log?from=start", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		New(dev, Options{}).ServeHTTP(gw, req)
		close(done)
	}()

	select {
	case <-gw.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never wrote")
	}
	for pid := int32(2); pid <= 10; pid++ {
		l.Log(connectEvent(pid))
	}
	close(gw.gate)

	require.Eventually(t, func() bool {
		return strings.Contains(gw.String(), "/usr/bin/curl[10]")
	}, 2*time.Second, 10*time.Millisecond)

	lines := strings.Split(strings.TrimSuffix(gw.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "/usr/bin/curl[1]")
	assert.Equal(t, strings.TrimSuffix(overrunLine, "\n"), lines[1])

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after cancel")
	}
	assert.Equal(t, uint64(0), dev.Metrics().OpenHandles)
}

func TestHealth(t *testing.T) {
	dev, l := newDevice(t, 4096)
	l.Log(connectEvent(1))

	rec := httptest.NewRecorder()
	New(dev, Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 1.0, body["next_seq"])
}

func TestMetricsEndpoint(t *testing.T) {
	dev, l := newDevice(t, 4096)
	l.Log(connectEvent(1))

	reg := prometheus.NewRegistry()
	_, err := metrics.Register(reg, metrics.Sources{
		Store:   dev.Store().Metrics,
		Readers: dev.Metrics,
		Logger:  l.Metrics,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(New(dev, Options{Gatherer: reg}))
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "netlog_store_appends_total 1")
	assert.Contains(t, string(body), "netlog_logger_stored_total 1")
}

func TestMetricsEndpointDisabled(t *testing.T) {
	dev, _ := newDevice(t, 4096)
	rec := httptest.NewRecorder()
	New(dev, Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
