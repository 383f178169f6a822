package capture

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/netlog/pkg/core"
)

type recordingSink struct {
	mu     sync.Mutex
	events []core.Event
}

func (s *recordingSink) Log(ev *core.Event) {
	s.mu.Lock()
	s.events = append(s.events, *ev)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestProcessorEmitsEvents(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, Options{Workers: 2})
	require.NoError(t, p.Start())
	defer p.Stop()

	syn := ipv4Packet(protoTCP, "10.0.0.1", "10.0.0.2", tcpHeader(5000, 80, tcpSYN))
	ack := ipv4Packet(protoTCP, "10.0.0.1", "10.0.0.2", tcpHeader(5000, 80, tcpACK))
	require.NoError(t, p.ProcessPacket(core.NewPacket(syn)))
	require.NoError(t, p.ProcessPacket(core.NewPacket(ack)))

	require.Eventually(t, func() bool {
		m := p.Metrics()
		return m["eventsEmitted"]+m["packetsIgnored"] == 2
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, sink.count())
	assert.Equal(t, DefaultSource, sink.events[0].Path)
	assert.Equal(t, int32(0), sink.events[0].PID)
	assert.Equal(t, uint32(0), sink.events[0].UID)

	m := p.Metrics()
	assert.Equal(t, uint64(2), m["packetsQueued"])
	assert.Equal(t, uint64(1), m["eventsEmitted"])
	assert.Equal(t, uint64(1), m["packetsIgnored"])
	assert.Equal(t, uint64(0), m["packetsDropped"])
}

func TestProcessorCustomSource(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(sink, Options{Workers: 1, Source: "[tap0]"})
	require.NoError(t, p.Start())
	defer p.Stop()

	pkt := ipv4Packet(protoUDP, "10.0.0.1", "10.0.0.2", udpHeader(1, 53))
	require.NoError(t, p.ProcessPacket(core.NewPacket(pkt)))
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "[tap0]", sink.events[0].Path)
}

func TestProcessorRejectsInvalidPackets(t *testing.T) {
	p := NewProcessor(&recordingSink{}, Options{Workers: 1})
	require.NoError(t, p.Start())
	defer p.Stop()

	assert.Error(t, p.ProcessPacket(core.NewPacket(nil)))
	assert.Error(t, p.ProcessPacket(core.NewPacket([]byte{0x20, 0, 0, 0})))
	assert.Equal(t, uint64(2), p.Metrics()["packetsDropped"])
}

func TestProcessorCountsDecodeErrors(t *testing.T) {
	p := NewProcessor(&recordingSink{}, Options{Workers: 1})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.ProcessPacket(core.NewPacket([]byte{0x45, 0, 0})))
	require.Eventually(t, func() bool { return p.Metrics()["decodeErrors"] == 1 }, time.Second, 5*time.Millisecond)
}

func TestProcessorQueueFull(t *testing.T) {
	// Not started: nothing drains the queue.
	p := NewProcessor(&recordingSink{}, Options{Workers: 1, QueueCap: 1})
	pkt := ipv4Packet(protoUDP, "10.0.0.1", "10.0.0.2", udpHeader(1, 53))

	require.NoError(t, p.ProcessPacket(core.NewPacket(pkt)))
	assert.Error(t, p.ProcessPacket(core.NewPacket(pkt)))

	m := p.Metrics()
	assert.Equal(t, uint64(1), m["queueFullDrops"])
	assert.Equal(t, uint64(1), m["packetsDropped"])
}

func TestProcessorReleasesPooledPackets(t *testing.T) {
	p := NewProcessor(&recordingSink{}, Options{Workers: 1})
	require.NoError(t, p.Start())

	var mu sync.Mutex
	released := 0
	release := func([]byte) {
		mu.Lock()
		released++
		mu.Unlock()
	}
	pkt := ipv4Packet(protoUDP, "10.0.0.1", "10.0.0.2", udpHeader(1, 53))
	require.NoError(t, p.ProcessPacket(core.NewPooledPacket(pkt, release)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return released == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop())
}

func TestPoolSizeClasses(t *testing.T) {
	b := getBuf(100)
	assert.Len(t, b, 100)
	assert.Equal(t, bufSmall, cap(b))
	putBuf(b)

	assert.Equal(t, bufLarge, cap(getBuf(bufSmall+1)))
	assert.Equal(t, bufMax, cap(getBuf(bufMax)))
	assert.Equal(t, bufMax+1, cap(getBuf(bufMax+1)))
}

func TestListenRejectsProtocol(t *testing.T) {
	err := Listen(t.Context(), "icmp", NewProcessor(&recordingSink{}, Options{}))
	assert.ErrorIs(t, err, ErrProtocol)
}
