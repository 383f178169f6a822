package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/irctrakz/netlog/pkg/core"
	"github.com/irctrakz/netlog/pkg/logging"
)

const (
	// DefaultSource is the path recorded for captured events.
	DefaultSource = "[capture]"

	defaultWorkers  = 4
	defaultQueueCap = 1000
)

// Options configures a Processor. Zero values select the defaults.
type Options struct {
	Workers  int
	QueueCap int
	Source   string

	// Dump, when set, receives every queued packet before decoding.
	Dump *PcapWriter
}

// Processor implements core.PacketProcessor. It decodes captured IP packets
// on a worker pool and hands connection events to a sink.
type Processor struct {
	sink   core.EventSink
	source string
	dump   *PcapWriter

	// Worker pool
	workerCount int
	packetCh    chan core.Packet
	stopCh      chan struct{}
	wg          sync.WaitGroup

	// Metrics
	packetsQueued  uint64
	packetsDropped uint64
	queueFullDrops uint64
	eventsEmitted  uint64
	packetsIgnored uint64
	decodeErrors   uint64
}

var _ core.PacketProcessor = (*Processor)(nil)

// NewProcessor creates a processor feeding sink.
func NewProcessor(sink core.EventSink, opts Options) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueCap <= 0 {
		opts.QueueCap = defaultQueueCap
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	return &Processor{
		sink:        sink,
		source:      opts.Source,
		dump:        opts.Dump,
		workerCount: opts.Workers,
		packetCh:    make(chan core.Packet, opts.QueueCap),
		stopCh:      make(chan struct{}),
	}
}

// Start starts the worker pool
func (p *Processor) Start() error {
	p.wg.Add(p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	logging.Infof("Capture processor started with %d workers", p.workerCount)
	return nil
}

// Stop stops the worker pool. Packets still queued are released unprocessed.
func (p *Processor) Stop() error {
	close(p.stopCh)
	p.wg.Wait()
	for {
		select {
		case packet := <-p.packetCh:
			core.ReleasePacket(packet)
		default:
			logging.Infof("Capture processor stopped")
			return nil
		}
	}
}

// ProcessPacket queues a packet for decoding. Packets that are not IPv4 or
// IPv6, or that arrive while the queue is full, are dropped with an error
// and left for the caller to release.
func (p *Processor) ProcessPacket(packet core.Packet) error {
	data := packet.Data()
	if len(data) == 0 {
		atomic.AddUint64(&p.packetsDropped, 1)
		return fmt.Errorf("packet too short")
	}
	switch ver := data[0] >> 4; ver {
	case 4, 6:
	default:
		atomic.AddUint64(&p.packetsDropped, 1)
		return fmt.Errorf("unsupported IP version: %d", ver)
	}

	select {
	case p.packetCh <- packet:
		atomic.AddUint64(&p.packetsQueued, 1)
	default:
		atomic.AddUint64(&p.packetsDropped, 1)
		atomic.AddUint64(&p.queueFullDrops, 1)
		return fmt.Errorf("packet dropped: worker pool is full")
	}
	return nil
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()

	logging.Debugf("Capture worker %d started", id)

	for {
		select {
		case <-p.stopCh:
			logging.Debugf("Capture worker %d stopped", id)
			return
		case packet := <-p.packetCh:
			if err := p.process(packet); err != nil {
				logging.Limited("capture.decode").Warnf("Capture worker %d: %v", id, err)
			}
		}
	}
}

func (p *Processor) process(packet core.Packet) error {
	defer core.ReleasePacket(packet)

	if p.dump != nil {
		if err := p.dump.WritePacket(packet.Data()); err != nil {
			logging.Limited("capture.pcap").Warnf("Pcap dump failed: %v", err)
		}
	}
	ev, ok, err := Decode(packet.Data())
	if err != nil {
		atomic.AddUint64(&p.decodeErrors, 1)
		return err
	}
	if !ok {
		atomic.AddUint64(&p.packetsIgnored, 1)
		return nil
	}
	ev.Path = p.source
	p.sink.Log(&ev)
	atomic.AddUint64(&p.eventsEmitted, 1)
	return nil
}

// Metrics returns the processor's counters.
func (p *Processor) Metrics() map[string]uint64 {
	return map[string]uint64{
		"packetsQueued":  atomic.LoadUint64(&p.packetsQueued),
		"packetsDropped": atomic.LoadUint64(&p.packetsDropped),
		"queueFullDrops": atomic.LoadUint64(&p.queueFullDrops),
		"eventsEmitted":  atomic.LoadUint64(&p.eventsEmitted),
		"packetsIgnored": atomic.LoadUint64(&p.packetsIgnored),
		"decodeErrors":   atomic.LoadUint64(&p.decodeErrors),
	}
}
