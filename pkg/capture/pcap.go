package capture

import (
	"encoding/binary"
	"io"
	"sync"
	"time"
)

const (
	pcapMagic    = 0xa1b2c3d4
	pcapSnapLen  = 65535
	linkTypeRaw  = 101
	pcapHdrSize  = 24
	pcapRecHdrSz = 16
)

// PcapWriter records captured packets in pcap format (LINKTYPE_RAW), so a
// run can be replayed with standard tools. It is safe for concurrent use.
type PcapWriter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
	hdr [pcapRecHdrSz]byte
}

// NewPcapWriter writes the pcap global header to w.
func NewPcapWriter(w io.Writer) (*PcapWriter, error) {
	var hdr [pcapHdrSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], pcapMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], 2)
	binary.LittleEndian.PutUint16(hdr[6:8], 4)
	// thiszone and sigfigs stay zero
	binary.LittleEndian.PutUint32(hdr[16:20], pcapSnapLen)
	binary.LittleEndian.PutUint32(hdr[20:24], linkTypeRaw)
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, err
	}
	return &PcapWriter{w: w, now: time.Now}, nil
}

// WritePacket appends one IP packet, truncated to the snap length.
func (p *PcapWriter) WritePacket(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	incl := b
	if len(incl) > pcapSnapLen {
		incl = incl[:pcapSnapLen]
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	binary.LittleEndian.PutUint32(p.hdr[0:4], uint32(now.Unix()))
	binary.LittleEndian.PutUint32(p.hdr[4:8], uint32(now.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(p.hdr[8:12], uint32(len(incl)))
	binary.LittleEndian.PutUint32(p.hdr[12:16], uint32(len(b)))
	if _, err := p.w.Write(p.hdr[:]); err != nil {
		return err
	}
	_, err := p.w.Write(incl)
	return err
}
