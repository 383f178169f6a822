package core

// Packet represents a captured network packet
type Packet interface {
	// Data returns the packet data. Callers must not modify it.
	Data() []byte

	// Length returns the packet length
	Length() int
}

// PacketProcessor consumes captured packets
type PacketProcessor interface {
	// ProcessPacket processes one packet. It must not retain the packet
	// after ReleasePacket has been called on it.
	ProcessPacket(packet Packet) error
}

// pooledPacket is a Packet backed by a reusable buffer. When processing of
// the packet completes, ReleasePacket returns the buffer to its pool.
type pooledPacket struct {
	data     []byte
	releaser func([]byte)
}

// NewPooledPacket wraps an existing byte slice as a Packet with an optional
// releaser. The releaser may be nil. Do not mutate data after passing it in.
func NewPooledPacket(data []byte, releaser func([]byte)) Packet {
	if data == nil {
		data = make([]byte, 0)
	}
	return &pooledPacket{data: data, releaser: releaser}
}

func (p *pooledPacket) Data() []byte { return p.data }
func (p *pooledPacket) Length() int  { return len(p.data) }

// ReleasePacket returns a packet's underlying buffer to its pool if it was
// created via NewPooledPacket with a releaser. Releasing twice is a no-op.
func ReleasePacket(p Packet) {
	if pp, ok := p.(*pooledPacket); ok {
		if pp.releaser != nil && len(pp.data) > 0 {
			pp.releaser(pp.data)
			pp.data = nil
			pp.releaser = nil
		}
	}
}

// SimplePacket is a Packet that owns a private copy of its bytes
type SimplePacket struct {
	data []byte
}

// NewPacket copies data into a new packet.
func NewPacket(data []byte) Packet {
	return &SimplePacket{data: append([]byte(nil), data...)}
}

// Data returns the packet data
func (p *SimplePacket) Data() []byte {
	return p.data
}

// Length returns the packet length
func (p *SimplePacket) Length() int {
	return len(p.data)
}
