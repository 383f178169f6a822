package record

import (
	"encoding/binary"
	"math"
	"net/netip"

	"github.com/irctrakz/netlog/pkg/core"
)

const (
	// HeaderSize is the size of the fixed part of a record.
	HeaderSize = 80

	// Align is the alignment every record length is rounded up to.
	Align = 8

	// LengthSize is the size of the leading length field, and therefore of a
	// wrap sentinel.
	LengthSize = 8

	// AddrSize is the room reserved for each address.
	AddrSize = 16
)

const (
	offLen      = 0
	offPathLen  = 8
	offNsec     = 16
	offPID      = 24
	offUID      = 28
	offAction   = 32
	offProtocol = 33
	offFamily   = 34
	offSrcPort  = 36
	offDstPort  = 40
	offDst      = 44
	offSrc      = 60
)

var order = binary.NativeEndian

// MaxPathLen returns the longest path a store of the given capacity keeps.
// Anything longer could not coexist with other records.
func MaxPathLen(capacity int) int {
	n := capacity >> 4
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return n
}

// PathLen bounds pathLen for a store of the given capacity. The second
// result reports whether the path has to be truncated.
func PathLen(pathLen, capacity int) (int, bool) {
	if limit := MaxPathLen(capacity); pathLen > limit {
		return limit, true
	}
	return pathLen, false
}

// Size returns the aligned total length of a record holding pathLen path bytes.
func Size(pathLen int) int {
	n := HeaderSize + pathLen + 1
	return n + (-n & (Align - 1))
}

// Put serializes ev into dst, which must be at least size bytes long.
// Only the first pathLen bytes of ev.Path are stored. Put does not allocate.
func Put(dst []byte, ev *core.Event, nsec uint64, pathLen, size int) {
	dst = dst[:size]
	order.PutUint64(dst[offLen:], uint64(size))
	order.PutUint64(dst[offPathLen:], uint64(pathLen))
	order.PutUint64(dst[offNsec:], nsec)
	order.PutUint32(dst[offPID:], uint32(ev.PID))
	order.PutUint32(dst[offUID:], ev.UID)
	dst[offAction] = byte(ev.Action)
	dst[offProtocol] = byte(ev.Protocol)
	order.PutUint16(dst[offFamily:], uint16(ev.Family))
	order.PutUint32(dst[offSrcPort:], uint32(int32(ev.Src.Port())))
	order.PutUint32(dst[offDstPort:], uint32(int32(ev.Dst.Port())))
	putAddr(dst[offSrc:offSrc+AddrSize], ev.Src.Addr(), ev.Family)
	putAddr(dst[offDst:offDst+AddrSize], ev.Dst.Addr(), ev.Family)
	n := copy(dst[HeaderSize:HeaderSize+pathLen], ev.Path)
	dst[HeaderSize+n] = 0
}

func putAddr(dst []byte, addr netip.Addr, family core.Family) {
	clear(dst)
	if !addr.IsValid() {
		return
	}
	switch family {
	case core.FamilyInet:
		if addr.Is4() || addr.Is4In6() {
			a := addr.Unmap().As4()
			copy(dst, a[:])
		}
	case core.FamilyInet6:
		a := addr.As16()
		copy(dst, a[:])
	}
}

// PutSentinel writes a wrap sentinel at the start of dst.
func PutSentinel(dst []byte) {
	order.PutUint64(dst[offLen:], 0)
}

// LengthAt returns the length field stored at off in buf.
func LengthAt(buf []byte, off int) int {
	return int(order.Uint64(buf[off+offLen:]))
}

// View is a zero-copy window over one stored record.
type View []byte

// Len returns the record's total length.
func (v View) Len() int { return int(order.Uint64(v[offLen:])) }

// IsSentinel reports whether v is a wrap sentinel rather than a record.
func (v View) IsSentinel() bool { return v.Len() == 0 }

func (v View) PathLen() int            { return int(order.Uint64(v[offPathLen:])) }
func (v View) Nsec() uint64            { return order.Uint64(v[offNsec:]) }
func (v View) PID() int32              { return int32(order.Uint32(v[offPID:])) }
func (v View) UID() uint32             { return order.Uint32(v[offUID:]) }
func (v View) Action() core.Action     { return core.Action(v[offAction]) }
func (v View) Protocol() core.Protocol { return core.Protocol(v[offProtocol]) }
func (v View) Family() core.Family     { return core.Family(order.Uint16(v[offFamily:])) }
func (v View) SrcPort() int32          { return int32(order.Uint32(v[offSrcPort:])) }
func (v View) DstPort() int32          { return int32(order.Uint32(v[offDstPort:])) }

// Path returns the stored path bytes. The slice aliases the arena.
func (v View) Path() []byte {
	return v[HeaderSize : HeaderSize+v.PathLen()]
}

// Src returns the source address interpreted per the record's family.
func (v View) Src() netip.Addr { return v.addr(offSrc) }

// Dst returns the destination address interpreted per the record's family.
func (v View) Dst() netip.Addr { return v.addr(offDst) }

func (v View) addr(off int) netip.Addr {
	switch v.Family() {
	case core.FamilyInet:
		return netip.AddrFrom4([4]byte(v[off : off+4]))
	case core.FamilyInet6:
		return netip.AddrFrom16([16]byte(v[off : off+AddrSize]))
	default:
		return netip.Addr{}
	}
}

// Decode returns a view of the record starting at off in buf. It does not
// validate the record; callers only decode offsets known to hold one.
func Decode(buf []byte, off int) View {
	n := LengthAt(buf, off)
	if n == 0 {
		return View(buf[off : off+LengthSize])
	}
	return View(buf[off : off+n])
}
