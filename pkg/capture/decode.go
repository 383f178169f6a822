package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/irctrakz/netlog/pkg/core"
)

const (
	protoTCP = 6
	protoUDP = 17

	tcpMinHeaderSize = 20
	udpHeaderSize    = 8

	tcpFIN = 0x01
	tcpSYN = 0x02
	tcpRST = 0x04
	tcpACK = 0x10
)

// ErrTruncated is returned for packets shorter than their headers claim.
var ErrTruncated = errors.New("capture: truncated packet")

// Decode turns one IP packet into a connection event. The boolean is false
// for packets that carry no connection transition (plain TCP data, other
// protocols). Src is the packet's sender and Dst its receiver; Path, PID
// and UID are left for the caller.
func Decode(data []byte) (core.Event, bool, error) {
	if len(data) == 0 {
		return core.Event{}, false, ErrTruncated
	}
	var (
		proto    int
		src, dst netip.Addr
		payload  []byte
	)
	switch data[0] >> 4 {
	case 4:
		h, err := ipv4.ParseHeader(data)
		if err != nil {
			return core.Event{}, false, fmt.Errorf("capture: ipv4 header: %w", err)
		}
		end := len(data)
		if h.TotalLen >= h.Len && h.TotalLen < end {
			end = h.TotalLen
		}
		if h.Len > end {
			return core.Event{}, false, ErrTruncated
		}
		// Only the first fragment carries the transport header.
		if h.FragOff != 0 {
			return core.Event{}, false, nil
		}
		proto, payload = h.Protocol, data[h.Len:end]
		src, dst = addrOf4(h.Src), addrOf4(h.Dst)
	case 6:
		h, err := ipv6.ParseHeader(data)
		if err != nil {
			return core.Event{}, false, fmt.Errorf("capture: ipv6 header: %w", err)
		}
		end := ipv6.HeaderLen + h.PayloadLen
		if end > len(data) {
			end = len(data)
		}
		proto, payload = h.NextHeader, data[ipv6.HeaderLen:end]
		src, dst = netip.AddrFrom16([16]byte(h.Src)), netip.AddrFrom16([16]byte(h.Dst))
	default:
		return core.Event{}, false, fmt.Errorf("capture: unsupported IP version %d", data[0]>>4)
	}

	ev := core.Event{Family: core.FamilyOf(src)}
	switch proto {
	case protoTCP:
		if len(payload) < tcpMinHeaderSize {
			return core.Event{}, false, ErrTruncated
		}
		flags := payload[13]
		switch {
		case flags&tcpRST != 0, flags&tcpFIN != 0:
			ev.Action = core.ActionClose
		case flags&tcpSYN != 0 && flags&tcpACK != 0:
			ev.Action = core.ActionAccept
		case flags&tcpSYN != 0:
			ev.Action = core.ActionConnect
		default:
			return core.Event{}, false, nil
		}
		ev.Protocol = core.ProtoTCP
	case protoUDP:
		if len(payload) < udpHeaderSize {
			return core.Event{}, false, ErrTruncated
		}
		ev.Action = core.ActionConnect
		ev.Protocol = core.ProtoUDP
	default:
		return core.Event{}, false, nil
	}
	ev.Src = netip.AddrPortFrom(src, binary.BigEndian.Uint16(payload[0:2]))
	ev.Dst = netip.AddrPortFrom(dst, binary.BigEndian.Uint16(payload[2:4]))
	return ev, true, nil
}

func addrOf4(ip net.IP) netip.Addr {
	if v4 := ip.To4(); v4 != nil {
		return netip.AddrFrom4([4]byte(v4))
	}
	return netip.Addr{}
}
