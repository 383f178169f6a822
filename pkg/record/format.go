package record

import (
	"net/netip"
	"strconv"

	"github.com/irctrakz/netlog/pkg/core"
)

// Syslog header defaults.
const (
	DefaultFacility = 1 // user
	DefaultLevel    = 6 // info
	DefaultTag      = "netlog"
)

// Header holds the syslog parameters prefixed to every formatted line.
type Header struct {
	Facility int
	Level    int
	Tag      string
}

// DefaultHeader returns the header used when none is configured.
func DefaultHeader() Header {
	return Header{Facility: DefaultFacility, Level: DefaultLevel, Tag: DefaultTag}
}

// Priority returns the syslog PRI value.
func (h Header) Priority() int {
	return h.Facility<<3 | h.Level
}

// AppendLine formats v as one line terminated by '\n' and appends it to dst:
//
//	<pri>1 - - tag - - - [sssss.uuuuuu]: path[pid] PROTO src:port -> dst:port (uid=N)
//
// Bind and unknown actions print BIND/UNK and omit the destination.
func AppendLine(dst []byte, v View, h Header) []byte {
	dst = append(dst, '<')
	dst = strconv.AppendInt(dst, int64(h.Priority()), 10)
	dst = append(dst, ">1 - - "...)
	dst = append(dst, h.Tag...)
	dst = append(dst, " - - - ["...)

	nsec := v.Nsec()
	dst = appendPadded(dst, nsec/1e9, 5, ' ')
	dst = append(dst, '.')
	dst = appendPadded(dst, nsec%1e9/1e3, 6, '0')
	dst = append(dst, "]: "...)

	dst = append(dst, v.Path()...)
	dst = append(dst, '[')
	dst = strconv.AppendInt(dst, int64(v.PID()), 10)
	dst = append(dst, "] "...)
	dst = append(dst, v.Protocol().String()...)
	dst = append(dst, ' ')
	dst = appendEndpoint(dst, v.Family(), v.Src(), v.SrcPort())

	withDst := true
	switch v.Action() {
	case core.ActionConnect:
		dst = append(dst, " -> "...)
	case core.ActionAccept:
		dst = append(dst, " <- "...)
	case core.ActionClose:
		dst = append(dst, " <!> "...)
	case core.ActionBind:
		dst = append(dst, " BIND"...)
		withDst = false
	default:
		dst = append(dst, " UNK"...)
		withDst = false
	}
	if withDst {
		dst = appendEndpoint(dst, v.Family(), v.Dst(), v.DstPort())
	}

	dst = append(dst, " (uid="...)
	dst = strconv.AppendUint(dst, uint64(v.UID()), 10)
	dst = append(dst, ")\n"...)
	return dst
}

func appendEndpoint(dst []byte, family core.Family, addr netip.Addr, port int32) []byte {
	switch family {
	case core.FamilyInet:
		dst = addr.AppendTo(dst)
	case core.FamilyInet6:
		dst = append(dst, '[')
		dst = addr.AppendTo(dst)
		dst = append(dst, ']')
	default:
		return append(dst, "Unknown"...)
	}
	dst = append(dst, ':')
	return strconv.AppendInt(dst, int64(port), 10)
}

// appendPadded appends n right-aligned in a field of the given width.
func appendPadded(dst []byte, n uint64, width int, pad byte) []byte {
	var tmp [20]byte
	s := strconv.AppendUint(tmp[:0], n, 10)
	for i := len(s); i < width; i++ {
		dst = append(dst, pad)
	}
	return append(dst, s...)
}
