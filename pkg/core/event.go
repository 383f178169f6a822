package core

import (
	"net/netip"
)

// Action is the kind of socket operation an event records.
type Action uint8

// Actions understood by the log. Values are stored verbatim in records.
const (
	ActionUnknown Action = iota
	ActionConnect
	ActionAccept
	ActionClose
	ActionBind
)

func (a Action) String() string {
	switch a {
	case ActionConnect:
		return "connect"
	case ActionAccept:
		return "accept"
	case ActionClose:
		return "close"
	case ActionBind:
		return "bind"
	default:
		return "unknown"
	}
}

// Protocol is the transport protocol of an event.
type Protocol uint8

const (
	ProtoUnknown Protocol = iota
	ProtoTCP
	ProtoUDP
)

// String returns the tag used in formatted lines (TCP, UDP or UNK).
func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "TCP"
	case ProtoUDP:
		return "UDP"
	default:
		return "UNK"
	}
}

// Family is a socket address family, using the Linux AF_* numbering.
type Family uint16

const (
	FamilyUnspec Family = 0
	FamilyInet   Family = 2
	FamilyInet6  Family = 10
)

func (f Family) String() string {
	switch f {
	case FamilyInet:
		return "inet"
	case FamilyInet6:
		return "inet6"
	default:
		return "unknown"
	}
}

// FamilyOf returns the family matching addr, or FamilyUnspec for the zero Addr.
func FamilyOf(addr netip.Addr) Family {
	switch {
	case addr.Is4():
		return FamilyInet
	case addr.Is6():
		return FamilyInet6
	default:
		return FamilyUnspec
	}
}

// Event carries the fields of one connection event handed to the log.
//
// Src and Dst may be the zero value when not applicable (bind has no
// destination); they are then stored zero-filled. Addresses are interpreted
// according to Family, not according to their own form.
type Event struct {
	PID      int32
	UID      uint32
	Path     string
	Action   Action
	Protocol Protocol
	Family   Family
	Src      netip.AddrPort
	Dst      netip.AddrPort
}

// EventSink accepts connection events. Implementations must not block.
type EventSink interface {
	Log(ev *Event)
}
