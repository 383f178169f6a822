package netlog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/irctrakz/netlog/pkg/core"
)

// Probes is a set of enabled event sources, one bit per probe.
type Probes uint32

const (
	ProbeTCPConnect Probes = 1 << iota
	ProbeTCPAccept
	ProbeTCPClose
	ProbeUDPConnect
	ProbeUDPBind
	ProbeUDPClose

	AllProbes Probes = ProbeTCPConnect | ProbeTCPAccept | ProbeTCPClose |
		ProbeUDPConnect | ProbeUDPBind | ProbeUDPClose
)

var probeNames = []struct {
	probe Probes
	name  string
}{
	{ProbeTCPConnect, "tcp_connect"},
	{ProbeTCPAccept, "tcp_accept"},
	{ProbeTCPClose, "tcp_close"},
	{ProbeUDPConnect, "udp_connect"},
	{ProbeUDPBind, "udp_bind"},
	{ProbeUDPClose, "udp_close"},
}

// ProbeFor returns the probe that produces events of the given protocol and
// action. The second result is false for combinations no probe covers.
func ProbeFor(proto core.Protocol, action core.Action) (Probes, bool) {
	switch proto {
	case core.ProtoTCP:
		switch action {
		case core.ActionConnect:
			return ProbeTCPConnect, true
		case core.ActionAccept:
			return ProbeTCPAccept, true
		case core.ActionClose:
			return ProbeTCPClose, true
		}
	case core.ProtoUDP:
		switch action {
		case core.ActionConnect:
			return ProbeUDPConnect, true
		case core.ActionBind:
			return ProbeUDPBind, true
		case core.ActionClose:
			return ProbeUDPClose, true
		}
	}
	return 0, false
}

// ParseProbes accepts an integer mask ("63", "0x3f"), "all", "none", or a
// comma-separated list of probe names.
func ParseProbes(s string) (Probes, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "all":
		return AllProbes, nil
	case "", "none":
		return 0, nil
	}
	if n, err := strconv.ParseUint(s, 0, 32); err == nil {
		if Probes(n)&^AllProbes != 0 {
			return 0, fmt.Errorf("probes: mask %#x has unknown bits", n)
		}
		return Probes(n), nil
	}
	var p Probes
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		found := false
		for _, pn := range probeNames {
			if pn.name == name {
				p |= pn.probe
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("probes: unknown probe %q", name)
		}
	}
	return p, nil
}

// Names returns the names of the probes in p.
func (p Probes) Names() []string {
	var names []string
	for _, pn := range probeNames {
		if p&pn.probe != 0 {
			names = append(names, pn.name)
		}
	}
	return names
}

func (p Probes) String() string {
	if p == 0 {
		return "none"
	}
	return strings.Join(p.Names(), ",")
}
