package record

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/irctrakz/netlog/pkg/core"
)

func format(t *testing.T, ev *core.Event, nsec uint64) string {
	t.Helper()
	buf := make([]byte, 512)
	Put(buf, ev, nsec, len(ev.Path), Size(len(ev.Path)))
	return string(AppendLine(nil, Decode(buf, 0), DefaultHeader()))
}

func TestAppendLineConnect(t *testing.T) {
	ev := &core.Event{
		PID:      42,
		UID:      1000,
		Path:     "/usr/bin/curl",
		Action:   core.ActionConnect,
		Protocol: core.ProtoTCP,
		Family:   core.FamilyInet,
		Src:      netip.MustParseAddrPort("10.0.0.1:5000"),
		Dst:      netip.MustParseAddrPort("93.184.216.34:443"),
	}
	line := format(t, ev, 12_345_678_901)
	assert.Equal(t,
		"<14>1 - - netlog - - - [   12.345678]: /usr/bin/curl[42] TCP 10.0.0.1:5000 -> 93.184.216.34:443 (uid=1000)\n",
		line)
}

func TestAppendLineMarkers(t *testing.T) {
	base := core.Event{
		PID:      7,
		Path:     "/bin/x",
		Protocol: core.ProtoUDP,
		Family:   core.FamilyInet,
		Src:      netip.MustParseAddrPort("127.0.0.1:1"),
		Dst:      netip.MustParseAddrPort("127.0.0.2:2"),
	}
	cases := []struct {
		action core.Action
		want   string
	}{
		{core.ActionConnect, "UDP 127.0.0.1:1 -> 127.0.0.2:2 (uid=0)\n"},
		{core.ActionAccept, "UDP 127.0.0.1:1 <- 127.0.0.2:2 (uid=0)\n"},
		{core.ActionClose, "UDP 127.0.0.1:1 <!> 127.0.0.2:2 (uid=0)\n"},
		{core.ActionBind, "UDP 127.0.0.1:1 BIND (uid=0)\n"},
		{core.Action(77), "UDP 127.0.0.1:1 UNK (uid=0)\n"},
	}
	for _, tc := range cases {
		ev := base
		ev.Action = tc.action
		assert.Contains(t, format(t, &ev, 0), tc.want, "action %s", tc.action)
	}
}

func TestAppendLineIPv6Bracketed(t *testing.T) {
	ev := &core.Event{
		Path:     "/usr/bin/ssh",
		Action:   core.ActionConnect,
		Protocol: core.ProtoTCP,
		Family:   core.FamilyInet6,
		Src:      netip.MustParseAddrPort("[2001:db8::1]:40000"),
		Dst:      netip.MustParseAddrPort("[2001:db8:0:0:0:0:0:2]:22"),
	}
	assert.Contains(t, format(t, ev, 0), "TCP [2001:db8::1]:40000 -> [2001:db8::2]:22 ")
}

func TestAppendLineUnknownFamily(t *testing.T) {
	ev := &core.Event{Path: "/bin/y", Action: core.ActionClose, Protocol: core.Protocol(5), Family: core.Family(1)}
	assert.Contains(t, format(t, ev, 0), "/bin/y[0] UNK Unknown <!> Unknown (uid=0)\n")
}

func TestAppendLineTimestampPadding(t *testing.T) {
	ev := &core.Event{Path: "/p", Family: core.FamilyInet}
	assert.Contains(t, format(t, ev, 5_000), "[    0.000005]: ")
	assert.Contains(t, format(t, ev, 123456_999_999_999), "[123456.999999]: ")
}

func TestHeaderPriority(t *testing.T) {
	assert.Equal(t, 14, DefaultHeader().Priority())
	assert.Equal(t, 86, Header{Facility: 10, Level: 6}.Priority())
}
