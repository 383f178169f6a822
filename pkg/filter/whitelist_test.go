package filter

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/netlog/pkg/core"
)

func TestParseEntry(t *testing.T) {
	cases := []struct {
		in   string
		want Entry
	}{
		{"/usr/bin/ssh", Entry{Path: "/usr/bin/ssh"}},
		{"/usr/bin/ssh|i10.0.0.1", Entry{Path: "/usr/bin/ssh", Addr: netip.MustParseAddr("10.0.0.1")}},
		{"/usr/bin/ssh|22", Entry{Path: "/usr/bin/ssh", Port: 22}},
		{"/usr/bin/ssh|i2001:db8::1|22", Entry{Path: "/usr/bin/ssh", Addr: netip.MustParseAddr("2001:db8::1"), Port: 22}},
		{" /bin/nc|i::ffff:1.2.3.4 ", Entry{Path: "/bin/nc", Addr: netip.MustParseAddr("1.2.3.4")}},
	}
	for _, tc := range cases {
		got, err := ParseEntry(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseEntryErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"|22",
		"/bin/x|ifoo",
		"/bin/x|70000",
		"/bin/x|0",
		"/bin/x|22|23",
		"/bin/x|i1.1.1.1|i2.2.2.2",
		"/bin/x|i1.1.1.1|22|x",
	} {
		_, err := ParseEntry(in)
		assert.Error(t, err, "%q", in)
	}
}

func TestEntryStringRoundTrip(t *testing.T) {
	for _, in := range []string{"/bin/x", "/bin/x|i10.1.2.3", "/bin/x|443", "/bin/x|i::1|53"} {
		e, err := ParseEntry(in)
		require.NoError(t, err)
		assert.Equal(t, in, e.String())
	}
}

func TestWhitelistMatch(t *testing.T) {
	w, err := NewWhitelist([]string{"/usr/bin/curl|i93.184.216.34|443", "/usr/sbin/ntpd"})
	require.NoError(t, err)

	curl := &core.Event{
		Path:   "/usr/bin/curl",
		Family: core.FamilyInet,
		Dst:    netip.MustParseAddrPort("93.184.216.34:443"),
	}
	assert.True(t, w.Match(curl))

	other := *curl
	other.Dst = netip.MustParseAddrPort("93.184.216.34:80")
	assert.False(t, w.Match(&other))

	other.Dst = netip.MustParseAddrPort("1.1.1.1:443")
	assert.False(t, w.Match(&other))

	assert.True(t, w.Match(&core.Event{Path: "/usr/sbin/ntpd", Dst: netip.MustParseAddrPort("1.2.3.4:123")}))
	assert.False(t, w.Match(&core.Event{Path: "/usr/sbin/ntpdate"}))
}

func TestWhitelistSetKeepsOldListOnError(t *testing.T) {
	w, err := NewWhitelist(nil)
	require.NoError(t, err)
	assert.Empty(t, w.Entries())
	assert.False(t, w.Match(&core.Event{Path: "/bin/x"}))

	require.NoError(t, w.Set("/bin/x,/bin/y|53"))
	assert.Len(t, w.Entries(), 2)
	assert.Equal(t, "/bin/x,/bin/y|53", w.String())

	assert.Error(t, w.Set("/bin/z,|bad"))
	assert.Equal(t, "/bin/x,/bin/y|53", w.String())

	many := strings.Split(strings.Repeat("/bin/a,", MaxEntries+1), ",")
	assert.ErrorIs(t, w.SetEntries(many[:MaxEntries+1]), ErrTooManyEntries)
}
