// Package filter holds the allow-list of connections that are not logged.
package filter

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/irctrakz/netlog/pkg/core"
)

// MaxEntries is the largest allow-list accepted.
const MaxEntries = 150

var ErrTooManyEntries = fmt.Errorf("filter: more than %d entries", MaxEntries)

// Entry suppresses events from one executable, optionally narrowed to a
// remote address and port.
type Entry struct {
	Path string
	Addr netip.Addr // zero matches any address
	Port uint16     // zero matches any port
}

// ParseEntry parses "<executable>[|i<ip>][|<port>]".
func ParseEntry(s string) (Entry, error) {
	parts := strings.Split(strings.TrimSpace(s), "|")
	e := Entry{Path: parts[0]}
	if e.Path == "" {
		return Entry{}, fmt.Errorf("filter: %q: empty executable", s)
	}
	if len(parts) > 3 {
		return Entry{}, fmt.Errorf("filter: %q: too many fields", s)
	}
	for _, p := range parts[1:] {
		switch {
		case strings.HasPrefix(p, "i"):
			if e.Addr.IsValid() {
				return Entry{}, fmt.Errorf("filter: %q: address given twice", s)
			}
			addr, err := netip.ParseAddr(p[1:])
			if err != nil {
				return Entry{}, fmt.Errorf("filter: %q: %w", s, err)
			}
			e.Addr = addr.Unmap()
		default:
			if e.Port != 0 {
				return Entry{}, fmt.Errorf("filter: %q: port given twice", s)
			}
			port, err := strconv.ParseUint(p, 10, 16)
			if err != nil || port == 0 {
				return Entry{}, fmt.Errorf("filter: %q: invalid port %q", s, p)
			}
			e.Port = uint16(port)
		}
	}
	return e, nil
}

// String renders the entry in the form ParseEntry accepts.
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if e.Addr.IsValid() {
		b.WriteString("|i")
		b.WriteString(e.Addr.String())
	}
	if e.Port != 0 {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(int(e.Port)))
	}
	return b.String()
}

// Match reports whether ev is covered by the entry.
func (e Entry) Match(ev *core.Event) bool {
	if ev.Path != e.Path {
		return false
	}
	if e.Addr.IsValid() && ev.Dst.Addr().Unmap() != e.Addr {
		return false
	}
	if e.Port != 0 && ev.Dst.Port() != e.Port {
		return false
	}
	return true
}

// Whitelist is a replaceable allow-list. Match is safe to call
// concurrently with Set and never blocks.
type Whitelist struct {
	entries atomic.Pointer[[]Entry]
}

// NewWhitelist builds a whitelist from entry strings.
func NewWhitelist(specs []string) (*Whitelist, error) {
	w := &Whitelist{}
	if err := w.SetEntries(specs); err != nil {
		return nil, err
	}
	return w, nil
}

// SetEntries replaces the list. On error the current list is kept.
func (w *Whitelist) SetEntries(specs []string) error {
	if len(specs) > MaxEntries {
		return ErrTooManyEntries
	}
	entries := make([]Entry, 0, len(specs))
	var errs []error
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		e, err := ParseEntry(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, e)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	w.entries.Store(&entries)
	return nil
}

// Set replaces the list from a comma-separated string.
func (w *Whitelist) Set(s string) error {
	return w.SetEntries(strings.Split(s, ","))
}

// Entries returns the current list.
func (w *Whitelist) Entries() []Entry {
	if p := w.entries.Load(); p != nil {
		return *p
	}
	return nil
}

// Match reports whether ev should be suppressed.
func (w *Whitelist) Match(ev *core.Event) bool {
	for _, e := range w.Entries() {
		if e.Match(ev) {
			return true
		}
	}
	return false
}

// String renders the list as a comma-separated string.
func (w *Whitelist) String() string {
	entries := w.Entries()
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}
