package netlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/irctrakz/netlog/pkg/core"
	"github.com/irctrakz/netlog/pkg/logging"
	"github.com/irctrakz/netlog/pkg/record"
	"github.com/irctrakz/netlog/pkg/ring"
)

// ErrNotOpen is returned for a handle that was never opened or is closed.
var ErrNotOpen = errors.New("netlog: handle not open")

// Handle identifies an open reader.
type Handle uint64

// OpenFlag modifies how a handle behaves.
type OpenFlag uint32

const (
	// OpenNonblock makes reads fail with ring.ErrWouldBlock instead of waiting.
	OpenNonblock OpenFlag = 1 << iota
)

// Device hands out reader handles over a store. It is safe for concurrent
// use; reads on distinct handles proceed independently.
type Device struct {
	store  *ring.Store
	header record.Header

	mu      sync.Mutex
	lastID  Handle
	handles map[Handle]*ring.Cursor

	lines       atomic.Uint64
	bytes       atomic.Uint64
	overruns    atomic.Uint64
	wouldBlock  atomic.Uint64
	interrupted atomic.Uint64
	tooLarge    atomic.Uint64
}

// NewDevice returns a device formatting lines with header.
func NewDevice(store *ring.Store, header record.Header) *Device {
	return &Device{
		store:   store,
		header:  header,
		handles: make(map[Handle]*ring.Cursor),
	}
}

// Store returns the underlying store.
func (d *Device) Store() *ring.Store { return d.store }

// Open creates a reader. The first reader ever opened on the store starts
// at the oldest stored record; every later one starts at the end.
func (d *Device) Open(flags OpenFlag) Handle {
	c := d.store.OpenCursor(d.header)
	c.SetNonblock(flags&OpenNonblock != 0)

	d.mu.Lock()
	d.lastID++
	h := d.lastID
	d.handles[h] = c
	d.mu.Unlock()

	seq, _ := c.Position()
	logging.WithFields(logrus.Fields{"handle": uint64(h), "seq": seq}).Debug("Reader opened")
	return h
}

// Close releases a reader.
func (d *Device) Close(h Handle) error {
	d.mu.Lock()
	_, ok := d.handles[h]
	delete(d.handles, h)
	d.mu.Unlock()
	if !ok {
		return ErrNotOpen
	}
	logging.WithFields(logrus.Fields{"handle": uint64(h)}).Debug("Reader closed")
	return nil
}

func (d *Device) cursor(h Handle) (*ring.Cursor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.handles[h]
	if !ok {
		return nil, ErrNotOpen
	}
	return c, nil
}

// Read copies the next formatted line into p. See ring.Cursor.Read.
func (d *Device) Read(ctx context.Context, h Handle, p []byte) (int, error) {
	c, err := d.cursor(h)
	if err != nil {
		return 0, err
	}
	n, err := c.Read(ctx, p)
	return n, d.account(h, n, err)
}

// ReadTo writes the next formatted line to w. See ring.Cursor.ReadTo.
func (d *Device) ReadTo(ctx context.Context, h Handle, w io.Writer, limit int) (int, error) {
	c, err := d.cursor(h)
	if err != nil {
		return 0, err
	}
	n, err := c.ReadTo(ctx, w, limit)
	return n, d.account(h, n, err)
}

func (d *Device) account(h Handle, n int, err error) error {
	switch {
	case err == nil:
		d.lines.Add(1)
		d.bytes.Add(uint64(n))
		return nil
	case errors.Is(err, ring.ErrOverrun):
		d.overruns.Add(1)
		logging.Limited("netlog.overrun").Warnf("Reader %d overrun: %v", h, err)
	case errors.Is(err, ring.ErrWouldBlock):
		d.wouldBlock.Add(1)
	case errors.Is(err, ring.ErrInterrupted):
		d.interrupted.Add(1)
	case errors.Is(err, ring.ErrLineTooLarge):
		d.tooLarge.Add(1)
	}
	return fmt.Errorf("handle %d: %w", h, err)
}

// Seek repositions a reader. Only offset 0 is accepted.
func (d *Device) Seek(h Handle, offset int64, whence int) error {
	c, err := d.cursor(h)
	if err != nil {
		return err
	}
	return c.Seek(offset, whence)
}

// Poll reports a reader's readiness. Unknown handles report
// PollErr|PollNval.
func (d *Device) Poll(h Handle) ring.Mask {
	c, err := d.cursor(h)
	if err != nil {
		return ring.PollErr | ring.PollNval
	}
	return c.Poll()
}

// Ready returns a channel closed by the next append, for callers that
// multiplex handles with Poll.
func (d *Device) Ready(h Handle) (<-chan struct{}, error) {
	c, err := d.cursor(h)
	if err != nil {
		return nil, err
	}
	return c.Ready(), nil
}

// SetNonblock switches a reader between blocking and non-blocking reads.
func (d *Device) SetNonblock(h Handle, on bool) error {
	c, err := d.cursor(h)
	if err != nil {
		return err
	}
	c.SetNonblock(on)
	return nil
}

// Metrics returns the device's counters.
func (d *Device) Metrics() core.ReaderMetrics {
	d.mu.Lock()
	open := uint64(len(d.handles))
	d.mu.Unlock()
	return core.ReaderMetrics{
		OpenHandles: open,
		Lines:       d.lines.Load(),
		Bytes:       d.bytes.Load(),
		Overruns:    d.overruns.Load(),
		WouldBlock:  d.wouldBlock.Load(),
		Interrupted: d.interrupted.Load(),
		TooLarge:    d.tooLarge.Load(),
	}
}
