package ring

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/irctrakz/netlog/pkg/record"
)

// Mask is a poll readiness bitmask.
type Mask uint32

// Poll bits, with the meaning of their POLL* namesakes.
const (
	PollIn Mask = 1 << iota
	PollRdNorm
	PollErr
	PollPri
	PollNval
)

// lineBufSize is the initial capacity of a cursor's formatting buffer.
const lineBufSize = 8192

// Cursor is one reader's position in a Store. Its position is guarded by
// the store's lock; reads through the same cursor are serialized.
type Cursor struct {
	store  *Store
	header record.Header

	// serializes Read and ReadTo; a channel so acquiring it can be cancelled
	sem chan struct{}

	nonblock atomic.Bool

	// guarded by store.mu
	seq uint64
	off int

	// guarded by sem
	rec  []byte
	line []byte
}

// OpenCursor returns a cursor positioned at the oldest live record if no
// cursor has been opened on s before, and at the current end otherwise.
func (s *Store) OpenCursor(header record.Header) *Cursor {
	c := &Cursor{
		store:  s,
		header: header,
		sem:    make(chan struct{}, 1),
		rec:    make([]byte, 0, record.Size(record.MaxPathLen(len(s.buf)))),
		line:   make([]byte, 0, lineBufSize),
	}
	s.mu.Lock()
	if !s.historyTaken {
		c.seq, c.off = s.firstSeq, s.firstOff
		s.historyTaken = true
	} else {
		c.seq, c.off = s.nextSeq, s.nextOff
	}
	s.mu.Unlock()
	return c
}

// SetNonblock switches the cursor between blocking and non-blocking reads.
func (c *Cursor) SetNonblock(on bool) { c.nonblock.Store(on) }

// Nonblock reports whether reads fail with ErrWouldBlock instead of waiting.
func (c *Cursor) Nonblock() bool { return c.nonblock.Load() }

// Position returns the sequence number and offset of the next record the
// cursor will read.
func (c *Cursor) Position() (uint64, int) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.seq, c.off
}

// Seek repositions the cursor. Only offset 0 is accepted: io.SeekStart
// moves to the oldest live record, io.SeekEnd past the newest, and
// io.SeekCurrent leaves the cursor alone.
func (c *Cursor) Seek(offset int64, whence int) error {
	if offset != 0 {
		return ErrBadSeek
	}
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	switch whence {
	case io.SeekStart:
		c.seq, c.off = s.firstSeq, s.firstOff
	case io.SeekCurrent:
	case io.SeekEnd:
		c.seq, c.off = s.nextSeq, s.nextOff
	default:
		return fmt.Errorf("%w: %d", ErrInvalidWhence, whence)
	}
	return nil
}

// Poll reports readiness without blocking. PollIn|PollRdNorm means a record
// is waiting; PollErr|PollPri is added when records were lost since the
// cursor last read.
func (c *Cursor) Poll() Mask {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.seq >= s.nextSeq {
		return 0
	}
	if c.seq < s.firstSeq {
		return PollIn | PollRdNorm | PollErr | PollPri
	}
	return PollIn | PollRdNorm
}

// Ready returns a channel closed on the next append. Combined with Poll it
// lets callers multiplex cursors without blocking in Read.
func (c *Cursor) Ready() <-chan struct{} {
	return c.store.gate.Watch()
}

// Read formats the next record into p and returns the line length. It
// blocks until a record exists unless the cursor is non-blocking. A line
// that does not fit in p fails with ErrLineTooLarge; nothing is copied.
func (c *Cursor) Read(ctx context.Context, p []byte) (int, error) {
	if err := c.lock(ctx); err != nil {
		return 0, err
	}
	defer c.unlock()

	line, err := c.next(ctx)
	if err != nil {
		return 0, err
	}
	if len(line) > len(p) {
		return 0, fmt.Errorf("%w: %d > %d", ErrLineTooLarge, len(line), len(p))
	}
	return copy(p, line), nil
}

// ReadTo formats the next record and writes it to w in a single Write call.
// Lines longer than limit fail with ErrLineTooLarge; write errors are
// reported as ErrCopyFailed.
func (c *Cursor) ReadTo(ctx context.Context, w io.Writer, limit int) (int, error) {
	if err := c.lock(ctx); err != nil {
		return 0, err
	}
	defer c.unlock()

	line, err := c.next(ctx)
	if err != nil {
		return 0, err
	}
	if len(line) > limit {
		return 0, fmt.Errorf("%w: %d > %d", ErrLineTooLarge, len(line), limit)
	}
	n, err := w.Write(line)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}
	return n, nil
}

func (c *Cursor) lock(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
}

func (c *Cursor) unlock() { <-c.sem }

// next waits for a record, copies it out of the arena, advances the cursor
// and returns the formatted line. The line aliases the cursor's buffer.
func (c *Cursor) next(ctx context.Context) ([]byte, error) {
	s := c.store
	s.mu.Lock()
	for c.seq == s.nextSeq {
		if c.nonblock.Load() {
			s.mu.Unlock()
			return nil, ErrWouldBlock
		}
		// Watch before unlocking so an append in between still wakes us.
		wake := s.gate.Watch()
		s.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}
		s.mu.Lock()
	}

	if c.seq < s.firstSeq {
		lost := s.firstSeq - c.seq
		c.seq, c.off = s.firstSeq, s.firstOff
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d records", ErrOverrun, lost)
	}

	v, next := s.readAt(c.off)
	c.rec = append(c.rec[:0], v...)
	c.off = next
	c.seq++
	s.mu.Unlock()

	c.line = record.AppendLine(c.line[:0], record.View(c.rec), c.header)
	return c.line, nil
}
