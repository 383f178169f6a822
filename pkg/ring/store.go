package ring

import (
	"fmt"
	"sync"
	"time"

	"github.com/irctrakz/netlog/pkg/core"
	"github.com/irctrakz/netlog/pkg/logging"
	"github.com/irctrakz/netlog/pkg/record"
)

const (
	// DefaultCapacity is the arena size used when none is configured.
	DefaultCapacity = 1 << 20

	// MinCapacity is the smallest arena New accepts.
	MinCapacity = 256
)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the timestamp source. The function must not block or
// allocate; it is called on every append.
func WithClock(clock func() uint64) Option {
	return func(s *Store) { s.clock = clock }
}

// Store is the record arena and its positions. All fields below mu are
// guarded by it. Critical sections never allocate, log or block.
type Store struct {
	clock func() uint64
	gate  Gate

	mu  sync.Mutex
	buf []byte

	// oldest live record
	firstSeq uint64
	firstOff int

	// where the next record goes
	nextSeq uint64
	nextOff int

	// history is handed to the first cursor only
	historyTaken bool

	appends     uint64
	evictions   uint64
	wraps       uint64
	truncations uint64
}

// New allocates a store with a fixed arena of capacity bytes.
func New(capacity int, opts ...Option) (*Store, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("%w: %d < %d", ErrCapacity, capacity, MinCapacity)
	}
	start := time.Now()
	s := &Store{
		buf:   make([]byte, capacity),
		clock: func() uint64 { return uint64(time.Since(start)) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Capacity returns the arena size.
func (s *Store) Capacity() int { return len(s.buf) }

// Append stores ev, evicting the oldest records if needed, and wakes
// waiting readers. Paths longer than Capacity/16 are truncated. Append
// never fails and never blocks beyond the store's short critical section.
func (s *Store) Append(ev *core.Event) {
	pathLen, truncated := record.PathLen(len(ev.Path), len(s.buf))
	size := record.Size(pathLen)
	nsec := s.clock()

	s.mu.Lock()
	for s.firstSeq < s.nextSeq {
		if s.free() > size+record.LengthSize {
			break
		}
		s.firstOff = s.following(s.firstOff)
		s.firstSeq++
		s.evictions++
	}

	if s.nextOff+size+record.LengthSize >= len(s.buf) {
		// The free span is at the front of the arena.
		record.PutSentinel(s.buf[s.nextOff:])
		s.nextOff = 0
		s.wraps++
	}

	record.Put(s.buf[s.nextOff:], ev, nsec, pathLen, size)
	s.nextOff += size
	s.nextSeq++
	s.appends++
	if truncated {
		s.truncations++
	}
	s.mu.Unlock()

	s.gate.Broadcast()

	if truncated {
		logging.Limited("ring.truncate").Warnf("Truncating path of pid %d from %d to %d bytes", ev.PID, len(ev.Path), pathLen)
	}
}

// free returns the contiguous room ahead of the writer. When the writer is
// ahead of the oldest record the room is either the arena tail or the head
// up to the oldest record, whichever is larger; the write step wraps if it
// has to use the head.
func (s *Store) free() int {
	if s.nextOff > s.firstOff {
		return max(len(s.buf)-s.nextOff, s.firstOff)
	}
	return s.firstOff - s.nextOff
}

// resolve maps a record boundary to the record stored there, following a
// wrap sentinel to offset 0. off must hold a record or a sentinel.
func (s *Store) resolve(off int) int {
	if record.LengthAt(s.buf, off) == 0 {
		return 0
	}
	return off
}

// following returns the boundary after the record at off.
func (s *Store) following(off int) int {
	off = s.resolve(off)
	return off + record.LengthAt(s.buf, off)
}

// readAt returns the record at off and the boundary after it. The view
// aliases the arena and is only valid while mu is held.
func (s *Store) readAt(off int) (record.View, int) {
	off = s.resolve(off)
	v := record.Decode(s.buf, off)
	return v, off + v.Len()
}

// ReadAt copies the record at off into dst and returns it with the offset
// of the following record. off must be a live record boundary, such as one
// returned by First or a previous ReadAt.
func (s *Store) ReadAt(off int, dst []byte) (record.View, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, next := s.readAt(off)
	return record.View(append(dst[:0], v...)), next
}

// First returns the sequence number and offset of the oldest live record.
func (s *Store) First() (uint64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstSeq, s.firstOff
}

// Next returns the sequence number and offset the next record will get.
func (s *Store) Next() (uint64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq, s.nextOff
}

// Metrics returns a snapshot of the store's counters.
func (s *Store) Metrics() core.StoreMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := core.StoreMetrics{
		Capacity:    uint64(len(s.buf)),
		FirstSeq:    s.firstSeq,
		NextSeq:     s.nextSeq,
		Appends:     s.appends,
		Evictions:   s.evictions,
		Wraps:       s.wraps,
		Truncations: s.truncations,
	}
	if s.firstSeq < s.nextSeq {
		if s.nextOff > s.firstOff {
			m.UsedBytes = uint64(s.nextOff - s.firstOff)
		} else {
			m.UsedBytes = uint64(len(s.buf) - s.firstOff + s.nextOff)
		}
	}
	return m
}
