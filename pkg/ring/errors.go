package ring

import "errors"

var (
	// ErrCapacity is returned by New for an arena too small to hold a
	// maximum-length record.
	ErrCapacity = errors.New("ring: capacity too small")

	// ErrBadSeek is returned when Seek is given a non-zero offset.
	ErrBadSeek = errors.New("ring: only offset 0 is seekable")

	// ErrInvalidWhence is returned for an unknown seek origin.
	ErrInvalidWhence = errors.New("ring: invalid whence")

	// ErrWouldBlock is returned by a non-blocking read with nothing to read.
	ErrWouldBlock = errors.New("ring: read would block")

	// ErrInterrupted is returned when a wait is cut short by the caller's
	// context. It is wrapped together with the context's error.
	ErrInterrupted = errors.New("ring: wait interrupted")

	// ErrOverrun is returned when records were evicted before the cursor
	// reached them. The cursor has been moved to the oldest live record.
	ErrOverrun = errors.New("ring: records lost to overrun")

	// ErrLineTooLarge is returned when the formatted line does not fit in
	// the caller's buffer. The record is consumed.
	ErrLineTooLarge = errors.New("ring: line larger than buffer")

	// ErrCopyFailed is returned when the line could not be delivered.
	ErrCopyFailed = errors.New("ring: delivering line failed")
)
