package core

// StoreMetrics contains counters and positions for a ring store.
type StoreMetrics struct {
	// Capacity is the size of the byte arena.
	Capacity uint64

	// UsedBytes is the number of arena bytes between the first live record and the write position.
	UsedBytes uint64

	// FirstSeq is the sequence number of the oldest live record.
	FirstSeq uint64

	// NextSeq is the sequence number the next record will receive.
	NextSeq uint64

	// Appends is the number of records appended.
	Appends uint64

	// Evictions is the number of records dropped to make room.
	Evictions uint64

	// Wraps is the number of times the writer restarted at offset 0.
	Wraps uint64

	// Truncations is the number of records whose path was shortened.
	Truncations uint64
}

// ReaderMetrics contains counters for the consumption side.
type ReaderMetrics struct {
	// OpenHandles is the number of handles currently open.
	OpenHandles uint64

	// Lines is the number of lines delivered to callers.
	Lines uint64

	// Bytes is the number of bytes delivered to callers.
	Bytes uint64

	// Overruns is the number of reads that reported lost data.
	Overruns uint64

	// WouldBlock is the number of non-blocking reads with nothing ready.
	WouldBlock uint64

	// Interrupted is the number of waits cut short by the caller.
	Interrupted uint64

	// TooLarge is the number of reads rejected for a short buffer.
	TooLarge uint64
}

// LoggerMetrics contains counters for the ingestion front.
type LoggerMetrics struct {
	// Received is the number of events offered to the logger.
	Received uint64

	// ProbeDisabled is the number of events dropped because their probe is off.
	ProbeDisabled uint64

	// Whitelisted is the number of events suppressed by the allow-list.
	Whitelisted uint64

	// Stored is the number of events appended to the store.
	Stored uint64
}
