// Package ring implements the in-memory connection log: a fixed-size arena of
// variable-length records written by any number of non-blocking appenders and
// read through independent cursors.
//
// Appends never fail. When the arena is full the oldest records are evicted,
// and a cursor that pointed at an evicted record learns about it through
// ErrOverrun on its next read, after which it continues from the oldest live
// record. Records are chained by their length field; a zero length marks the
// point where the writer wrapped to offset 0.
//
//	st, _ := ring.New(ring.DefaultCapacity)
//	st.Append(&core.Event{...})
//
//	c := st.OpenCursor(record.DefaultHeader())
//	buf := make([]byte, 4096)
//	n, err := c.Read(ctx, buf)
package ring
