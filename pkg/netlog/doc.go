// Package netlog is the boundary of the connection log.
//
// Instrumentation hands events to a Logger, which applies the probe mask and
// the allow-list before appending to the ring store. Readers go through a
// Device: each Open issues an opaque Handle owning a ring cursor, and Read,
// Seek, Poll and Close address the cursor through that handle.
//
// Only the first handle opened on a store sees the records already stored;
// later handles start at the current end.
package netlog
