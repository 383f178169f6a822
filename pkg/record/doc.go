// Package record defines the in-arena layout of one logged connection event.
//
// A record is a fixed header followed by the executable path:
//
//	off  size  field
//	  0     8  total length (header + path + terminator + padding)
//	  8     8  path length
//	 16     8  timestamp, monotonic nanoseconds
//	 24     4  pid
//	 28     4  uid
//	 32     1  action
//	 33     1  protocol
//	 34     2  address family
//	 36     4  source port
//	 40     4  destination port
//	 44    16  destination address
//	 60    16  source address
//	 80     n  path bytes
//
// Total length is rounded up to Align. A zero total length at a record
// boundary is a wrap sentinel: the writer continued at offset 0. Fields use
// the host byte order since records never leave the process.
package record
