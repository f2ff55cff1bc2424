// Package stream owns per-stream byte reassembly and segmentation.
//
// Ownership boundary:
// - RangeBuf offset-tagged chunks
// - receive-side reorder buffer (RecvBuf)
// - send-side chunk buffer (SendBuf)
// - per-connection stream table and readable/writable views
//
// Nothing in this package locks. One connection drives one Table from a single
// control flow; callers sharing a connection across goroutines hold one lock
// around the whole connection.
package stream
