// Package transport owns the connection glue around the stream core.
//
// Ownership boundary:
// - Conn: one stream.Table per connection behind one connection-wide lock
// - STREAM frame ingest (HandleFrame, Serve) and segmentation (NextFrame, Flush)
// - TCP/TLS dial and listen with server-name binding and retry backoff
//
// The stream core does not see the wire; frames are converted to RangeBufs
// here and popped send chunks are converted back to frames here.
package transport
