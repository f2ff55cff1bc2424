// Package protocol owns wire contract primitives.
//
// Ownership boundary:
// - frame: transport STREAM frames (stream id, offset, fin, payload)
// - appframe: application HEADERS/DATA frames carried inside a stream
package protocol
