// Package protocol implements the binary encoding of trees, change
// sequences and render pass records.
//
// The same encoding backs the snapshot store and the websocket mirror.
// Values are varint-prefixed; maps are written in key order so equal
// values always produce equal bytes.
//
// # Frames
//
// Every message on a stream is a Frame: a one-byte type and a four-byte
// big-endian payload length followed by the payload.
//
//	Snapshot  server → client  full tree of a mount
//	Changes   server → client  PassRecord of one applied pass
//	Event     client → server  EventMessage for the element at a path
//	Error     both             ErrorMessage
//
// # Limits
//
// Decoders bound string sizes, collection counts and nesting depth
// (MaxNodeDepth) so hostile input cannot exhaust memory or stack.
package protocol
