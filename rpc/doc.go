// Package rpc carries cell streams between cellwire clients and servers.
//
// A request travels through three layers, each in its own subpackage:
//
//   - client builds a common.Message (table operation, mutator batch, row read)
//     and the mutator buffers cells into one stream per batch.
//   - serializer turns the message into bytes (binary, json or gob).
//   - transport moves the bytes to the server together with the namespace id
//     (tcp, unix, http, or local for in-process use).
//
// On the server the same layers run in reverse: server decodes the message,
// looks up the namespace and lets the table adapter apply or read cells.
//
// The cell streams inside the messages are opaque to this package tree.
// Encoding and decoding them is done by lib/cells.
package rpc
