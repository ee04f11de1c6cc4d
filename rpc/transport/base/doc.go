// Package base implements the framed request/response protocol shared by the
// tcp and unix transports. The protocol specific parts (dialing, listening,
// socket options) are injected as IClientConnector and IServerConnector.
//
// Frames:
//
//	namespace (8) | request id (8) | payload length (4) | payload
//
// All integers are big endian. The namespace selects the table namespace on
// the server, the request id correlates responses with requests so one
// connection carries many requests at a time. Payloads above MaxFrameSize are
// rejected and the connection is dropped, since a corrupt length can not be
// resynchronized.
//
// Client:
//
//   - ConnectionsPerEndpoint connections per endpoint, used round robin.
//   - Requests are retried with exponential backoff only while they could not
//     be written. Once a frame was written the server may have applied the cells
//     it carries, so a timeout (ErrTimeout) or a lost connection is returned to
//     the caller rather than resending the batch.
//   - A connection that fails is reconnected in the background, requests
//     waiting on it fail immediately.
//
// Server:
//
//   - One reader goroutine per connection plus up to WorkersPerConn handler
//     goroutines. Responses may be written out of order.
//   - Receive buffers come from a sync.Pool sized by ServerTransportConfig.BufferSize.
//     Larger frames get a temporary buffer.
//
// All exported methods are safe for concurrent use.
package base
