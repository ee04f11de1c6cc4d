// Package transport defines how serialized messages move between client and
// server. Implementations live in the subpackages:
//
//   - tcp and unix: the framed, multiplexed protocol of package base
//   - http: one POST /{namespace} per request, routed with chi
//   - local: an in-process registry for tests and embedded servers
//
// Every request carries a namespace id next to its payload. The server
// transport hands both to the registered ServerHandleFunc and writes back
// whatever it returns. Transports never look into the payload.
//
// A server transport that can serve HTTP implements IMetricsExporter, the
// server then exposes its metrics there instead of on a separate listener.
package transport
