// Package http implements the transport interfaces over plain HTTP.
//
// Routes of the server (github.com/go-chi/chi/v5):
//
//	POST /{namespace}   request body in, response body out
//	GET  /health        200 while the server runs
//	GET  /metrics       Prometheus text format, if metrics were registered
//
// The client spreads requests round robin over all endpoints. A request is
// retried on the next endpoint only if it never reached a server (dial error)
// or was rejected before being handled (non 200 status), so a mutator batch is
// never applied twice. Endpoints are base URLs such as http://localhost:8080.
//
// Using curl with the json serializer is the simplest way to inspect a
// running server, e.g. to check if a table exists:
//
//	curl -d '{"msg_type":"tableExists","table":"users"}' http://localhost:8080/100
package http
