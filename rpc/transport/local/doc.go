// Package local implements an in-process RPC transport.
//
// The server registers itself under its endpoint name in a process wide
// registry, clients with the same endpoint call the server handler directly.
// Requests and responses are copied so neither side can alias the other's buffers.
//
// The transport is meant for embedding the server into another Go program and
// for tests that want the full client/server path without sockets.
package local
