// Package tcp implements a TCP socket-based transport for the cellwire RPC
// system. It provides concrete implementations of the base package's connector
// interfaces optimized for TCP connections.
//
// This package builds on the base package's transport functionality, inheriting its
// performance optimizations including connection pooling, buffer reuse, and request
// routing. See the base package documentation for detailed information on the underlying
// transport mechanisms and performance characteristics.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Both sides apply the SocketConf and TCPConf options of their config to every
// connection (Nagle, kernel buffers, keep-alive, linger).
//
// The default server buffer size is set to 512 KB, which fits typical mutator
// batches, but can be customized with the server config.
package tcp
