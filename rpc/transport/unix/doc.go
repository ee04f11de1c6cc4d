// Package unix runs the framed RPC protocol of package base over Unix domain
// sockets, for clients on the same machine as the server.
//
// Endpoints are socket paths, optionally written as "unix:///run/cellwire.sock".
// On Listen a socket file left over from a previous server is removed. Any
// other file at the path makes Listen fail.
//
// Only the kernel buffer sizes of SocketConf apply, the TCP options are
// ignored. The default server receive buffer is 64 KB.
package unix
