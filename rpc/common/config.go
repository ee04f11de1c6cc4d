package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket configuration (shared by client and server)
// --------------------------------------------------------------------------

// SocketConf holds options that apply to every stream socket (tcp, unix)
type SocketConf struct {
	WriteBufferSize int // Kernel write buffer size in bytes, 0 keeps the OS default
	ReadBufferSize  int // Kernel read buffer size in bytes, 0 keeps the OS default
}

// TCPConf holds TCP specific options
type TCPConf struct {
	TCPNoDelay      bool // Disable Nagle's algorithm
	TCPKeepAliveSec int  // Keep-alive period in seconds, 0 disables keep-alive
	TCPLingerSec    int  // Linger timeout in seconds, 0 keeps the OS default
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the transport parameters of the server
type ServerTransportConfig struct {
	Endpoint       string // Listen address (host:port or socket path)
	WorkersPerConn int    // Maximum number of requests processed concurrently per connection
	BufferSize     int    // Size of the pooled receive buffers in bytes
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters for the RPC server.
type ServerConfig struct {
	// Namespaces served by this node. Each namespace has its own set of tables.
	Namespaces []uint64

	// Read and write timeout of the transports
	TimeoutSecond int64

	// Mutator sessions idle for longer than this are closed, 0 keeps them open
	MutatorIdleTimeoutSecond int64

	// Transport settings
	Transport ServerTransportConfig

	// MetricsEndpoint is an optional extra HTTP address for /metrics
	// (the http transport always serves /metrics on its own endpoint)
	MetricsEndpoint string

	// AutoCreate creates unknown tables on MutatorOpen and SetCells
	AutoCreate bool

	// DataDir holds table snapshots and commit logs, empty disables persistence
	DataDir string

	// Logging configuration
	LogLevel string
}

// HasNamespace reports whether ns is served by this configuration
func (c *ServerConfig) HasNamespace(ns uint64) bool {
	for _, n := range c.Namespaces {
		if n == ns {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Mutator Idle Timeout", fmt.Sprintf("%d sec", c.MutatorIdleTimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.Transport.BufferSize))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Socket settings
	addSection("Socket")
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))

	// Tables
	addSection("Tables")
	addField("Auto Create", strconv.FormatBool(c.AutoCreate))
	if c.DataDir != "" {
		addField("Data Directory", c.DataDir)
	} else {
		addField("Data Directory", "(in-memory only)")
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Namespaces
	addSection("Namespaces")
	for _, ns := range c.Namespaces {
		addField(strconv.FormatUint(ns, 10), "tables")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the transport parameters of a client
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
