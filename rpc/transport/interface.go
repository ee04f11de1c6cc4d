package transport

import (
	"io"

	"github.com/ValentinKolb/cellwire/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a namespace and a request as parameters and returns a response
type ServerHandleFunc func(namespace uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for passing the namespace of the request
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests.
	// It blocks until the transport is closed and returns nil in that case.
	Listen(config common.ServerConfig) error
	// Close stops listening. Requests that are in progress are finished.
	Close() error
}

// MetricsWriteFunc writes metrics in the Prometheus text format
type MetricsWriteFunc func(w io.Writer)

// IMetricsExporter is implemented by server transports that can serve metrics
// on their own endpoint (e.g. the http transport under /metrics)
type IMetricsExporter interface {
	RegisterMetrics(fn MetricsWriteFunc)
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(namespace uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
