package base

import (
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/ValentinKolb/cellwire/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	// ErrNotConnected is returned if no connection can carry a request
	ErrNotConnected = errors.New("no active connections available")
	// ErrTimeout is returned if no response arrived within the configured timeout
	ErrTimeout = errors.New("request timed out")
	// errConnectionLost is delivered to requests waiting on a connection that broke
	errConnectionLost = errors.New("connection lost")
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection is one multiplexed connection. Requests are correlated
// with their responses by request id.
type clientConnection struct {
	endpoint string
	parent   *clientTransport
	stopCh   chan struct{} // closed when the transport is closed
	pending  *xsync.MapOf[uint64, chan responseResult]

	// connMu guards conn and serializes frame writes
	connMu sync.Mutex
	conn   net.Conn
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64 // round robin
	nextRequestID atomic.Uint64
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}

	t.closeConnections()
	t.config = config
	t.stopping.Store(false)

	perEndpoint := max(config.Transport.ConnectionsPerEndpoint, 1)
	total := len(config.Transport.Endpoints) * perEndpoint
	connections := make([]*clientConnection, 0, total)

	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < perEndpoint; i++ {
			c := &clientConnection{
				endpoint: endpoint,
				parent:   t,
				stopCh:   make(chan struct{}),
				pending:  xsync.NewMapOf[uint64, chan responseResult](),
			}
			if err := c.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, perEndpoint, err)
				continue
			}
			connections = append(connections, c)
			go c.readResponses()
		}
	}

	if len(connections) == 0 {
		return errors.Errorf("failed to connect to any of %v", config.Transport.Endpoints)
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected %d of %d connections to %d endpoints using %s transport",
		len(connections), total, len(config.Transport.Endpoints), t.connector.GetName())
	return nil
}

// Send sends a request and waits for its response.
// A request is only retried if it could not be written. Once a frame is on
// the wire the server may have applied it, so timeouts and broken
// connections are reported to the caller instead of resending mutations.
func (t *clientTransport) Send(namespace uint64, req []byte) ([]byte, error) {
	attempts := max(t.config.Transport.RetryCount, 1)
	backoff := 50 * time.Millisecond

	var lastErr error
	for i := 0; i < attempts; i++ {
		c := t.getNextConnection()
		if c == nil {
			return nil, ErrNotConnected
		}

		data, written, err := c.roundTrip(namespace, req)
		if err == nil {
			return data, nil
		}
		if written || errors.Is(err, ErrFrameTooLarge) {
			return nil, err
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, attempts, c.endpoint, err)
		if i < attempts-1 {
			// +-10% jitter
			time.Sleep(time.Duration(float64(backoff) * (0.9 + 0.2*rand.Float64())))
			backoff *= 2
		}
	}
	return nil, errors.Wrapf(lastErr, "failed to send request after %d attempts", attempts)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection round robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	switch len(t.connections) {
	case 0:
		return nil
	case 1:
		return t.connections[0]
	default:
		return t.connections[t.nextConnIndex.Add(1)%uint64(len(t.connections))]
	}
}

// closeConnections closes all connections and fails their pending requests
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, c := range connections {
		close(c.stopCh)
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
		c.failPending(errConnectionLost)
	}
}

// roundTrip writes one request and waits for the response. written reports
// whether the frame reached the connection.
func (c *clientConnection) roundTrip(namespace uint64, req []byte) (data []byte, written bool, err error) {
	requestID := c.parent.nextRequestID.Add(1)
	respCh := make(chan responseResult, 1)
	c.pending.Store(requestID, respCh)
	defer c.pending.Delete(requestID)

	var timeout time.Duration
	if c.parent.config.TimeoutSecond > 0 {
		timeout = time.Duration(c.parent.config.TimeoutSecond) * time.Second
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		return nil, false, errConnectionLost
	}
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err = writeFrame(c.conn, namespace, requestID, req)
	if err != nil && !errors.Is(err, ErrFrameTooLarge) {
		// the server never saw a complete frame, but the stream is out of sync
		// now. Closing the connection makes the reader reconnect.
		_ = c.conn.Close()
	}
	c.connMu.Unlock()
	if err != nil {
		return nil, false, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, true, result.err
	case <-timeoutCh:
		return nil, true, ErrTimeout
	}
}

// readResponses reads frames in a loop and hands them to the waiting requests
func (c *clientConnection) readResponses() {
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return
		}

		// no read deadline, idle connections stay open and the request
		// timeout is enforced in roundTrip
		namespace, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			if c.stopped() {
				return
			}
			Logger.Errorf("Error reading response from %s: %v", c.endpoint, err)
			c.failPending(errors.Wrap(errConnectionLost, err.Error()))

			if err := c.reconnect(); err != nil {
				Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
				return
			}
			continue
		}

		if respCh, ok := c.pending.LoadAndDelete(requestID); ok {
			respCh <- responseResult{data: data}
		} else {
			Logger.Warningf("Received response for unknown request ID %d in namespace %d", requestID, namespace)
		}
	}
}

// failPending delivers err to every request waiting on this connection
func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(id uint64, respCh chan responseResult) bool {
		if _, ok := c.pending.LoadAndDelete(id); ok {
			respCh <- responseResult{err: err}
		}
		return true
	})
}

func (c *clientConnection) stopped() bool {
	if c.parent.stopping.Load() {
		return true
	}
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// reconnect establishes or restores the connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", c.endpoint)
	}
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "failed to upgrade connection to %s", c.endpoint)
	}

	c.conn = conn
	return nil
}
