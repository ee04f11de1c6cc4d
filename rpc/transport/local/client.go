package local

import (
	"time"

	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/ValentinKolb/cellwire/rpc/transport"
	"github.com/pkg/errors"
)

type clientTransport struct {
	endpoints  []string
	retryCount int
}

// NewLocalClientTransport creates a client for servers started with NewLocalServerTransport
func NewLocalClientTransport() transport.IRPCClientTransport {
	return &clientTransport{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (c *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}
	c.endpoints = config.Transport.Endpoints
	c.retryCount = max(config.Transport.RetryCount, 1)
	return nil
}

func (c *clientTransport) Send(namespace uint64, req []byte) ([]byte, error) {
	if len(c.endpoints) == 0 {
		return nil, errors.New("transport not connected")
	}

	var lastErr error
	for i := 0; i < c.retryCount; i++ {
		for _, endpoint := range c.endpoints {
			server, ok := registry.Load(endpoint)
			if !ok {
				lastErr = errors.Errorf("no local server listening on %q", endpoint)
				continue
			}
			resp := server.handle(namespace, req)
			out := make([]byte, len(resp))
			copy(out, resp)
			return out, nil
		}
		if i < c.retryCount-1 {
			time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
		}
	}
	return nil, lastErr
}

func (c *clientTransport) Close() error {
	c.endpoints = nil
	return nil
}
