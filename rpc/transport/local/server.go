package local

import (
	"sync"

	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/ValentinKolb/cellwire/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// registry maps endpoints to listening servers of this process
var registry = xsync.NewMapOf[string, *serverTransport]()

type serverTransport struct {
	handler  transport.ServerHandleFunc
	endpoint string
	done     chan struct{}
	once     sync.Once
}

// NewLocalServerTransport creates a server transport that is only reachable
// from clients in the same process. Requests are handled by direct function calls.
func NewLocalServerTransport() transport.IRPCServerTransport {
	return &serverTransport{
		done: make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (s *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	s.handler = handler
}

func (s *serverTransport) Listen(config common.ServerConfig) error {
	if s.handler == nil {
		return errors.New("no handler registered")
	}
	if config.Transport.Endpoint == "" {
		return errors.New("local transport needs an endpoint name")
	}

	if _, loaded := registry.LoadOrStore(config.Transport.Endpoint, s); loaded {
		return errors.Errorf("local endpoint %q already in use", config.Transport.Endpoint)
	}
	s.endpoint = config.Transport.Endpoint
	Logger.Infof("Local server listening on %s", s.endpoint)

	<-s.done
	return nil
}

func (s *serverTransport) Close() error {
	s.once.Do(func() {
		if s.endpoint != "" {
			registry.Compute(s.endpoint, func(current *serverTransport, loaded bool) (*serverTransport, bool) {
				// only remove our own registration
				return current, !loaded || current == s
			})
		}
		close(s.done)
	})
	return nil
}

// handle calls the registered handler with a private copy of the request
func (s *serverTransport) handle(namespace uint64, req []byte) []byte {
	reqCopy := make([]byte, len(req))
	copy(reqCopy, req)
	return s.handler(namespace, reqCopy)
}
