package tcp

import (
	"net"

	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/ValentinKolb/cellwire/rpc/transport"
	"github.com/ValentinKolb/cellwire/rpc/transport/base"
	"github.com/pkg/errors"
)

// defaultBufferSize fits the default mutator batch (1 MB) in two reads
const defaultBufferSize = 512 * 1024

// serverConnector listens on a TCP address
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) DefaultBufferSize() int {
	return defaultBufferSize
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	addr := base.TrimScheme(config.Transport.Endpoint, "tcp")
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return listener, nil
}

func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return upgrade(conn, config.Transport.SocketConf, config.Transport.TCPConf)
}

// NewTCPServerTransport creates a new TCP server transport. The buffer size
// is taken from the server config (default 512 KB).
func NewTCPServerTransport() transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{})
}
