package unix

import (
	"net"
	"os"

	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/ValentinKolb/cellwire/rpc/transport"
	"github.com/ValentinKolb/cellwire/rpc/transport/base"
	"github.com/pkg/errors"
)

const (
	defaultBufferSize = 64 * 1024 // 64 KB
)

// serverConnector listens on a Unix domain socket
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) DefaultBufferSize() int {
	return defaultBufferSize
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	socketPath := base.TrimScheme(config.Transport.Endpoint, "unix")
	if err := removeStaleSocket(socketPath); err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", socketPath)
	}
	return listener, nil
}

func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return upgrade(conn, config.Transport.SocketConf)
}

// NewUnixServerTransport creates a new Unix server transport. The buffer size
// is taken from the server config (default 64 KB).
func NewUnixServerTransport() transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{})
}

// removeStaleSocket removes a socket file left behind by a previous server.
// Any other file at the path is an error, it is never deleted.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", path)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return errors.Errorf("%s exists and is not a socket", path)
	}
	return errors.Wrapf(os.Remove(path), "failed to remove stale socket %s", path)
}
