package util

import (
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/ValentinKolb/cellwire/rpc/serializer"
	"github.com/ValentinKolb/cellwire/rpc/transport"
	"github.com/ValentinKolb/cellwire/rpc/transport/http"
	"github.com/ValentinKolb/cellwire/rpc/transport/tcp"
	"github.com/ValentinKolb/cellwire/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by cellwire
	EnvPrefix = "cellwire"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "namespace"
	cmd.PersistentFlags().Uint64(key, 100, WrapString("ID of the namespace the tables live in"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the cellwire server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for tcp, 0 keeps the OS default)"))
}

// InitConfig loads .env files and binds environment variables with the CELLWIRE_ prefix
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}

	return conf
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.New(viper.GetString("serializer"))
}

// transportFactory creates the client and server side of one transport
type transportFactory struct {
	client func() transport.IRPCClientTransport
	server func() transport.IRPCServerTransport
}

// transports maps the values of the --transport flag to their implementation
var transports = map[string]transportFactory{
	"http": {client: http.NewHttpClientTransport, server: http.NewHttpServerTransport},
	"tcp":  {client: tcp.NewTCPClientTransport, server: tcp.NewTCPServerTransport},
	"unix": {client: unix.NewUnixClientTransport, server: unix.NewUnixServerTransport},
}

func selectedTransport() (transportFactory, error) {
	name := viper.GetString("transport")
	f, ok := transports[name]
	if !ok {
		return transportFactory{}, errors.Errorf("invalid transport %q (available: http, tcp, unix)", name)
	}
	return f, nil
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	f, err := selectedTransport()
	if err != nil {
		return nil, err
	}
	return f.client(), nil
}

// GetServerTransport creates the server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	f, err := selectedTransport()
	if err != nil {
		return nil, err
	}
	return f.server(), nil
}

// GetMutatorFlags builds the mutator flags from the --create, --no-log and
// --no-log-sync flags. Flags a command does not define read as false.
func GetMutatorFlags() common.MutatorFlag {
	var flags common.MutatorFlag
	if viper.GetBool("create") {
		flags |= common.MutatorFlagIgnoreUnknownCFs
	}
	if viper.GetBool("no-log") {
		flags |= common.MutatorFlagNoLog
	}
	if viper.GetBool("no-log-sync") {
		flags |= common.MutatorFlagNoLogSync
	}
	return flags
}

// ParseTimestamp parses a timestamp given on the command line: empty means
// auto assigned by the server, "now" is the local clock, anything else must
// be nanoseconds since the Unix epoch
func ParseTimestamp(s string) (int64, error) {
	switch s {
	case "", "auto":
		return cells.TimestampAutoAssign, nil
	case "null":
		return cells.TimestampNull, nil
	case "now":
		return cells.TimestampFromTime(time.Now()), nil
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid timestamp %q", s)
	}
	if cells.IsSentinel(ts) {
		return 0, errors.Errorf("timestamp %d is reserved", ts)
	}
	return ts, nil
}

// GetNamespace retrieves the configured namespace ID
func GetNamespace() uint64 {
	return viper.GetUint64("namespace")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
