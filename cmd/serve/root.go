package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/cellwire/cmd/util"
	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/ValentinKolb/cellwire/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the cellwire server",
		Long:    `Start the cellwire server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is CELLWIRE_<flag> (e.g. CELLWIRE_DATA_DIR=/var/lib/cellwire)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "namespaces"
	ServeCmd.PersistentFlags().String(key, "100", cmdUtil.WrapString("Comma-separated list of namespace IDs to serve. Each namespace has its own set of tables"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/cellwire.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 10, cmdUtil.WrapString("Read and write timeout of connections in seconds"))

	key = "mutator-idle-timeout"
	ServeCmd.PersistentFlags().Int64(key, 300, cmdUtil.WrapString("Mutator sessions that were idle for longer than this many seconds are closed (0 disables)"))

	key = "auto-create"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Create unknown tables on MutatorOpen and SetCells instead of failing"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory for table snapshots and commit logs. Tables are restored on start and saved on shutdown. Empty keeps all tables in memory only"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address for a separate Prometheus /metrics endpoint (the http transport always serves /metrics)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Maximum number of requests processed concurrently per connection (tcp, unix)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Size of the pooled receive buffers in KB (tcp, unix). 0 uses the transport default"))

	key = "write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Kernel write buffer size in KB (tcp, unix). 0 keeps the OS default"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Kernel read buffer size in KB (tcp, unix). 0 keeps the OS default"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval in seconds (only for tcp)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse namespaces
	serveCmdConfig.Namespaces = []uint64{}
	for _, ns := range strings.Split(viper.GetString("namespaces"), ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(ns), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid namespace ID %s: %v", ns, err)
		}
		if serveCmdConfig.HasNamespace(id) {
			return fmt.Errorf("namespace %d is listed twice", id)
		}
		serveCmdConfig.Namespaces = append(serveCmdConfig.Namespaces, id)
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MutatorIdleTimeoutSecond = viper.GetInt64("mutator-idle-timeout")
	serveCmdConfig.AutoCreate = viper.GetBool("auto-create")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		BufferSize:     viper.GetInt("buffer-size") * 1024,
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		},
	}

	if _, err := common.ParseLogLevel(serveCmdConfig.LogLevel); err != nil {
		return err
	}
	return nil
}

// run starts the cellwire server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// parse the transport
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	// stop the server on signals, Serve saves all tables before it returns
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		sig, ok := <-signals
		if !ok {
			return
		}
		server.Logger.Infof("received %s, shutting down", sig)
		_ = serv.Close()
	}()

	return serv.Serve()
}
