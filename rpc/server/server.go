package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/cellwire/lib/table"
	"github.com/ValentinKolb/cellwire/lib/table/memtable"
	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/ValentinKolb/cellwire/rpc/serializer"
	"github.com/ValentinKolb/cellwire/rpc/transport"
	"github.com/go-chi/chi/v5"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverNamespace is a namespace together with the adapter that handles its requests
type serverNamespace struct {
	Namespace *Namespace
	Adapter   IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		factory:    memtable.NewMemTable,
		namespaces: xsync.NewMapOf[uint64, serverNamespace](),
		metrics:    newServerMetrics(),
		done:       make(chan struct{}),
	}
}

// RPCServer serves the tables of all configured namespaces over one transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	factory    table.Factory
	namespaces *xsync.MapOf[uint64, serverNamespace]
	metrics    *serverMetrics

	metricsServer *http.Server
	done          chan struct{}
	closeOnce     sync.Once
}

// Namespace returns a served namespace, e.g. to access tables directly when
// the server is embedded
func (s *RPCServer) Namespace(id uint64) (*Namespace, bool) {
	ns, ok := s.namespaces.Load(id)
	return ns.Namespace, ok
}

// Serve starts the RPC server
// This function will also initialize the server plus the namespaces and start the transport layer.
// It blocks until Close is called, then all tables are saved to the data directory.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}

	listenErr := s.transport.Listen(s.config)
	_ = s.Close()

	// persist tables after the transport stopped accepting requests
	var saveErr error
	s.namespaces.Range(func(id uint64, ns serverNamespace) bool {
		if err := ns.Namespace.save(); err != nil && saveErr == nil {
			saveErr = err
		}
		ns.Namespace.close()
		return true
	})

	if listenErr != nil {
		return listenErr
	}
	return saveErr
}

// Close stops the transport and the background workers. Serve returns once
// the tables are saved.
func (s *RPCServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = s.metricsServer.Shutdown(ctx)
			cancel()
		}
		err = s.transport.Close()
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {

	// Init logger
	level := s.config.LogLevel
	if level == "" {
		level = "info"
	}
	if err := common.InitLoggers(level); err != nil {
		return err
	}

	if len(s.config.Namespaces) == 0 {
		return errors.New("no namespaces configured")
	}

	adapter := NewTableServerAdapter(s.config.AutoCreate)
	for _, id := range s.config.Namespaces {
		ns := newNamespace(id, s.config.DataDir, s.factory, s.metrics)
		if err := ns.load(); err != nil {
			return errors.Wrapf(err, "failed to load namespace %d", id)
		}
		s.metrics.registerNamespace(ns)
		s.namespaces.Store(id, serverNamespace{Namespace: ns, Adapter: adapter})
		Logger.Infof("serving namespace %d", id)
	}

	if err := s.startMetrics(); err != nil {
		return err
	}

	if s.config.MutatorIdleTimeoutSecond > 0 {
		go s.closeIdleMutators(time.Duration(s.config.MutatorIdleTimeoutSecond) * time.Second)
	}

	Logger.Infof("cellwire setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(s.handle)
}

// handle decodes a request, lets the adapter of the namespace handle it and encodes the response
func (s *RPCServer) handle(namespace uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	// Get appropriate namespace
	ns, ok := s.namespaces.Load(namespace)

	// Case namespace does not exist -> error
	if !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("namespace %d not found", namespace))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		// Let the adapter handle the request
		respMsg = ns.Adapter.Handle(&msg, ns.Namespace)
	}
	s.metrics.request(msg.MsgType, respMsg.Err != "")

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// startMetrics registers the metrics with the transport and starts the extra
// metrics endpoint if one is configured
func (s *RPCServer) startMetrics() error {
	if exporter, ok := s.transport.(transport.IMetricsExporter); ok {
		exporter.RegisterMetrics(s.metrics.writePrometheus)
	}

	if s.config.MetricsEndpoint == "" {
		return nil
	}

	r := chi.NewRouter()
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s.metrics.writePrometheus(w)
	})
	s.metricsServer = &http.Server{
		Addr:    s.config.MetricsEndpoint,
		Handler: r,
	}
	go func() {
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
	Logger.Infof("serving metrics on %s/metrics", s.config.MetricsEndpoint)
	return nil
}

// closeIdleMutators periodically closes mutator sessions that were idle for longer than timeout
func (s *RPCServer) closeIdleMutators(timeout time.Duration) {
	ticker := time.NewTicker(max(timeout/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.namespaces.Range(func(_ uint64, ns serverNamespace) bool {
				ns.Namespace.closeIdleMutators(timeout)
				return true
			})
		}
	}
}
