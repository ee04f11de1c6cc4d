// Package server implements the RPC server of cellwire.
// It applies serialized cell streams sent by clients to in-memory tables,
// grouped into namespaces, and answers reads with cell streams.
//
// The package focuses on:
//   - Server-side RPC request handling for table, mutator and cell operations
//   - Adapter pattern to decouple table logic from RPC mechanisms
//   - Mutator sessions: a client opens a mutator on a table and ships its
//     buffered cells in batches, a batch whose terminator carries FLUSH is
//     flushed after it was applied
//   - Optional persistence: table snapshots plus a commit log per table
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a Namespace.
//
//   - NewTableServerAdapter: Factory function creating the adapter that translates
//     RPC requests to Namespace and table.ITable calls.
//
//   - Namespace: the tables and open mutators of one namespace id.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Namespaces: []uint64{100},
//	  AutoCreate: true,
//	  DataDir:    "data",
//	  LogLevel:   "info",
//	}
//	config.Transport.Endpoint = "0.0.0.0:8080"
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Persistence:
//
// If DataDir is set, every table has a snapshot <DataDir>/<namespace>/<table>.cells
// and a commit log <table>.log next to it. Every applied stream is appended to
// the log first (skipped with MutatorFlagNoLog, not synced with MutatorFlagNoLogSync).
// On start the snapshot is loaded and the log replayed, when Serve returns all
// tables are saved and their logs truncated.
//
// Metrics:
//
// Request, cell and flush counters are kept in a VictoriaMetrics set. They are
// served under /metrics by the http transport and on MetricsEndpoint if configured.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve is not thread-safe and should be called only once.
package server
