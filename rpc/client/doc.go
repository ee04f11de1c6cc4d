// Package client implements the RPC client of cellwire.
// It gives access to the tables of a namespace on a remote server and provides
// mutators, which buffer cells in a serialized cell stream and ship them in batches.
//
// The package focuses on:
//   - Table management and one-shot reads and writes (ITableClient)
//   - Buffered, batched writes through server side mutator sessions (IMutator)
//   - Integration with the transport and serialization layers
//
// Key Components:
//
//   - NewRPCTableClient: Factory function that creates a client for one namespace.
//     All operations are forwarded to the server via the configured transport layer.
//
//   - IMutator: created with ITableClient.OpenMutator. Cells are encoded into a
//     fixed size cells.Writer. When the next cell does not fit, the buffer is
//     finalized and sent as one batch. Flush finalizes the buffer with the FLUSH
//     flag so the server flushes right after applying it.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{TimeoutSecond: 5}
//	config.Transport.Endpoints = []string{"localhost:8080"}
//	config.Transport.RetryCount = 3
//
//	tables, _ := client.NewRPCTableClient(100, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//
//	// Write through a mutator
//	m, _ := tables.OpenMutator("events", client.MutatorOptions{FlushInterval: time.Second})
//	m.Set(cells.NewInsert("row", "cf", "q", cells.TimestampAutoAssign, []byte("value")))
//	m.Close()
//
//	// Read back
//	row, _ := tables.GetRow("events", "row")
//
// Performance Considerations:
//
//   - Larger mutator buffers mean fewer, larger batches. Stats reports the batch
//     size distribution.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
