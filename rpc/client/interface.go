package client

import (
	"time"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/rpc/common"
)

// ITableClient gives access to the tables of one namespace on a server
type ITableClient interface {
	// CreateTable creates an empty table
	CreateTable(name string) error
	// DropTable removes a table and all of its cells
	DropTable(name string) error
	// TableExists reports whether a table exists
	TableExists(name string) (bool, error)
	// SetCells encodes the cells into one stream and applies it to the table.
	// It returns the number of cells the server applied.
	SetCells(table string, cs []cells.Cell, flags common.MutatorFlag) (int, error)
	// SetCellsSerialized applies an already finalized cell stream to the table
	SetCellsSerialized(table string, stream []byte, flags common.MutatorFlag) (int, error)
	// GetRow returns the cells of a row, ordered by column family and qualifier
	GetRow(table, row string) ([]cells.Cell, error)
	// Scan returns the cells of all rows with startRow <= row < endRow.
	// An empty endRow means no upper bound.
	Scan(table, startRow, endRow string) ([]cells.Cell, error)
	// OpenMutator opens a buffered mutator on a table
	OpenMutator(table string, opts MutatorOptions) (IMutator, error)
	// Close closes the underlying transport
	Close() error
}

// IMutator buffers cells on the client and ships them to the server in batches.
// A batch is sent when the buffer is full, on Flush and on Close.
// All methods are safe for concurrent use.
type IMutator interface {
	// Set buffers a single cell
	Set(cell cells.Cell) error
	// SetCells buffers multiple cells in order
	SetCells(cs []cells.Cell) error
	// SetSerialized buffers the records of a finalized cell stream
	SetSerialized(stream []byte) error
	// Flush sends all buffered cells and asks the server to flush them
	Flush() error
	// Close flushes the mutator and closes the server side session
	Close() error
	// Stats returns statistics about the mutator
	Stats() MutatorStats
}

// MutatorOptions configures a mutator
type MutatorOptions struct {
	// BufferSize is the size of the client side buffer in bytes. A batch is sent
	// when the next cell does not fit. Defaults to DefaultMutatorBufferSize.
	BufferSize int
	// FlushInterval flushes the mutator periodically, 0 disables periodic flushes
	FlushInterval time.Duration
	// Flags are sent to the server when the mutator is opened
	Flags common.MutatorFlag
}

// MutatorStats holds statistics about a mutator
type MutatorStats struct {
	Cells       int64   // cells buffered
	Batches     int64   // batches sent
	Flushes     int64   // flushes sent
	Bytes       int64   // stream bytes sent
	CellRate    float64 // mean cells per second since the mutator was opened
	MeanCells   float64 // mean cells per batch
	MedianBytes int     // estimated median batch size in bytes
	P99Bytes    int     // estimated 99th percentile batch size in bytes
}
