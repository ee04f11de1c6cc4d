package table

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/cellwire/lib/cells"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Factory is a function type that creates a new, empty table.
// It is used by the server to create tables on demand.
type Factory func(name string) ITable

// ITable is the interface of a table that mutations are applied to.
// All mutations go through cell streams or cell slices, the same model the
// clients use to ship them.
type ITable interface {
	// Name returns the name of the table.
	Name() string
	// Apply decodes a finalized cell stream and applies every cell in order.
	// It returns the number of applied cells. Cells before a decoding error stay applied.
	Apply(stream []byte) (applied int, err error)
	// ApplyCells applies already decoded cells in order.
	ApplyCells(cs []cells.Cell) (applied int, err error)
	// Get returns the live cells of a row ordered by column family and qualifier.
	// The returned cells carry their stored timestamps and do not alias table memory.
	Get(row string) ([]cells.Cell, error)
	// Scan calls fn for every live cell with startRow <= row < endRow in row order.
	// An empty endRow means no upper bound. Returning false from fn stops the scan.
	Scan(startRow, endRow string, fn func(cell cells.Cell) bool) error
	// Save writes all live cells as one cell stream to w.
	Save(w io.Writer) error
	// Load replaces the table content with the cells of a stream written by Save.
	Load(r io.Reader) error
	// Info returns metadata about the table. Values may be approximations.
	Info() Info
}

// Info holds metadata about a table
type Info struct {
	Name      string `json:"name"`
	Rows      int    `json:"rows"`
	Cells     int    `json:"cells"`
	SizeBytes int    `json:"size_bytes"`
	Applied   uint64 `json:"applied"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("TableError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new table Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess           RetCode = iota // 0: Command executed successfully.
	RetCInternalError                    // 1: Command failed due to an internal error.
	RetCInvalidOperation                 // 2: Invalid operation (bad key flag, malformed stream).
	RetCTableNotFound                    // 3: The table does not exist.
	RetCTableExists                      // 4: The table already exists.
	RetCMutatorNotFound                  // 5: The mutator handle is unknown.
)

// String returns the name of a RetCode.
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCTableNotFound:
		return "TableNotFound"
	case RetCTableExists:
		return "TableExists"
	case RetCMutatorNotFound:
		return "MutatorNotFound"
	default:
		return "Unknown"
	}
}
