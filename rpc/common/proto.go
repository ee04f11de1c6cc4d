package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Table  string `json:"table,omitempty"`   // Used for: table operations, MutatorOpen, SetCells, GetCells, ScanCells
	Row    string `json:"row,omitempty"`     // Used for: GetCells, ScanCells (start row)
	EndRow string `json:"end_row,omitempty"` // Used for: ScanCells (exclusive, empty means unbounded)
	Handle uint64 `json:"handle,omitempty"`  // Used for: mutator operations
	Flags  uint32 `json:"flags,omitempty"`   // Used for: MutatorOpen, SetCells (MutatorFlag bits)
	Cells  []byte `json:"cells,omitempty"`   // Serialized cell stream, used for: SetCells, MutatorSetCells (request), GetCells, ScanCells (response)

	// Response only fields
	Count uint64 `json:"count,omitempty"` // Number of applied or returned cells
	Ok    bool   `json:"ok,omitempty"`    // Used for: TableExists, GetCells responses
	Err   string `json:"err,omitempty"`   // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewResponse creates a response without payload for the given message type
func NewResponse(t MessageType, err error) *Message {
	msg := &Message{
		MsgType: t,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewTableCreateRequest creates a new TableCreate request
func NewTableCreateRequest(table string) *Message {
	return &Message{
		MsgType: MsgTTableCreate,
		Table:   table,
	}
}

// NewTableDropRequest creates a new TableDrop request
func NewTableDropRequest(table string) *Message {
	return &Message{
		MsgType: MsgTTableDrop,
		Table:   table,
	}
}

// NewTableExistsRequest creates a new TableExists request
func NewTableExistsRequest(table string) *Message {
	return &Message{
		MsgType: MsgTTableExists,
		Table:   table,
	}
}

// NewTableExistsResponse creates a new TableExists response
func NewTableExistsResponse(ok bool, err error) *Message {
	msg := NewResponse(MsgTTableExists, err)
	msg.Ok = ok
	return msg
}

// NewMutatorOpenRequest creates a new MutatorOpen request
func NewMutatorOpenRequest(table string, flags uint32) *Message {
	return &Message{
		MsgType: MsgTMutatorOpen,
		Table:   table,
		Flags:   flags,
	}
}

// NewMutatorOpenResponse creates a new MutatorOpen response carrying the handle
func NewMutatorOpenResponse(handle uint64, err error) *Message {
	msg := NewResponse(MsgTMutatorOpen, err)
	msg.Handle = handle
	return msg
}

// NewMutatorSetCellsRequest creates a new MutatorSetCells request
func NewMutatorSetCellsRequest(handle uint64, stream []byte) *Message {
	return &Message{
		MsgType: MsgTMutatorSetCells,
		Handle:  handle,
		Cells:   stream,
	}
}

// NewMutatorFlushRequest creates a new MutatorFlush request
func NewMutatorFlushRequest(handle uint64) *Message {
	return &Message{
		MsgType: MsgTMutatorFlush,
		Handle:  handle,
	}
}

// NewMutatorCloseRequest creates a new MutatorClose request
func NewMutatorCloseRequest(handle uint64) *Message {
	return &Message{
		MsgType: MsgTMutatorClose,
		Handle:  handle,
	}
}

// NewSetCellsRequest creates a new SetCells request. The stream is applied
// to the table without a mutator session.
func NewSetCellsRequest(table string, stream []byte, flags uint32) *Message {
	return &Message{
		MsgType: MsgTSetCells,
		Table:   table,
		Cells:   stream,
		Flags:   flags,
	}
}

// NewApplyResponse creates a response for operations that apply cells
func NewApplyResponse(t MessageType, count uint64, err error) *Message {
	msg := NewResponse(t, err)
	msg.Count = count
	return msg
}

// NewGetCellsRequest creates a new GetCells request for a single row
func NewGetCellsRequest(table, row string) *Message {
	return &Message{
		MsgType: MsgTGetCells,
		Table:   table,
		Row:     row,
	}
}

// NewScanCellsRequest creates a new ScanCells request for startRow <= row < endRow
func NewScanCellsRequest(table, startRow, endRow string) *Message {
	return &Message{
		MsgType: MsgTScanCells,
		Table:   table,
		Row:     startRow,
		EndRow:  endRow,
	}
}

// NewCellsResponse creates a response carrying a serialized cell stream
func NewCellsResponse(t MessageType, stream []byte, count uint64, ok bool, err error) *Message {
	msg := NewResponse(t, err)
	msg.Cells = stream
	msg.Count = count
	msg.Ok = ok
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Mutator Flags
// --------------------------------------------------------------------------

// MutatorFlag controls how the server applies the cells of a mutator
type MutatorFlag uint32

const (
	MutatorFlagNoLogSync        MutatorFlag = 1 << iota // Do not sync the commit log after applying
	MutatorFlagIgnoreUnknownCFs                         // Create missing tables instead of failing
	MutatorFlagNoLog                                    // Do not write a commit log entry
)

// Has reports whether all bits of o are set in f
func (f MutatorFlag) Has(o MutatorFlag) bool {
	return f&o == o
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:         "success",
	MsgTError:           "error",
	MsgTTableCreate:     "tableCreate",
	MsgTTableDrop:       "tableDrop",
	MsgTTableExists:     "tableExists",
	MsgTMutatorOpen:     "mutatorOpen",
	MsgTMutatorSetCells: "mutatorSetCells",
	MsgTMutatorFlush:    "mutatorFlush",
	MsgTMutatorClose:    "mutatorClose",
	MsgTSetCells:        "setCells",
	MsgTGetCells:        "getCells",
	MsgTScanCells:       "scanCells",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Table management

	MsgTTableCreate // Create a table
	MsgTTableDrop   // Drop a table
	MsgTTableExists // Check if a table exists

	// Mutator sessions

	MsgTMutatorOpen     // Open a mutator on a table
	MsgTMutatorSetCells // Apply a cell stream through a mutator
	MsgTMutatorFlush    // Flush a mutator
	MsgTMutatorClose    // Close a mutator

	// One-shot cell operations

	MsgTSetCells  // Apply a cell stream to a table
	MsgTGetCells  // Read the cells of a row
	MsgTScanCells // Read the cells of a row range
)
