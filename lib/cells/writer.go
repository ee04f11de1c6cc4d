package cells

import (
	"encoding/binary"
	"fmt"
	"math"
)

// recordOverhead is the fixed size of a record without timestamp:
// control byte + 3 NUL terminators + 4 byte value length
const recordOverhead = 1 + 3 + 4

// byteString is satisfied by string and []byte based types so string keys
// can be packed without conversion
type byteString interface {
	~string | ~[]byte
}

// --------------------------------------------------------------------------
// Misuse Error
// --------------------------------------------------------------------------

// MisuseError is the panic value of a Writer that is used incorrectly.
type MisuseError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *MisuseError) Error() string {
	return fmt.Sprintf("cells writer: %s: %s", e.Op, e.Reason)
}

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

// Writer encodes mutation records into a single byte buffer.
// The zero value is not usable, create writers with NewWriter.
type Writer struct {
	buf       []byte // allocated region, len(buf) is the capacity
	pos       int    // write cursor
	grow      bool   // fixed at construction
	finalized bool   // terminator written
}

// NewWriter creates a writer with the given initial capacity in bytes.
// If grow is false, records that do not fit are rejected once the buffer holds at
// least one record. The first record is always accepted.
func NewWriter(capacity int, grow bool) *Writer {
	if capacity < 0 {
		capacity = 0
	}
	return &Writer{
		buf:  make([]byte, capacity),
		grow: grow,
	}
}

// --------------------------------------------------------------------------
// Add Operations
// --------------------------------------------------------------------------

// AddInsert encodes an insert record. It returns false without modifying the
// buffer if the record does not fit and the buffer cannot grow.
func (w *Writer) AddInsert(row, family, qualifier []byte, timestamp int64, value []byte) bool {
	return pack(w, "add insert", opInsert, row, family, qualifier, timestamp, value)
}

// AddDeleteRow encodes a delete of the whole row.
func (w *Writer) AddDeleteRow(row []byte, timestamp int64) bool {
	return pack(w, "add delete row", opDeleteRow, row, nil, nil, timestamp, nil)
}

// AddDeleteColumnFamily encodes a delete of one column family of a row.
func (w *Writer) AddDeleteColumnFamily(row, family []byte, timestamp int64) bool {
	return pack(w, "add delete column family", opDeleteColumnFamily, row, family, nil, timestamp, nil)
}

// AddDeleteCell encodes a delete of a single cell.
func (w *Writer) AddDeleteCell(row, family, qualifier []byte, timestamp int64) bool {
	return pack(w, "add delete cell", opDeleteCell, row, family, qualifier, timestamp, nil)
}

// Add encodes a cell according to its key flag. Family, qualifier and value are
// ignored for the delete kinds that do not use them.
func (w *Writer) Add(cell Cell) bool {
	k := cell.Key
	switch k.Flag {
	case KeyFlagInsert:
		return pack(w, "add", opInsert, k.Row, k.ColumnFamily, k.ColumnQualifier, k.Timestamp, cell.Value)
	case KeyFlagDeleteRow:
		return pack(w, "add", opDeleteRow, k.Row, "", "", k.Timestamp, nil)
	case KeyFlagDeleteColumnFamily:
		return pack(w, "add", opDeleteColumnFamily, k.Row, k.ColumnFamily, "", k.Timestamp, nil)
	case KeyFlagDeleteCell:
		return pack(w, "add", opDeleteCell, k.Row, k.ColumnFamily, k.ColumnQualifier, k.Timestamp, nil)
	default:
		panic(&MisuseError{Op: "add", Reason: fmt.Sprintf("unknown key flag %d", uint8(k.Flag))})
	}
}

// AppendRaw splices already encoded records (without terminator) into the
// buffer. It follows the same capacity rules as the add operations.
func (w *Writer) AppendRaw(records []byte) bool {
	w.mustBeOpen("append raw")
	if len(records) == 0 {
		return true
	}
	if !w.reserve(len(records)) {
		return false
	}
	w.pos += copy(w.buf[w.pos:], records)
	return true
}

// AppendFinalized splices the records of a finalized stream, as returned by
// Bytes of another writer. The trailing terminator is dropped.
// A stream that does not decode up to a terminator in its last byte panics.
func (w *Writer) AppendFinalized(stream []byte) bool {
	w.mustBeOpen("append finalized")
	if _, err := Validate(stream); err != nil {
		panic(&MisuseError{Op: "append finalized", Reason: "stream is not finalized: " + err.Error()})
	}
	return w.AppendRaw(stream[:len(stream)-1])
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Finalize appends the terminator FlagEndOfBuffer|extra. No further records can
// be added until Clear is called. Finalizing twice panics.
func (w *Writer) Finalize(extra Flag) {
	if w.finalized {
		panic(&MisuseError{Op: "finalize", Reason: "writer is already finalized"})
	}
	// only reachable for an empty writer created with capacity 0
	if w.pos == len(w.buf) {
		buf := make([]byte, w.pos+1)
		copy(buf, w.buf[:w.pos])
		w.buf = buf
	}
	w.buf[w.pos] = byte(FlagEndOfBuffer | extra)
	w.pos++
	w.finalized = true
}

// Bytes finalizes the writer if needed and returns a copy of the stream.
// Calling Bytes again without modification returns identical content.
func (w *Writer) Bytes() []byte {
	if !w.finalized {
		w.Finalize(FlagEndOfBuffer)
	}
	out := make([]byte, w.pos)
	copy(out, w.buf[:w.pos])
	return out
}

// Buffer finalizes the writer if needed and returns the stream without copying.
// The returned slice aliases the internal buffer and is invalidated by Clear
// and by any add call.
func (w *Writer) Buffer() []byte {
	if !w.finalized {
		w.Finalize(FlagEndOfBuffer)
	}
	return w.buf[:w.pos:w.pos]
}

// IsEmpty reports whether no record was written since construction or Clear.
func (w *Writer) IsEmpty() bool {
	if w.finalized {
		return w.pos == 1
	}
	return w.pos == 0
}

// Clear resets the writer for reuse. The allocated buffer is kept.
func (w *Writer) Clear() {
	w.pos = 0
	w.finalized = false
}

// Cap returns the allocated buffer size in bytes.
func (w *Writer) Cap() int {
	return len(w.buf)
}

// Len returns the number of bytes written, including the terminator once finalized.
func (w *Writer) Len() int {
	return w.pos
}

// IsFinalized reports whether the terminator has been written.
func (w *Writer) IsFinalized() bool {
	return w.finalized
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// pack is the single encoder behind all add operations
func pack[T byteString](w *Writer, opName string, op Flag, row, family, qualifier T, timestamp int64, value []byte) bool {
	w.mustBeOpen(opName)
	mustNotContainNul(opName, "row", row)
	mustNotContainNul(opName, "column family", family)
	mustNotContainNul(opName, "column qualifier", qualifier)
	if uint64(len(value)) > math.MaxUint32 {
		panic(&MisuseError{Op: opName, Reason: "value exceeds 4 GiB"})
	}

	control := op
	size := recordOverhead + len(row) + len(family) + len(qualifier) + len(value)
	switch timestamp {
	case TimestampNull:
	case TimestampAutoAssign:
		control |= FlagAutoTimestamp
	default:
		control |= FlagHaveTimestamp
		size += 8
	}

	if !w.reserve(size) {
		return false
	}

	b := w.buf[w.pos : w.pos+size]
	b[0] = byte(control)
	n := 1
	if control&FlagHaveTimestamp != 0 {
		binary.LittleEndian.PutUint64(b[n:], uint64(timestamp))
		n += 8
	}
	n += copy(b[n:], row)
	b[n] = 0
	n++
	n += copy(b[n:], family)
	b[n] = 0
	n++
	n += copy(b[n:], qualifier)
	b[n] = 0
	n++
	binary.LittleEndian.PutUint32(b[n:], uint32(len(value)))
	n += 4
	copy(b[n:], value)

	w.pos += size
	return true
}

// reserve makes room for n record bytes plus the terminator.
// It returns false if the record must be rejected, the buffer is unchanged then.
func (w *Writer) reserve(n int) bool {
	need := n + 1
	if need <= len(w.buf)-w.pos {
		return true
	}

	switch {
	case w.pos == 0:
		// an empty writer always takes one record, whatever the grow flag says
		w.buf = make([]byte, need)
	case w.grow:
		size := (len(w.buf) + n) * 3 / 2
		if size < w.pos+need {
			size = w.pos + need
		}
		buf := make([]byte, size)
		copy(buf, w.buf[:w.pos])
		w.buf = buf
	default:
		return false
	}
	return true
}

// mustBeOpen panics if the writer was finalized
func (w *Writer) mustBeOpen(op string) {
	if w.finalized {
		panic(&MisuseError{Op: op, Reason: "writer is finalized, call Clear first"})
	}
}

// mustNotContainNul panics if s contains a NUL byte
func mustNotContainNul[T byteString](op, field string, s T) {
	if i := indexNul(s); i >= 0 {
		panic(&MisuseError{Op: op, Reason: fmt.Sprintf("%s contains a NUL byte at offset %d", field, i)})
	}
}

// indexNul returns the index of the first NUL byte in s or -1
func indexNul[T byteString](s T) int {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return i
		}
	}
	return -1
}
