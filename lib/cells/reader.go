package cells

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var (
	// ErrTruncated is returned if a record ends before all of its fields were read
	ErrTruncated = errors.New("truncated stream")
	// ErrMissingTerminator is returned if the data ends without a terminator byte
	ErrMissingTerminator = errors.New("stream has no terminator")
	// ErrUnknownOperation is returned for records with an invalid operation field
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrTrailingData is returned by Validate if bytes follow the terminator
	ErrTrailingData = errors.New("data after terminator")
)

// Reader decodes a finalized stream record by record.
//
// Usage:
//
//	r := cells.NewReader(data)
//	for r.Next() {
//		cell := r.Cell()
//		...
//	}
//	if err := r.Err(); err != nil {
//		...
//	}
type Reader struct {
	data []byte
	pos  int
	cell Cell
	term Flag
	err  error
	done bool
}

// NewReader creates a reader for data. Values of the decoded cells alias data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Next decodes the next record. It returns false at the terminator or on error.
func (r *Reader) Next() bool {
	if r.done {
		return false
	}
	if r.pos >= len(r.data) {
		return r.fail(errors.Wrapf(ErrMissingTerminator, "after %d bytes", len(r.data)))
	}

	control := Flag(r.data[r.pos])
	r.pos++

	// terminator
	if control&FlagEndOfBuffer != 0 {
		r.term = control
		r.done = true
		return false
	}

	kf, ok := keyFlagFromOp(control & opMask)
	if !ok {
		return r.fail(errors.Wrapf(ErrUnknownOperation, "control byte 0x%02x at offset %d", uint8(control), r.pos-1))
	}

	key := Key{Flag: kf, Timestamp: TimestampNull}

	if control&FlagHaveTimestamp != 0 {
		ts, ok := r.readInt64()
		if !ok {
			return r.fail(r.tooShort("timestamp"))
		}
		key.Timestamp = ts
		if control&FlagRevIsTS != 0 {
			key.Revision = ts
		}
	} else if control&FlagAutoTimestamp != 0 {
		key.Timestamp = TimestampAutoAssign
	}

	if control&FlagHaveRevision != 0 && control&FlagRevIsTS == 0 {
		rev, ok := r.readInt64()
		if !ok {
			return r.fail(r.tooShort("revision"))
		}
		key.Revision = rev
	}

	if key.Row, ok = r.readString(); !ok {
		return r.fail(r.tooShort("row"))
	}
	if key.ColumnFamily, ok = r.readString(); !ok {
		return r.fail(r.tooShort("column family"))
	}
	if key.ColumnQualifier, ok = r.readString(); !ok {
		return r.fail(r.tooShort("column qualifier"))
	}

	if r.pos+4 > len(r.data) {
		return r.fail(r.tooShort("value length"))
	}
	valueLen := int(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4

	if valueLen > len(r.data)-r.pos {
		return r.fail(r.tooShort("value data"))
	}
	var value []byte
	if valueLen > 0 {
		value = r.data[r.pos : r.pos+valueLen : r.pos+valueLen]
	}
	r.pos += valueLen

	r.cell = Cell{Key: key, Value: value}
	return true
}

// Cell returns the record decoded by the last successful call to Next.
func (r *Reader) Cell() Cell {
	return r.cell
}

// Err returns the first decoding error, nil at a clean end of stream.
func (r *Reader) Err() error {
	return r.err
}

// Flag returns the terminator byte once Next returned false without error.
// Test it with FlagEndOfScan or FlagFlush.
func (r *Reader) Flag() Flag {
	return r.term
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.pos
}

// Decode reads all cells of a finalized stream.
func Decode(data []byte) ([]Cell, error) {
	var out []Cell
	r := NewReader(data)
	for r.Next() {
		out = append(out, r.Cell())
	}
	return out, r.Err()
}

// Validate checks that data is exactly one finalized stream: every record
// decodes and the terminator is the last byte. It returns the number of records.
func Validate(data []byte) (int, error) {
	n := 0
	r := NewReader(data)
	for r.Next() {
		n++
	}
	if err := r.Err(); err != nil {
		return n, err
	}
	if r.Offset() != len(data) {
		return n, errors.Wrapf(ErrTrailingData, "%d bytes after terminator at offset %d", len(data)-r.Offset(), r.Offset()-1)
	}
	return n, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (r *Reader) fail(err error) bool {
	r.err = err
	r.done = true
	return false
}

func (r *Reader) tooShort(field string) error {
	return errors.Wrapf(ErrTruncated, "data too short for %s at offset %d", field, r.pos)
}

// readInt64 reads a little endian int64
func (r *Reader) readInt64() (int64, bool) {
	if r.pos+8 > len(r.data) {
		return 0, false
	}
	v := int64(binary.LittleEndian.Uint64(r.data[r.pos:]))
	r.pos += 8
	return v, true
}

// readString reads a NUL terminated string
func (r *Reader) readString() (string, bool) {
	for i := r.pos; i < len(r.data); i++ {
		if r.data[i] == 0 {
			s := string(r.data[r.pos:i])
			r.pos = i + 1
			return s, true
		}
	}
	return "", false
}
