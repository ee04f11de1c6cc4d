package cells

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
)

// --------------------------------------------------------------------------
// Key Flag
// --------------------------------------------------------------------------

// KeyFlag selects the mutation a cell describes.
// The numeric values match the key flags of the table server protocol.
type KeyFlag uint8

const (
	KeyFlagDeleteRow          KeyFlag = 0   // Delete the whole row
	KeyFlagDeleteColumnFamily KeyFlag = 1   // Delete all cells of one column family in a row
	KeyFlagDeleteCell         KeyFlag = 2   // Delete one cell (family + qualifier)
	KeyFlagInsert             KeyFlag = 255 // Insert or update a cell
)

// String returns the string representation of a KeyFlag.
func (f KeyFlag) String() string {
	switch f {
	case KeyFlagDeleteRow:
		return "delete_row"
	case KeyFlagDeleteColumnFamily:
		return "delete_cf"
	case KeyFlagDeleteCell:
		return "delete_cell"
	case KeyFlagInsert:
		return "insert"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// ParseKeyFlag converts the string representation back to a KeyFlag.
// The empty string is read as an insert.
func ParseKeyFlag(s string) (KeyFlag, error) {
	switch s {
	case "insert", "":
		return KeyFlagInsert, nil
	case "delete_row":
		return KeyFlagDeleteRow, nil
	case "delete_cf":
		return KeyFlagDeleteColumnFamily, nil
	case "delete_cell":
		return KeyFlagDeleteCell, nil
	default:
		return 0, errors.Errorf("unknown key flag: %s", s)
	}
}

// MarshalText implements encoding.TextMarshaler so a KeyFlag is written as a string in JSON.
func (f KeyFlag) MarshalText() ([]byte, error) {
	if _, ok := opFromKeyFlag(f); !ok {
		return nil, errors.Errorf("unknown key flag: %d", uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *KeyFlag) UnmarshalText(text []byte) error {
	kf, err := ParseKeyFlag(string(text))
	if err != nil {
		return err
	}
	*f = kf
	return nil
}

// --------------------------------------------------------------------------
// Key and Cell
// --------------------------------------------------------------------------

// Key identifies the target of a mutation.
// Timestamp may hold one of the sentinels TimestampNull or TimestampAutoAssign.
type Key struct {
	Row             string  `json:"row"`
	ColumnFamily    string  `json:"column_family,omitempty"`
	ColumnQualifier string  `json:"column_qualifier,omitempty"`
	Timestamp       int64   `json:"timestamp"`
	Revision        int64   `json:"revision,omitempty"`
	Flag            KeyFlag `json:"flag"`
}

// Cell is a single mutation: a key plus the value for inserts.
type Cell struct {
	Key   Key    `json:"key"`
	Value []byte `json:"value,omitempty"`
}

// String returns a compact human-readable form of the cell
func (c Cell) String() string {
	ts := "null"
	switch c.Key.Timestamp {
	case TimestampNull:
	case TimestampAutoAssign:
		ts = "auto"
	default:
		ts = fmt.Sprintf("%d", c.Key.Timestamp)
	}
	if c.Key.Flag == KeyFlagInsert {
		return fmt.Sprintf("%s %s:%s @%s = %q", c.Key.Row, c.Key.ColumnFamily, c.Key.ColumnQualifier, ts, c.Value)
	}
	return fmt.Sprintf("%s %s:%s @%s %s", c.Key.Row, c.Key.ColumnFamily, c.Key.ColumnQualifier, ts, c.Key.Flag)
}

// NewInsert creates an insert cell
func NewInsert(row, family, qualifier string, timestamp int64, value []byte) Cell {
	return Cell{
		Key: Key{
			Row:             row,
			ColumnFamily:    family,
			ColumnQualifier: qualifier,
			Timestamp:       timestamp,
			Flag:            KeyFlagInsert,
		},
		Value: value,
	}
}

// NewDeleteRow creates a cell deleting a whole row
func NewDeleteRow(row string, timestamp int64) Cell {
	return Cell{Key: Key{Row: row, Timestamp: timestamp, Flag: KeyFlagDeleteRow}}
}

// NewDeleteColumnFamily creates a cell deleting one column family of a row
func NewDeleteColumnFamily(row, family string, timestamp int64) Cell {
	return Cell{Key: Key{Row: row, ColumnFamily: family, Timestamp: timestamp, Flag: KeyFlagDeleteColumnFamily}}
}

// NewDeleteCell creates a cell deleting a single column
func NewDeleteCell(row, family, qualifier string, timestamp int64) Cell {
	return Cell{Key: Key{Row: row, ColumnFamily: family, ColumnQualifier: qualifier, Timestamp: timestamp, Flag: KeyFlagDeleteCell}}
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// ErrEmbeddedNul is returned by ValidateKey for keys that cannot be encoded.
var ErrEmbeddedNul = errors.New("embedded NUL byte")

// ValidateKey checks that row, family and qualifier can be written to a stream.
// The Writer panics on keys this function rejects.
func ValidateKey(row, family, qualifier string) error {
	if i := indexNul(row); i >= 0 {
		return errors.Wrapf(ErrEmbeddedNul, "row at offset %d", i)
	}
	if i := indexNul(family); i >= 0 {
		return errors.Wrapf(ErrEmbeddedNul, "column family at offset %d", i)
	}
	if i := indexNul(qualifier); i >= 0 {
		return errors.Wrapf(ErrEmbeddedNul, "column qualifier at offset %d", i)
	}
	return nil
}

// ErrUnknownKeyFlag is returned by ValidateCell for cells the Writer cannot encode.
var ErrUnknownKeyFlag = errors.New("unknown key flag")

// ValidateCell checks that Writer.Add accepts the cell. It covers the key flag,
// the key fields the flag uses and the value length.
func ValidateCell(c Cell) error {
	k := c.Key
	switch k.Flag {
	case KeyFlagInsert:
		if uint64(len(c.Value)) > math.MaxUint32 {
			return errors.Errorf("value of %d bytes exceeds 4 GiB", len(c.Value))
		}
		return ValidateKey(k.Row, k.ColumnFamily, k.ColumnQualifier)
	case KeyFlagDeleteCell:
		return ValidateKey(k.Row, k.ColumnFamily, k.ColumnQualifier)
	case KeyFlagDeleteColumnFamily:
		return ValidateKey(k.Row, k.ColumnFamily, "")
	case KeyFlagDeleteRow:
		return ValidateKey(k.Row, "", "")
	default:
		return errors.Wrapf(ErrUnknownKeyFlag, "%d", uint8(k.Flag))
	}
}

// --------------------------------------------------------------------------
// Timestamps
// --------------------------------------------------------------------------

// TimestampFromTime converts t to a cell timestamp (nanoseconds since the Unix epoch)
func TimestampFromTime(t time.Time) int64 {
	return t.UnixNano()
}

// TimeFromTimestamp converts a cell timestamp back to a time.Time.
// The boolean is false for the sentinel values.
func TimeFromTimestamp(ts int64) (time.Time, bool) {
	if IsSentinel(ts) {
		return time.Time{}, false
	}
	return time.Unix(0, ts), true
}
