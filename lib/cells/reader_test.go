package cells

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
)

// testCells returns a mixed sequence covering every record kind and timestamp mode
func testCells() []Cell {
	return []Cell{
		NewInsert("row1", "col", "", TimestampAutoAssign, []byte("v1")),
		NewInsert("row1", "col", "q1", 1234567890, []byte("value with spaces")),
		NewInsert("row2", "", "", TimestampNull, nil),
		NewInsert("row2", "cf", "q", -42, []byte{0, 1, 2, 0}),
		NewDeleteCell("row2", "cf", "q", TimestampNull),
		NewDeleteColumnFamily("row3", "cf", TimestampAutoAssign),
		NewDeleteRow("row4", 99),
		NewDeleteRow("", TimestampNull),
		NewInsert("\xff\xfe", "\x01", "\x7f", 0, []byte("binary keys")),
	}
}

// TestRoundTrip tests that decoding an encoded sequence yields the same cells
func TestRoundTrip(t *testing.T) {
	for _, grow := range []bool{true, false} {
		w := NewWriter(1<<12, grow)
		input := testCells()
		for i, c := range input {
			if !w.Add(c) {
				t.Fatalf("grow=%v: add %d returned false", grow, i)
			}
		}

		output, err := Decode(w.Bytes())
		if err != nil {
			t.Fatalf("grow=%v: decode failed: %v", grow, err)
		}

		if diff := cmp.Diff(input, output, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("grow=%v: round trip mismatch (-want +got):\n%s", grow, diff)
		}
	}
}

// TestReaderTerminatorFlag tests that the extra terminator flags are exposed
func TestReaderTerminatorFlag(t *testing.T) {
	w := NewWriter(64, false)
	w.Add(NewDeleteRow("r", TimestampNull))
	w.Finalize(FlagFlush)

	r := NewReader(w.Buffer())
	count := 0
	for r.Next() {
		count++
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
	if count != 1 {
		t.Errorf("expected 1 cell, got %d", count)
	}
	if r.Flag()&FlagFlush == 0 {
		t.Errorf("expected flush flag on terminator, got %s", r.Flag())
	}
	if r.Offset() != w.Len() {
		t.Errorf("expected reader to consume %d bytes, consumed %d", w.Len(), r.Offset())
	}
	// further calls stay at the end
	if r.Next() {
		t.Errorf("Next returned true after the terminator")
	}
}

// TestReaderRevision tests decoding of the reserved revision field
func TestReaderRevision(t *testing.T) {
	record := func(control Flag, ints ...int64) []byte {
		out := []byte{byte(control)}
		for _, v := range ints {
			out = binary.LittleEndian.AppendUint64(out, uint64(v))
		}
		out = append(out, 'r', 0, 0, 0, 0, 0, 0, 0)
		return append(out, byte(FlagEndOfBuffer))
	}

	testCases := []struct {
		name string
		data []byte
		want Key
	}{
		{
			name: "explicit revision",
			data: record(opInsert|FlagHaveTimestamp|FlagHaveRevision, 10, 20),
			want: Key{Row: "r", Timestamp: 10, Revision: 20, Flag: KeyFlagInsert},
		},
		{
			name: "revision is timestamp",
			data: record(opInsert|FlagHaveTimestamp|FlagHaveRevision|FlagRevIsTS, 10),
			want: Key{Row: "r", Timestamp: 10, Revision: 10, Flag: KeyFlagInsert},
		},
		{
			name: "revision without timestamp",
			data: record(opDeleteRow|FlagHaveRevision, 7),
			want: Key{Row: "r", Timestamp: TimestampNull, Revision: 7, Flag: KeyFlagDeleteRow},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.data)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 cell, got %d", len(got))
			}
			if diff := cmp.Diff(tc.want, got[0].Key); diff != "" {
				t.Errorf("key mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestReaderTruncated tests that every proper prefix of a stream is rejected
func TestReaderTruncated(t *testing.T) {
	w := NewWriter(256, false)
	for _, c := range testCells() {
		w.Add(c)
	}
	stream := w.Bytes()

	for i := 0; i < len(stream); i++ {
		_, err := Decode(stream[:i])
		if err == nil {
			t.Fatalf("prefix of length %d decoded without error", i)
		}
		if !errors.Is(err, ErrTruncated) && !errors.Is(err, ErrMissingTerminator) {
			t.Errorf("prefix of length %d: unexpected error %v", i, err)
		}
	}
}

// TestReaderUnknownOperation tests that invalid operation bits are reported
func TestReaderUnknownOperation(t *testing.T) {
	for _, control := range []byte{0x00, 0x0A, 0x0C, 0x0E, 0x40} {
		_, err := Decode([]byte{control, 'r', 0, 0, 0, 0, 0, 0, 0, 0x01})
		if !errors.Is(err, ErrUnknownOperation) {
			t.Errorf("control 0x%02x: expected ErrUnknownOperation, got %v", control, err)
		}
	}
}

// TestValidate tests that only complete streams ending at their terminator pass
func TestValidate(t *testing.T) {
	w := NewWriter(256, false)
	for _, c := range testCells() {
		w.Add(c)
	}
	stream := w.Bytes()

	n, err := Validate(stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(testCells()) {
		t.Errorf("expected %d records, got %d", len(testCells()), n)
	}

	if _, err := Validate(append(append([]byte{}, stream...), 'x')); !errors.Is(err, ErrTrailingData) {
		t.Errorf("expected ErrTrailingData, got %v", err)
	}
	if _, err := Validate(nil); !errors.Is(err, ErrMissingTerminator) {
		t.Errorf("expected ErrMissingTerminator for empty data, got %v", err)
	}
	for i := 1; i < len(stream); i++ {
		if _, err := Validate(stream[:i]); err == nil {
			t.Fatalf("prefix of length %d validated", i)
		}
	}
}

// TestValidateCell tests that ValidateCell accepts exactly what Add encodes
func TestValidateCell(t *testing.T) {
	testCases := []struct {
		name string
		cell Cell
		want error
	}{
		{"insert", NewInsert("r", "f", "q", 1, []byte("v")), nil},
		{"NUL in row", NewInsert("a\x00b", "f", "q", 1, nil), ErrEmbeddedNul},
		{"NUL in qualifier", NewDeleteCell("r", "f", "q\x00", 1), ErrEmbeddedNul},
		{"NUL in family", NewDeleteColumnFamily("r", "\x00", 1), ErrEmbeddedNul},
		{"unused family of delete row", Cell{Key: Key{Row: "r", ColumnFamily: "\x00", Flag: KeyFlagDeleteRow}}, nil},
		{"unknown key flag", Cell{Key: Key{Row: "r", Flag: KeyFlag(7)}}, ErrUnknownKeyFlag},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCell(tc.cell)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !NewWriter(64, false).Add(tc.cell) {
					t.Errorf("valid cell rejected by the writer")
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// TestReaderEmptyStream tests a stream consisting only of the terminator
func TestReaderEmptyStream(t *testing.T) {
	got, err := Decode(NewWriter(0, false).Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no cells, got %d", len(got))
	}
}

// TestFlagString tests the human-readable form of control bytes
func TestFlagString(t *testing.T) {
	testCases := []struct {
		flag Flag
		want string
	}{
		{opInsert | FlagAutoTimestamp, "INSERT|AUTO_TIMESTAMP"},
		{opDeleteCell | FlagHaveTimestamp, "DELETE_CELL|HAVE_TIMESTAMP"},
		{FlagEndOfBuffer | FlagFlush, "EOB|FLUSH"},
		{FlagEndOfBuffer | FlagEndOfScan, "EOB|EOS"},
		{0, "NONE"},
	}
	for _, tc := range testCases {
		if got := tc.flag.String(); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}
