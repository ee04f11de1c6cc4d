// Package cells implements the serialized cells wire format, a compact binary
// encoding for batches of row mutations (inserts and the three delete variants)
// that are shipped to a table server as one opaque payload.
//
// The package focuses on:
//   - Writer: an append-only encoder that packs mutation records into a single
//     byte buffer with explicit capacity and growth control
//   - Reader: a decoder that walks a finalized stream record by record
//   - Cell and Key: the logical model of one mutation
//
// Wire Format:
//
// All integers are little endian. A stream is a sequence of records followed by a
// single terminator byte:
//
//	stream     := record* terminator
//	record     := control [ts:8] [rev:8] row 0x00 family 0x00 qualifier 0x00 vlen:4 value
//	terminator := control with FlagEndOfBuffer set
//
// The control byte carries the modifier flags (FlagHaveTimestamp, FlagAutoTimestamp,
// FlagHaveRevision, FlagRevIsTS) and, in bits 1-3, the operation of the record.
// On the terminator the same bits carry FlagEndOfScan and FlagFlush instead. The
// value length field is present on every record, deletes always write zero.
//
// Timestamps:
//
// TimestampAutoAssign asks the server to assign a timestamp and is encoded as a
// flag without the 8 byte field. TimestampNull writes neither flag nor field. Any
// other value is written verbatim.
//
// Capacity and Growth:
//
// A Writer is created with an initial capacity and a grow flag. When a record does
// not fit, the writer either grows to (capacity + record) * 3 / 2, or, with growth
// disabled, rejects the record by returning false and leaves the buffer untouched.
// An empty writer always accepts one record, whatever its initial capacity. One byte
// is always kept free for the terminator.
//
// Misuse:
//
// Adding to a finalized writer, finalizing twice and row/family/qualifier values
// containing a NUL byte are programming faults. The writer panics with a
// *MisuseError instead of producing a corrupt stream. ValidateCell rejects bad
// cells up front with an error, Validate does the same for encoded streams.
//
// Thread Safety:
//
//	Neither Writer nor Reader is safe for concurrent use. Producers running in
//	parallel should each own a Writer and merge their output with AppendRaw or
//	AppendFinalized under external synchronization.
//
// Example:
//
//	w := cells.NewWriter(4096, false)
//	if !w.AddInsert([]byte("row1"), []byte("col"), nil, cells.TimestampAutoAssign, []byte("v1")) {
//		// buffer full: send w.Bytes(), w.Clear() and retry
//	}
//	payload := w.Bytes()
package cells
