package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/cellwire/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte), presence flags (2 bytes, big endian), followed by
// the present fields in the order of the flag bits. Strings and byte slices are
// prefixed with a 4 byte length.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasTable  uint16 = 1 << 0
	hasRow    uint16 = 1 << 1
	hasEndRow uint16 = 1 << 2
	hasHandle uint16 = 1 << 3
	hasFlags  uint16 = 1 << 4
	hasCells  uint16 = 1 << 5
	hasCount  uint16 = 1 << 6
	hasOk     uint16 = 1 << 7
	hasErr    uint16 = 1 << 8
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Name() string {
	return "binary"
}

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, headerSize, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags
	var flags uint16 = 0

	if msg.Table != "" {
		flags |= hasTable
		result = appendBytes(result, msg.Table)
	}
	if msg.Row != "" {
		flags |= hasRow
		result = appendBytes(result, msg.Row)
	}
	if msg.EndRow != "" {
		flags |= hasEndRow
		result = appendBytes(result, msg.EndRow)
	}
	if msg.Handle > 0 {
		flags |= hasHandle
		result = binary.BigEndian.AppendUint64(result, msg.Handle)
	}
	if msg.Flags > 0 {
		flags |= hasFlags
		result = binary.BigEndian.AppendUint32(result, msg.Flags)
	}
	if msg.Cells != nil {
		flags |= hasCells
		result = appendBytes(result, msg.Cells)
	}
	if msg.Count > 0 {
		flags |= hasCount
		result = binary.BigEndian.AppendUint64(result, msg.Count)
	}
	if msg.Ok {
		flags |= hasOk
		result = append(result, 1)
	}
	if msg.Err != "" {
		flags |= hasErr
		result = appendBytes(result, msg.Err)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type and flags
	msg.MsgType = common.MessageType(data[0])
	flags := binary.BigEndian.Uint16(data[1:3])

	r := &fieldReader{data: data, pos: headerSize}

	msg.Table = ""
	if flags&hasTable != 0 {
		msg.Table = string(r.bytes("table"))
	}
	msg.Row = ""
	if flags&hasRow != 0 {
		msg.Row = string(r.bytes("row"))
	}
	msg.EndRow = ""
	if flags&hasEndRow != 0 {
		msg.EndRow = string(r.bytes("end row"))
	}
	msg.Handle = 0
	if flags&hasHandle != 0 {
		msg.Handle = r.uint64("handle")
	}
	msg.Flags = 0
	if flags&hasFlags != 0 {
		msg.Flags = r.uint32("flags")
	}
	msg.Cells = nil
	if flags&hasCells != 0 {
		// copy, the transport may reuse data after the request was handled
		raw := r.bytes("cells")
		msg.Cells = make([]byte, len(raw))
		copy(msg.Cells, raw)
	}
	msg.Count = 0
	if flags&hasCount != 0 {
		msg.Count = r.uint64("count")
	}
	msg.Ok = false
	if flags&hasOk != 0 {
		msg.Ok = r.uint8("ok") != 0
	}
	msg.Err = ""
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes("error"))
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	// Add sizes for fields that require length encoding
	if msg.Table != "" {
		size += 4 + len(msg.Table)
	}
	if msg.Row != "" {
		size += 4 + len(msg.Row)
	}
	if msg.EndRow != "" {
		size += 4 + len(msg.EndRow)
	}
	if msg.Handle > 0 {
		size += 8
	}
	if msg.Flags > 0 {
		size += 4
	}
	if msg.Cells != nil {
		size += 4 + len(msg.Cells)
	}
	if msg.Count > 0 {
		size += 8
	}
	if msg.Ok {
		size += 1
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	return size
}

// appendBytes appends a length prefixed string or byte slice
func appendBytes[T ~string | ~[]byte](dst []byte, s T) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// fieldReader reads fields sequentially and remembers the first error
type fieldReader struct {
	data []byte
	pos  int
	err  error
}

func (r *fieldReader) next(field string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *fieldReader) bytes(field string) []byte {
	l := r.next(field+" length", 4)
	if l == nil {
		return nil
	}
	return r.next(field+" data", int(binary.BigEndian.Uint32(l)))
}

func (r *fieldReader) uint64(field string) uint64 {
	if b := r.next(field, 8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *fieldReader) uint32(field string) uint32 {
	if b := r.next(field, 4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *fieldReader) uint8(field string) uint8 {
	if b := r.next(field, 1); b != nil {
		return b[0]
	}
	return 0
}
