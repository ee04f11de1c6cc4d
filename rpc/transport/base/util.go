package base

import (
	"encoding/binary"
	"io"
	"math"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Frame layout, all integers big endian:
//
//	namespace (8) | request id (8) | payload length (4) | payload
const frameHeaderSize = 8 + 8 + 4

// MaxFrameSize is the largest payload a frame may carry. A header announcing
// more is treated as a corrupt stream and the connection is dropped.
const MaxFrameSize = 1 << 30

// ErrFrameTooLarge is returned for frames above MaxFrameSize
var ErrFrameTooLarge = errors.New("frame too large")

// writeFrame writes header and payload with a single vectored write
func writeFrame(conn net.Conn, namespace uint64, requestID uint64, data []byte) error {
	if len(data) > MaxFrameSize || uint64(len(data)) > math.MaxUint32 {
		return errors.Wrapf(ErrFrameTooLarge, "payload of %d bytes", len(data))
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint64(header[0:8], namespace)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header[:], data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one frame. The payload is read into buf if it is large
// enough, otherwise a new slice is allocated. The header is never kept in buf.
func readFrame(conn net.Conn, buf []byte) (namespace uint64, requestID uint64, data []byte, err error) {
	var header [frameHeaderSize]byte
	if _, err = io.ReadFull(conn, header[:]); err != nil {
		return 0, 0, nil, err
	}

	namespace = binary.BigEndian.Uint64(header[0:8])
	requestID = binary.BigEndian.Uint64(header[8:16])
	length := int(binary.BigEndian.Uint32(header[16:20]))

	if length > MaxFrameSize {
		return namespace, requestID, nil, errors.Wrapf(ErrFrameTooLarge, "header announces %d bytes", length)
	}
	if length == 0 {
		return namespace, requestID, []byte{}, nil
	}

	if len(buf) < length {
		buf = make([]byte, length)
	}
	if _, err = io.ReadFull(conn, buf[:length]); err != nil {
		return 0, 0, nil, err
	}
	return namespace, requestID, buf[:length], nil
}

// DialTimeout bounds connection attempts of the socket connectors
const DialTimeout = 5 * time.Second

// TrimScheme removes an optional "<scheme>://" prefix from an endpoint, so
// "tcp://localhost:8080" and "localhost:8080" address the same server
func TrimScheme(endpoint, scheme string) string {
	return strings.TrimPrefix(endpoint, scheme+"://")
}
