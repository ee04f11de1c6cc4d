package serializer

import (
	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/pkg/errors"
)

// IRPCSerializer converts Messages to and from the bytes a transport carries.
// Client and server must use the same serializer.
type IRPCSerializer interface {
	// Name returns the name the serializer is selected by (see New)
	Name() string
	// Serialize serializes a Message into a byte array
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Fields of msg that are not present in b are reset.
	// The Cells of the decoded message must not alias b.
	Deserialize(b []byte, msg *common.Message) error
}

// Names lists the names accepted by New
var Names = []string{"binary", "json", "gob"}

// New returns the serializer with the given name
func New(name string) (IRPCSerializer, error) {
	switch name {
	case "binary":
		return NewBinarySerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, errors.Errorf("unknown serializer %q (available: %v)", name, Names)
	}
}
