package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/cellwire/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Cell streams are carried base64 encoded, which makes this the slowest option
// but keeps messages readable when debugging the http transport.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializerImpl) Name() string {
	return "json"
}

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// omitempty fields are missing from the input and would keep their old value
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}
