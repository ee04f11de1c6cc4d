// Package serializer converts RPC messages to bytes and back.
//
// Three implementations share the IRPCSerializer interface and can be selected
// by name with New:
//
//   - binary: a compact format with a presence bit per optional field. Only set
//     fields are written, cell streams are embedded as length prefixed byte
//     ranges and copied on decode so a message never aliases a transport buffer.
//   - json: readable payloads (cell streams become base64), handy when talking
//     to the http transport with curl.
//   - gob: Go's gob encoding. Every payload repeats the type description, which
//     makes it the largest of the three.
//
// The benchmarks in this package (BenchmarkSerialize, BenchmarkDeserialize,
// BenchmarkSize) compare the three on typical mutator traffic. Binary is the
// default of the command line tools.
//
// All serializers are stateless and safe for concurrent use.
//
// Usage:
//
//	s, err := serializer.New("binary")
//	data, err := s.Serialize(msg)
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(received, &resp)
package serializer
