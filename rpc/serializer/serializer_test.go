package serializer

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testStream returns a small finalized cell stream
func testStream() []byte {
	w := cells.NewWriter(128, true)
	w.AddInsert([]byte("row"), []byte("cf"), []byte("cq"), 42, []byte("value"))
	w.AddDeleteRow([]byte("old-row"), cells.TimestampAutoAssign)
	return w.Bytes()
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Mutator open request and response
		{
			MsgType: common.MsgTMutatorOpen,
			Table:   "users",
			Flags:   uint32(common.MutatorFlagNoLogSync | common.MutatorFlagIgnoreUnknownCFs),
		},
		{
			MsgType: common.MsgTMutatorOpen,
			Handle:  7,
		},

		// Mutator set cells request
		{
			MsgType: common.MsgTMutatorSetCells,
			Handle:  7,
			Cells:   testStream(),
		},

		// Scan response
		{
			MsgType: common.MsgTScanCells,
			Table:   "users",
			Row:     "a",
			EndRow:  "m",
			Cells:   testStream(),
			Count:   2,
			Ok:      true,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTScanCells; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestCellStreamSurvives checks that the cell stream inside a message decodes
// to the same cells after a round trip
func TestCellStreamSurvives(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			data, err := serializer.Serialize(*common.NewSetCellsRequest("users", testStream(), 0))
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			decoded, err := cells.Decode(result.Cells)
			if err != nil {
				t.Fatalf("Failed to decode cell stream: %v", err)
			}
			if len(decoded) != 2 {
				t.Fatalf("Expected 2 cells, got %d", len(decoded))
			}
			if decoded[0].Key.Timestamp != 42 || string(decoded[0].Value) != "value" {
				t.Errorf("Unexpected first cell %s", decoded[0])
			}
			if decoded[1].Key.Flag != cells.KeyFlagDeleteRow || decoded[1].Key.Timestamp != cells.TimestampAutoAssign {
				t.Errorf("Unexpected second cell %s", decoded[1])
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Message with empty strings and zero values",
			msg: common.Message{
				MsgType: common.MsgTGetCells,
				Table:   "",
				Row:     "",
				Handle:  0,
				Count:   0,
				Ok:      false,
			},
		},
		{
			name: "Message with empty cell slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTSetCells,
				Table:   "t",
				Cells:   []byte{},
			},
		},
		{
			name: "Message with all fields set",
			msg: common.Message{
				MsgType: common.MsgTScanCells,
				Table:   "t",
				Row:     "r",
				EndRow:  "s",
				Handle:  1 << 40,
				Flags:   7,
				Cells:   []byte{byte(cells.FlagEndOfBuffer)},
				Count:   3,
				Ok:      true,
				Err:     "e",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if (tc.msg.Cells == nil) != (result.Cells == nil) {
				t.Errorf("Cells nil/non-nil mismatch: expected %v, got %v", tc.msg.Cells, result.Cells)
			}
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Mismatch after round trip:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestBinaryDeserializeCopiesCells checks that the decoded message does not alias the input buffer
func TestBinaryDeserializeCopiesCells(t *testing.T) {
	serializer := NewBinarySerializer()
	stream := testStream()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTSetCells, Cells: stream})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}

	// overwrite the receive buffer like a pooled transport buffer would be
	for i := range data {
		data[i] = 0xFF
	}
	if !bytes.Equal(result.Cells, stream) {
		t.Errorf("Cells changed after the input buffer was reused")
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for table",
			data:        []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims table length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for cells",
			data:        []byte{1, 0, 0x20, 0, 0, 0, 10}, // Claims cells length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Missing handle",
			data:        []byte{1, 0, 0x08, 0, 0, 0}, // Handle needs 8 bytes
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestNew tests selecting a serializer by name
func TestNew(t *testing.T) {
	for _, name := range Names {
		s, err := New(name)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("expected serializer %q, got %q", name, s.Name())
		}
	}

	if _, err := New("xml"); err == nil {
		t.Errorf("expected error for unknown serializer")
	}
}

// TestDeserializeReusedMessage tests that decoding into a used message does not keep old fields
func TestDeserializeReusedMessage(t *testing.T) {
	full := common.Message{
		MsgType: common.MsgTMutatorSetCells,
		Table:   "users",
		Handle:  5,
		Cells:   testStream(),
		Count:   2,
		Err:     "old error",
	}
	empty := common.Message{MsgType: common.MsgTSuccess}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			first, err := serializer.Serialize(full)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			second, err := serializer.Serialize(empty)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var msg common.Message
			if err := serializer.Deserialize(first, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if err := serializer.Deserialize(second, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if !reflect.DeepEqual(empty, msg) {
				t.Errorf("Reused message keeps old fields: %+v", msg)
			}
		})
	}
}
