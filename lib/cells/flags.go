package cells

import (
	"math"
	"strings"
)

// --------------------------------------------------------------------------
// Control Byte Flags
// --------------------------------------------------------------------------

// Flag is a bit set stored in the control byte of a record or of the terminator.
type Flag uint8

const (
	FlagEndOfBuffer   Flag = 0x01 // Terminator, ends the stream
	FlagEndOfScan     Flag = 0x02 // Terminator only: no more data will follow
	FlagFlush         Flag = 0x04 // Terminator only: receiver should flush after applying
	FlagRevIsTS       Flag = 0x10 // Revision equals the timestamp
	FlagAutoTimestamp Flag = 0x20 // Server assigns the timestamp, no field follows
	FlagHaveTimestamp Flag = 0x40 // 8 byte timestamp follows the control byte
	FlagHaveRevision  Flag = 0x80 // 8 byte revision follows unless FlagRevIsTS is set
)

// operation field (bits 1-3), only meaningful on records
const (
	opMask               Flag = 0x0E
	opDeleteRow          Flag = 0x02
	opDeleteColumnFamily Flag = 0x04
	opDeleteCell         Flag = 0x06
	opInsert             Flag = 0x08
)

// String returns the names of the set flags joined by "|".
// Bits 1-3 are named as terminator flags if FlagEndOfBuffer is set and as the
// record operation otherwise.
func (f Flag) String() string {
	var parts []string
	if f&FlagEndOfBuffer != 0 {
		parts = append(parts, "EOB")
		if f&FlagEndOfScan != 0 {
			parts = append(parts, "EOS")
		}
		if f&FlagFlush != 0 {
			parts = append(parts, "FLUSH")
		}
	} else if kf, ok := keyFlagFromOp(f & opMask); ok {
		parts = append(parts, strings.ToUpper(kf.String()))
	}
	if f&FlagRevIsTS != 0 {
		parts = append(parts, "REV_IS_TS")
	}
	if f&FlagAutoTimestamp != 0 {
		parts = append(parts, "AUTO_TIMESTAMP")
	}
	if f&FlagHaveTimestamp != 0 {
		parts = append(parts, "HAVE_TIMESTAMP")
	}
	if f&FlagHaveRevision != 0 {
		parts = append(parts, "HAVE_REVISION")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// --------------------------------------------------------------------------
// Timestamp Sentinels
// --------------------------------------------------------------------------

const (
	// TimestampNull omits the timestamp entirely.
	TimestampNull int64 = math.MinInt64 + 1
	// TimestampAutoAssign lets the server assign the timestamp.
	TimestampAutoAssign int64 = math.MinInt64 + 2
)

// IsSentinel reports whether ts is one of the reserved timestamp values.
func IsSentinel(ts int64) bool {
	return ts == TimestampNull || ts == TimestampAutoAssign
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// opFromKeyFlag maps a key flag to the operation bits of the control byte
func opFromKeyFlag(kf KeyFlag) (Flag, bool) {
	switch kf {
	case KeyFlagInsert:
		return opInsert, true
	case KeyFlagDeleteRow:
		return opDeleteRow, true
	case KeyFlagDeleteColumnFamily:
		return opDeleteColumnFamily, true
	case KeyFlagDeleteCell:
		return opDeleteCell, true
	default:
		return 0, false
	}
}

// keyFlagFromOp is the inverse of opFromKeyFlag
func keyFlagFromOp(op Flag) (KeyFlag, bool) {
	switch op {
	case opInsert:
		return KeyFlagInsert, true
	case opDeleteRow:
		return KeyFlagDeleteRow, true
	case opDeleteColumnFamily:
		return KeyFlagDeleteColumnFamily, true
	case opDeleteCell:
		return KeyFlagDeleteCell, true
	default:
		return 0, false
	}
}
