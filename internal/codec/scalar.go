package codec

import (
	"encoding/binary"
	"strconv"
)

// DecodeUint8 decodes a single unsigned byte.
func DecodeUint8(b []byte) (uint8, error) {
	if len(b) != 1 {
		return 0, lengthError("uint8", "1", len(b))
	}
	return b[0], nil
}

// EncodeUint8 is the inverse of DecodeUint8.
func EncodeUint8(v uint8) ([]byte, error) {
	return []byte{v}, nil
}

// DecodeUint16 decodes a little-endian unsigned 16-bit value.
func DecodeUint16(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, lengthError("uint16", "2", len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

// EncodeUint16 is the inverse of DecodeUint16.
func EncodeUint16(v uint16) ([]byte, error) {
	return binary.LittleEndian.AppendUint16(nil, v), nil
}

// DecodeUint32 decodes a little-endian unsigned 32-bit value. Step count and
// acceleration energy magnitude use this layout.
func DecodeUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, lengthError("uint32", "4", len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

// EncodeUint32 is the inverse of DecodeUint32.
func EncodeUint32(v uint32) ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, v), nil
}

// DecodeBatteryLevel decodes the battery level percentage.
func DecodeBatteryLevel(b []byte) (uint8, error) {
	v, err := DecodeUint8(b)
	if err != nil {
		return 0, err
	}
	if v > 100 {
		return 0, &FieldError{Value: "battery level", Field: "percent", Msg: strconv.Itoa(int(v)) + " is above 100"}
	}
	return v, nil
}

// DecodeRaw copies the buffer unchanged.
func DecodeRaw(b []byte) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// EncodeRaw copies the buffer unchanged.
func EncodeRaw(b []byte) ([]byte, error) {
	return DecodeRaw(b)
}
