package codec

import (
	"encoding/binary"
	"math"
)

// Reserved IEEE-11073 32-bit FLOAT mantissas.
const (
	floatNaN      int32 = 0x7FFFFF
	floatNRes     int32 = -0x800000
	floatPlusInf  int32 = 0x7FFFFE
	floatMinusInf int32 = -0x7FFFFE
	floatReserved int32 = -0x7FFFFF
)

// Float11073Size is the serialized size of an IEEE-11073 FLOAT.
const Float11073Size = 4

// DecodeFloat11073 decodes a 24-bit signed mantissa (little-endian) followed
// by a signed base-10 exponent byte.
func DecodeFloat11073(b []byte) (float64, error) {
	if len(b) != Float11073Size {
		return 0, lengthError("ieee-11073 float", "4", len(b))
	}

	mantissa := signExtend24(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
	exponent := int8(b[3])

	switch mantissa {
	case floatNaN, floatNRes, floatReserved:
		return math.NaN(), nil
	case floatPlusInf:
		return math.Inf(1), nil
	case floatMinusInf:
		return math.Inf(-1), nil
	}

	if exponent < 0 {
		return float64(mantissa) / math.Pow10(-int(exponent)), nil
	}
	return float64(mantissa) * math.Pow10(int(exponent)), nil
}

// EncodeFloat11073 encodes mantissa*10^exponent. The mantissa must fit in 24
// signed bits and must not collide with a reserved value.
func EncodeFloat11073(mantissa int32, exponent int8) ([]byte, error) {
	if mantissa < -0x7FFFFD || mantissa > 0x7FFFFD {
		return nil, &FieldError{Value: "ieee-11073 float", Field: "mantissa", Msg: "out of 24-bit range"}
	}
	u := uint32(mantissa) & 0xFFFFFF
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(exponent)}, nil
}

// FloatNaN11073 is the serialized "not a number" value.
func FloatNaN11073() []byte {
	buf := make([]byte, Float11073Size)
	binary.LittleEndian.PutUint32(buf, uint32(floatNaN))
	return buf
}

// signExtend24 reinterprets the low 24 bits of v as two's complement.
func signExtend24(v uint32) int32 {
	v &= 0xFFFFFF
	if v >= 1<<23 {
		return int32(v) - 1<<24
	}
	return int32(v)
}
