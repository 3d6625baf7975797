package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUint32(t *testing.T) {
	v, err := DecodeUint32([]byte{0x10, 0x27, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint32(10000), v)

	for _, input := range [][]byte{nil, {1, 2, 3}, {1, 2, 3, 4, 5}} {
		_, err := DecodeUint32(input)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	}
}

func TestDecodeUint16(t *testing.T) {
	v, err := DecodeUint16([]byte{0x3C, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint16(60), v)

	_, err = DecodeUint16([]byte{0x3C})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeBatteryLevel(t *testing.T) {
	v, err := DecodeBatteryLevel([]byte{87})
	require.NoError(t, err)
	assert.Equal(t, uint8(87), v)

	_, err = DecodeBatteryLevel([]byte{101})
	var ferr *FieldError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "percent", ferr.Field)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeRaw_Copies(t *testing.T) {
	src := []byte{1, 2, 3}
	out, err := DecodeRaw(src)
	require.NoError(t, err)
	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, out)
}
