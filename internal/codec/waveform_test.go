package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAccelerationWaveform(t *testing.T) {
	samples, err := DecodeAccelerationWaveform([]byte{0x01, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, samples)

	samples, err = DecodeAccelerationWaveform([]byte{0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x80})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0xFFFFFF, 0x800000}, samples, "acceleration samples are never sign extended")

	samples, err = DecodeAccelerationWaveform(nil)
	require.NoError(t, err)
	assert.Empty(t, samples)

	_, err = DecodeAccelerationWaveform([]byte{0x01, 0x00})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeOpticalWaveform(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []OpticalSample
	}{
		{
			name:     "all ones decode to minus one",
			input:    []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			expected: []OpticalSample{{Green: -1, Blue: -1}},
		},
		{
			name:     "boundaries of the 24-bit range",
			input:    []byte{0xFF, 0xFF, 0x7F, 0x00, 0x00, 0x80},
			expected: []OpticalSample{{Green: 0x7FFFFF, Blue: -0x800000}},
		},
		{
			name:     "two pairs",
			input:    []byte{0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0xFE, 0xFF, 0xFF, 0x10, 0x00, 0x00},
			expected: []OpticalSample{{Green: 1, Blue: 2}, {Green: -2, Blue: 16}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOpticalWaveform(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeOpticalWaveform_Malformed(t *testing.T) {
	for _, n := range []int{1, 3, 5, 7, 11} {
		_, err := DecodeOpticalWaveform(make([]byte, n))
		assert.ErrorIs(t, err, ErrMalformedPayload, "length %d", n)
	}
}

func TestEncodeOpticalWaveform(t *testing.T) {
	buf, err := EncodeOpticalWaveform([]OpticalSample{{Green: -1, Blue: 5}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0x05, 0x00, 0x00}, buf)

	_, err = EncodeAccelerationWaveform([]uint32{1 << 24})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
