package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeartRateMeasurement(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected HeartRateMeasurement
	}{
		{
			name:     "8-bit value only",
			input:    []byte{0x00, 72},
			expected: HeartRateMeasurement{BeatsPerMinute: 72},
		},
		{
			name:     "8-bit value with one rr interval",
			input:    []byte{0x10, 72, 0x64, 0x00},
			expected: HeartRateMeasurement{BeatsPerMinute: 72, RRIntervals: []uint16{100}},
		},
		{
			name:     "16-bit value",
			input:    []byte{0x01, 0x2C, 0x01},
			expected: HeartRateMeasurement{BeatsPerMinute: 300},
		},
		{
			name:  "energy expended and rr intervals",
			input: []byte{0x18, 60, 0x10, 0x27, 0x00, 0x04, 0x01, 0x04},
			expected: HeartRateMeasurement{
				BeatsPerMinute:    60,
				HasEnergyExpended: true,
				EnergyExpended:    10000,
				RRIntervals:       []uint16{1024, 1025},
			},
		},
		{
			name:     "sensor contact detected",
			input:    []byte{0x06, 55},
			expected: HeartRateMeasurement{BeatsPerMinute: 55, SensorContact: ContactDetected},
		},
		{
			name:     "sensor contact not detected",
			input:    []byte{0x04, 55},
			expected: HeartRateMeasurement{BeatsPerMinute: 55, SensorContact: ContactNotDetected},
		},
		{
			name:     "rr flag with no intervals",
			input:    []byte{0x10, 80},
			expected: HeartRateMeasurement{BeatsPerMinute: 80, RRIntervals: []uint16{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeHeartRateMeasurement(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeHeartRateMeasurement_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "flags only", input: []byte{0x00}},
		{name: "truncated 16-bit value", input: []byte{0x01, 0x2C}},
		{name: "truncated energy expended", input: []byte{0x08, 60, 0x10}},
		{name: "odd rr tail", input: []byte{0x10, 60, 0x01, 0x02, 0x03}},
		{name: "trailing bytes without rr flag", input: []byte{0x00, 60, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHeartRateMeasurement(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestHeartRateMeasurement_Encode(t *testing.T) {
	m := HeartRateMeasurement{
		BeatsPerMinute:    310,
		SensorContact:     ContactDetected,
		HasEnergyExpended: true,
		EnergyExpended:    42,
		RRIntervals:       []uint16{512, 2048},
	}
	buf, err := EncodeHeartRateMeasurement(m)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1F, 0x36, 0x01, 0x2A, 0x00, 0x00, 0x02, 0x00, 0x08}, buf)

	back, err := DecodeHeartRateMeasurement(buf)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestHeartRateMeasurement_RRDurations(t *testing.T) {
	m := HeartRateMeasurement{RRIntervals: []uint16{1024, 512}}
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, m.RRDurations())
	assert.Nil(t, HeartRateMeasurement{}.RRDurations())
}

func TestBodySensorLocation(t *testing.T) {
	loc, err := DecodeBodySensorLocation([]byte{2})
	require.NoError(t, err)
	assert.Equal(t, LocationWrist, loc)
	assert.Equal(t, "wrist", loc.String())
	assert.Equal(t, "reserved(42)", BodySensorLocation(42).String())

	_, err = DecodeBodySensorLocation([]byte{1, 2})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
