package codec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFloat11073(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected float64
	}{
		{name: "36.5", input: []byte{0x6D, 0x01, 0x00, 0xFF}, expected: 36.5},
		{name: "negative mantissa", input: []byte{0xFF, 0xFF, 0xFF, 0x00}, expected: -1},
		{name: "positive exponent", input: []byte{0x02, 0x00, 0x00, 0x03}, expected: 2000},
		{name: "two decimals", input: []byte{0x41, 0x0E, 0x00, 0xFE}, expected: 36.49},
		{name: "zero", input: []byte{0x00, 0x00, 0x00, 0x00}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFloat11073(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeFloat11073_ReservedValues(t *testing.T) {
	nan, err := DecodeFloat11073(FloatNaN11073())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(nan))

	nres, err := DecodeFloat11073([]byte{0x00, 0x00, 0x80, 0x00})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(nres))

	inf, err := DecodeFloat11073([]byte{0xFE, 0xFF, 0x7F, 0x00})
	require.NoError(t, err)
	assert.True(t, math.IsInf(inf, 1))

	ninf, err := DecodeFloat11073([]byte{0x02, 0x00, 0x80, 0x00})
	require.NoError(t, err)
	assert.True(t, math.IsInf(ninf, -1))

	_, err = EncodeFloat11073(0x7FFFFE, 0)
	assert.ErrorIs(t, err, ErrMalformedPayload, "reserved mantissa MUST NOT be encodable")
}

func TestDecodeTemperatureMeasurement(t *testing.T) {
	t.Run("celsius without optional fields", func(t *testing.T) {
		m, err := DecodeTemperatureMeasurement([]byte{0x00, 0x6D, 0x01, 0x00, 0xFF})
		require.NoError(t, err)
		assert.Equal(t, TemperatureMeasurement{Value: 36.5, Unit: Celsius}, m)
	})

	t.Run("fahrenheit with timestamp and type", func(t *testing.T) {
		input := []byte{
			0x07,
			0xB9, 0x03, 0x00, 0xFF, // 95.3
			0xDF, 0x07, 0x06, 0x01, 0x08, 0x00, 0x1E,
			byte(TemperatureTypeTympanum),
		}
		m, err := DecodeTemperatureMeasurement(input)
		require.NoError(t, err)
		assert.Equal(t, TemperatureMeasurement{
			Value:        95.3,
			Unit:         Fahrenheit,
			HasTimestamp: true,
			Timestamp:    DateTime{Year: 2015, Month: time.June, Day: 1, Hour: 8, Minute: 0, Second: 30},
			HasType:      true,
			Type:         TemperatureTypeTympanum,
		}, m)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, input := range [][]byte{
			nil,
			{0x00, 0x6D, 0x01, 0x00},
			{0x02, 0x6D, 0x01, 0x00, 0xFF, 0xDF, 0x07},
			{0x04, 0x6D, 0x01, 0x00, 0xFF},
			{0x00, 0x6D, 0x01, 0x00, 0xFF, 0x00},
		} {
			_, err := DecodeTemperatureMeasurement(input)
			assert.ErrorIs(t, err, ErrMalformedPayload, "input % x", input)
		}
	})
}

func TestEncodeTemperatureMeasurement(t *testing.T) {
	m := TemperatureMeasurement{Value: 36.5, Unit: Celsius, HasType: true, Type: TemperatureTypeArmpit}
	buf, err := EncodeTemperatureMeasurement(m, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x6D, 0x01, 0x00, 0xFF, 0x01}, buf)

	back, err := DecodeTemperatureMeasurement(buf)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestTemperatureType_String(t *testing.T) {
	assert.Equal(t, "armpit", TemperatureTypeArmpit.String())
	assert.Equal(t, "tympanum", TemperatureTypeTympanum.String())
	assert.Equal(t, "reserved(10)", TemperatureType(10).String())
	assert.Equal(t, "°F", Fahrenheit.String())
}
