package main

import (
	"testing"

	"github.com/srg/angel/internal/angel"
	"github.com/srg/angel/internal/codec"
	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		uuid  string
		value any
		want  string
	}{
		{"heart rate", "2a37", codec.HeartRateMeasurement{BeatsPerMinute: 61, HasEnergyExpended: true, EnergyExpended: 12}, "61 bpm, 12 kJ"},
		{"temperature", "2a1c", codec.TemperatureMeasurement{Value: 36.6, HasType: true, Type: codec.TemperatureTypeEar}, "36.60 °C (ear)"},
		{"battery", "2a19", uint8(85), "85%"},
		{"plain byte", "2a38x", uint8(7), "7"},
		{"interval", "2a21", uint16(60), "1m0s"},
		{"optical", "", []codec.OpticalSample{{Green: 5, Blue: -2}, {Green: 6, Blue: -1}}, "2 samples, first green=5 blue=-2"},
		{"no optical", "", []codec.OpticalSample{}, "0 samples"},
		{"acceleration", "", []uint32{1, 2, 3}, "3 samples [1 2 3]"},
		{"alarms", "", []codec.DateTime{{Year: 2026, Month: 1, Day: 2, Hour: 3, Minute: 4, Second: 5}}, "2026-01-02 03:04:05"},
		{"no alarms", "", []codec.DateTime{}, "none"},
		{"alarm response", "", angel.AlarmControl{Response: codec.AlarmResponse{Opcode: codec.AlarmGetMaxAlarms, Code: codec.AlarmResponseSuccess, HasValue: true, Value: 4}}, "get max alarms: success (4)"},
		{"raw", "", []byte{0xca, 0xfe}, "CAFE"},
		{"empty raw", "", []byte{}, "(empty)"},
		{"stringer", "", codec.BodySensorLocation(1), "chest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.uuid, tt.value))
		})
	}
}
