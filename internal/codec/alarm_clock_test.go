package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAlarmRequest(t *testing.T) {
	when := DateTime{Year: 2015, Month: time.July, Day: 2, Hour: 6, Minute: 30}

	tests := []struct {
		name     string
		request  AlarmRequest
		expected []byte
	}{
		{name: "get max alarms", request: AlarmRequest{Opcode: AlarmGetMaxAlarms}, expected: []byte{0x01}},
		{name: "read alarm", request: AlarmRequest{Opcode: AlarmReadAlarm, AlarmID: 3}, expected: []byte{0x03, 0x03}},
		{name: "remove alarm", request: AlarmRequest{Opcode: AlarmRemoveAlarm, AlarmID: 1}, expected: []byte{0x05, 0x01}},
		{name: "remove all", request: AlarmRequest{Opcode: AlarmRemoveAllAlarms}, expected: []byte{0x06}},
		{
			name:     "add alarm",
			request:  AlarmRequest{Opcode: AlarmAddAlarm, When: when},
			expected: []byte{0x04, 0xDF, 0x07, 0x07, 0x02, 0x06, 0x1E, 0x00},
		},
		{
			name:     "set clock",
			request:  AlarmRequest{Opcode: AlarmSetClock, When: when},
			expected: []byte{0x07, 0xDF, 0x07, 0x07, 0x02, 0x06, 0x1E, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := EncodeAlarmRequest(tt.request)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, buf)
		})
	}

	_, err := EncodeAlarmRequest(AlarmRequest{Opcode: 0x42})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeAlarmResponse(t *testing.T) {
	r, err := DecodeAlarmResponse([]byte{0x01, 0x01, 0x08, 0x00})
	require.NoError(t, err)
	assert.Equal(t, AlarmResponse{Opcode: AlarmGetMaxAlarms, Code: AlarmResponseSuccess, HasValue: true, Value: 8}, r)

	r, err = DecodeAlarmResponse([]byte{0x06, 0x02})
	require.NoError(t, err)
	assert.Equal(t, AlarmResponseNotSupported, r.Code)
	assert.False(t, r.HasValue)
	assert.Equal(t, "not supported", r.Code.String())

	_, err = DecodeAlarmResponse([]byte{0x01, 0x01, 0x08})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
