package codec

import (
	"encoding/binary"
	"fmt"
)

// AlarmOpcode selects an alarm clock control point procedure.
type AlarmOpcode uint8

const (
	AlarmGetMaxAlarms     AlarmOpcode = 0x01
	AlarmGetCurrentAlarms AlarmOpcode = 0x02
	AlarmReadAlarm        AlarmOpcode = 0x03
	AlarmAddAlarm         AlarmOpcode = 0x04
	AlarmRemoveAlarm      AlarmOpcode = 0x05
	AlarmRemoveAllAlarms  AlarmOpcode = 0x06
	AlarmSetClock         AlarmOpcode = 0x07
)

var alarmOpcodeNames = map[AlarmOpcode]string{
	AlarmGetMaxAlarms:     "get max alarms",
	AlarmGetCurrentAlarms: "get current alarms",
	AlarmReadAlarm:        "read alarm",
	AlarmAddAlarm:         "add alarm",
	AlarmRemoveAlarm:      "remove alarm",
	AlarmRemoveAllAlarms:  "remove all alarms",
	AlarmSetClock:         "set clock",
}

func (o AlarmOpcode) String() string {
	if n, ok := alarmOpcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("opcode(0x%02x)", uint8(o))
}

// AlarmResponseCode is the result of a control point procedure.
type AlarmResponseCode uint8

const (
	AlarmResponseUnknown         AlarmResponseCode = 0x00
	AlarmResponseSuccess         AlarmResponseCode = 0x01
	AlarmResponseNotSupported    AlarmResponseCode = 0x02
	AlarmResponseInvalidOperator AlarmResponseCode = 0x03
	AlarmResponseInvalidOperand  AlarmResponseCode = 0x04
)

func (c AlarmResponseCode) String() string {
	switch c {
	case AlarmResponseSuccess:
		return "success"
	case AlarmResponseNotSupported:
		return "not supported"
	case AlarmResponseInvalidOperator:
		return "invalid operator"
	case AlarmResponseInvalidOperand:
		return "invalid operand"
	default:
		return "unknown"
	}
}

// AlarmRequest is a control point write.
type AlarmRequest struct {
	Opcode  AlarmOpcode
	AlarmID uint8    // ReadAlarm, RemoveAlarm
	When    DateTime // AddAlarm, SetClock
}

// EncodeAlarmRequest serializes a request as opcode followed by its operand.
func EncodeAlarmRequest(r AlarmRequest) ([]byte, error) {
	buf := []byte{byte(r.Opcode)}
	switch r.Opcode {
	case AlarmGetMaxAlarms, AlarmGetCurrentAlarms, AlarmRemoveAllAlarms:
	case AlarmReadAlarm, AlarmRemoveAlarm:
		buf = append(buf, r.AlarmID)
	case AlarmAddAlarm, AlarmSetClock:
		buf = appendDateTime(buf, r.When)
	default:
		return nil, &FieldError{Value: "alarm request", Field: "opcode", Msg: r.Opcode.String()}
	}
	return buf, nil
}

// AlarmResponse is a control point indication.
type AlarmResponse struct {
	Opcode   AlarmOpcode
	Code     AlarmResponseCode
	HasValue bool
	Value    uint16
}

// DecodeAlarmResponse decodes opcode, response code and an optional
// little-endian 16-bit value.
func DecodeAlarmResponse(b []byte) (AlarmResponse, error) {
	var r AlarmResponse
	switch len(b) {
	case 2, 4:
	default:
		return r, lengthError("alarm response", "2 or 4", len(b))
	}

	r.Opcode = AlarmOpcode(b[0])
	r.Code = AlarmResponseCode(b[1])
	if len(b) == 4 {
		r.HasValue = true
		r.Value = binary.LittleEndian.Uint16(b[2:])
	}
	return r, nil
}

// EncodeAlarmResponse is the inverse of DecodeAlarmResponse.
func EncodeAlarmResponse(r AlarmResponse) ([]byte, error) {
	buf := []byte{byte(r.Opcode), byte(r.Code)}
	if r.HasValue {
		buf = binary.LittleEndian.AppendUint16(buf, r.Value)
	}
	return buf, nil
}
