package codec

import "fmt"

// Temperature measurement flag bits.
const (
	tempFlagFahrenheit = 0x01
	tempFlagTimestamp  = 0x02
	tempFlagType       = 0x04
)

// TemperatureUnit selects the scale of a temperature value.
type TemperatureUnit uint8

const (
	Celsius TemperatureUnit = iota
	Fahrenheit
)

func (u TemperatureUnit) String() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// TemperatureType is the 0x2A1D measurement site enumeration.
type TemperatureType uint8

const (
	TemperatureTypeUnknown TemperatureType = iota
	TemperatureTypeArmpit
	TemperatureTypeBody
	TemperatureTypeEar
	TemperatureTypeFinger
	TemperatureTypeGastroIntestinalTract
	TemperatureTypeMouth
	TemperatureTypeRectum
	TemperatureTypeToe
	TemperatureTypeTympanum
)

var temperatureTypeNames = [...]string{
	"unknown", "armpit", "body", "ear", "finger", "gastro-intestinal tract", "mouth", "rectum", "toe", "tympanum",
}

func (t TemperatureType) String() string {
	if int(t) < len(temperatureTypeNames) {
		return temperatureTypeNames[t]
	}
	return fmt.Sprintf("reserved(%d)", uint8(t))
}

// DecodeTemperatureType decodes the single measurement site byte.
func DecodeTemperatureType(b []byte) (TemperatureType, error) {
	v, err := DecodeUint8(b)
	return TemperatureType(v), err
}

// TemperatureMeasurement is the decoded 0x2A1C / 0x2A1E payload.
type TemperatureMeasurement struct {
	Value        float64
	Unit         TemperatureUnit
	HasTimestamp bool
	Timestamp    DateTime
	HasType      bool
	Type         TemperatureType
}

// DecodeTemperatureMeasurement decodes a temperature measurement.
func DecodeTemperatureMeasurement(b []byte) (TemperatureMeasurement, error) {
	const name = "temperature measurement"
	var m TemperatureMeasurement

	if err := need(name, b, 0, 1+Float11073Size); err != nil {
		return m, err
	}
	flags := b[0]
	if flags&tempFlagFahrenheit != 0 {
		m.Unit = Fahrenheit
	}

	v, err := DecodeFloat11073(b[1 : 1+Float11073Size])
	if err != nil {
		return m, err
	}
	m.Value = v
	off := 1 + Float11073Size

	if flags&tempFlagTimestamp != 0 {
		if err := need(name, b, off, DateTimeSize); err != nil {
			return m, err
		}
		ts, err := DecodeDateTime(b[off : off+DateTimeSize])
		if err != nil {
			return m, err
		}
		m.HasTimestamp = true
		m.Timestamp = ts
		off += DateTimeSize
	}

	if flags&tempFlagType != 0 {
		if err := need(name, b, off, 1); err != nil {
			return m, err
		}
		m.HasType = true
		m.Type = TemperatureType(b[off])
		off++
	}

	if off != len(b) {
		return m, lengthError(name, fmt.Sprint(off), len(b))
	}
	return m, nil
}

// EncodeTemperatureMeasurement encodes m with the value quantised to the
// given number of decimal places (the exponent is -decimals).
func EncodeTemperatureMeasurement(m TemperatureMeasurement, decimals int8) ([]byte, error) {
	var flags byte
	if m.Unit == Fahrenheit {
		flags |= tempFlagFahrenheit
	}

	scaled := m.Value
	for i := int8(0); i < decimals; i++ {
		scaled *= 10
	}
	var mantissa int32
	if scaled >= 0 {
		mantissa = int32(scaled + 0.5)
	} else {
		mantissa = int32(scaled - 0.5)
	}

	f, err := EncodeFloat11073(mantissa, -decimals)
	if err != nil {
		return nil, err
	}
	buf := append([]byte{0}, f...)

	if m.HasTimestamp {
		flags |= tempFlagTimestamp
		buf = appendDateTime(buf, m.Timestamp)
	}
	if m.HasType {
		flags |= tempFlagType
		buf = append(buf, byte(m.Type))
	}

	buf[0] = flags
	return buf, nil
}
