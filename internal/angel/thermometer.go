package angel

import (
	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

// Temperatures are encoded with two decimals when written back.
const temperatureDecimals = 2

func encodeTemperature(m codec.TemperatureMeasurement) ([]byte, error) {
	return codec.EncodeTemperatureMeasurement(m, temperatureDecimals)
}

var (
	TemperatureMeasurement = &device.CharacteristicKind[codec.TemperatureMeasurement]{
		Name:   "Temperature Measurement",
		UUID:   "2a1c",
		Decode: codec.DecodeTemperatureMeasurement,
		Encode: encodeTemperature,
	}
	TemperatureType = &device.CharacteristicKind[codec.TemperatureType]{
		Name:   "Temperature Type",
		UUID:   "2a1d",
		Decode: codec.DecodeTemperatureType,
	}
	IntermediateTemperature = &device.CharacteristicKind[codec.TemperatureMeasurement]{
		Name:   "Intermediate Temperature",
		UUID:   "2a1e",
		Decode: codec.DecodeTemperatureMeasurement,
		Encode: encodeTemperature,
	}
	// MeasurementInterval is in seconds; 0 disables periodic measurements.
	MeasurementInterval = &device.CharacteristicKind[uint16]{
		Name:   "Measurement Interval",
		UUID:   "2a21",
		Decode: codec.DecodeUint16,
		Encode: codec.EncodeUint16,
	}
)

type HealthThermometerService struct {
	Measurement  *device.Characteristic[codec.TemperatureMeasurement]
	Type         *device.Characteristic[codec.TemperatureType]
	Intermediate *device.Characteristic[codec.TemperatureMeasurement]
	Interval     *device.Characteristic[uint16]
}

var HealthThermometer = &device.ServiceKind[*HealthThermometerService]{
	Name: "Health Thermometer",
	UUID: "1809",
	New: func(s *device.Service) (*HealthThermometerService, error) {
		var (
			svc HealthThermometerService
			r   registrar
		)
		svc.Measurement = register(&r, s, TemperatureMeasurement)
		svc.Type = register(&r, s, TemperatureType)
		svc.Intermediate = register(&r, s, IntermediateTemperature)
		svc.Interval = register(&r, s, MeasurementInterval)
		return &svc, r.err
	},
}
