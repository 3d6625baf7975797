package angel

import (
	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

var (
	HeartRateMeasurement = &device.CharacteristicKind[codec.HeartRateMeasurement]{
		Name:   "Heart Rate Measurement",
		UUID:   "2a37",
		Decode: codec.DecodeHeartRateMeasurement,
		Encode: codec.EncodeHeartRateMeasurement,
	}
	BodySensorLocation = &device.CharacteristicKind[codec.BodySensorLocation]{
		Name:   "Body Sensor Location",
		UUID:   "2a38",
		Decode: codec.DecodeBodySensorLocation,
	}
	// HeartRateControlPoint accepts codec.HeartRateResetEnergyExpended.
	HeartRateControlPoint = &device.CharacteristicKind[uint8]{
		Name:   "Heart Rate Control Point",
		UUID:   "2a39",
		Decode: codec.DecodeUint8,
		Encode: codec.EncodeUint8,
	}
)

type HeartRateService struct {
	Measurement  *device.Characteristic[codec.HeartRateMeasurement]
	Location     *device.Characteristic[codec.BodySensorLocation]
	ControlPoint *device.Characteristic[uint8]
}

// ResetEnergyExpended asks the sensor to restart its energy accumulator.
func (s *HeartRateService) ResetEnergyExpended() error {
	if s.ControlPoint == nil {
		return errNotOffered(HeartRate, HeartRateControlPoint)
	}
	return s.ControlPoint.Write(codec.HeartRateResetEnergyExpended)
}

var HeartRate = &device.ServiceKind[*HeartRateService]{
	Name: "Heart Rate",
	UUID: "180d",
	New: func(s *device.Service) (*HeartRateService, error) {
		var (
			svc HeartRateService
			r   registrar
		)
		svc.Measurement = register(&r, s, HeartRateMeasurement)
		svc.Location = register(&r, s, BodySensorLocation)
		svc.ControlPoint = register(&r, s, HeartRateControlPoint)
		return &svc, r.err
	},
}
