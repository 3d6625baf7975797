package angel

import (
	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

var (
	StepCount = &device.CharacteristicKind[uint32]{
		Name:   "Step Count",
		UUID:   "7a543305-6b9e-4878-ad67-29c5a9d99736",
		Decode: codec.DecodeUint32,
	}
	AccelerationEnergyMagnitude = &device.CharacteristicKind[uint32]{
		Name:   "Acceleration Energy Magnitude",
		UUID:   "9e3bd0d7-bdd8-41fd-af1f-5e99679183ff",
		Decode: codec.DecodeUint32,
	}
)

type ActivityMonitoringService struct {
	StepCount                   *device.Characteristic[uint32]
	AccelerationEnergyMagnitude *device.Characteristic[uint32]
}

var ActivityMonitoring = &device.ServiceKind[*ActivityMonitoringService]{
	Name: "Activity Monitoring",
	UUID: "68b52738-4a04-40e1-8f83-337a29c3284d",
	New: func(s *device.Service) (*ActivityMonitoringService, error) {
		var (
			svc ActivityMonitoringService
			r   registrar
		)
		svc.StepCount = register(&r, s, StepCount)
		svc.AccelerationEnergyMagnitude = register(&r, s, AccelerationEnergyMagnitude)
		return &svc, r.err
	},
}
