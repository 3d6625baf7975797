package angel

import (
	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

var (
	// OpticalWaveform streams interleaved green and blue photodiode samples.
	OpticalWaveform = &device.CharacteristicKind[[]codec.OpticalSample]{
		Name:   "Optical Waveform",
		UUID:   "334c0be8-76f9-458b-bb2e-7df2b486b4d7",
		Decode: codec.DecodeOpticalWaveform,
	}
	// AccelerationWaveform streams unsigned acceleration magnitudes.
	AccelerationWaveform = &device.CharacteristicKind[[]uint32]{
		Name:   "Acceleration Waveform",
		UUID:   "4e92f4ab-c01b-4b5a-b328-699856a7c2ee",
		Decode: codec.DecodeAccelerationWaveform,
	}
)

type WaveformSignalService struct {
	Optical      *device.Characteristic[[]codec.OpticalSample]
	Acceleration *device.Characteristic[[]uint32]
}

var WaveformSignal = &device.ServiceKind[*WaveformSignalService]{
	Name: "Waveform Signal",
	UUID: "481d178c-10dd-11e4-b514-b2227cce2b54",
	New: func(s *device.Service) (*WaveformSignalService, error) {
		var (
			svc WaveformSignalService
			r   registrar
		)
		svc.Optical = register(&r, s, OpticalWaveform)
		svc.Acceleration = register(&r, s, AccelerationWaveform)
		return &svc, r.err
	},
}
