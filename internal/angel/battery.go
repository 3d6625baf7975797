package angel

import (
	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

var BatteryLevel = &device.CharacteristicKind[uint8]{
	Name:   "Battery Level",
	UUID:   "2a19",
	Decode: codec.DecodeBatteryLevel,
}

type BatteryService struct {
	Level *device.Characteristic[uint8]
}

var Battery = &device.ServiceKind[*BatteryService]{
	Name: "Battery",
	UUID: "180f",
	New: func(s *device.Service) (*BatteryService, error) {
		level, err := device.RegisterCharacteristic(s, BatteryLevel)
		return &BatteryService{Level: level}, err
	},
}
