package angel

import (
	"strings"

	"github.com/srg/angel/internal/device"
)

// All lists every Angel service kind in the order they are registered.
func All() []device.ServiceClass {
	return []device.ServiceClass{
		HeartRate,
		HealthThermometer,
		Battery,
		ActivityMonitoring,
		WaveformSignal,
		AlarmClock,
		Terminal,
	}
}

// Lookup finds a service kind by name or identifier, case-insensitively.
func Lookup(nameOrUUID string) (device.ServiceClass, bool) {
	id := device.NormalizeUUID(nameOrUUID)
	for _, class := range All() {
		if (id != "" && class.Identifier() == id) || strings.EqualFold(class.ServiceName(), nameOrUUID) {
			return class, true
		}
	}
	return nil, false
}

// RegisterAll registers every kind in All on d.
func RegisterAll(d *device.Device) error {
	return Register(d, All()...)
}

// Register registers classes on d, stopping at the first failure.
func Register(d *device.Device, classes ...device.ServiceClass) error {
	for _, class := range classes {
		if err := d.RegisterServiceClass(class); err != nil {
			return err
		}
	}
	return nil
}
