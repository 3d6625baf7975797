package main

import (
	"errors"
	"fmt"

	"github.com/srg/angel/internal/angel"
	"github.com/srg/angel/internal/device"
)

// ErrConnectionLost indicates the BLE connection was unexpectedly lost
// during operation. It differs from device.ErrNotConnected, which means
// the device was never connected.
var ErrConnectionLost = errors.New("connection lost")

// FormatUserError adds a hint to errors a user can act on.
func FormatUserError(err error) string {
	var (
		notFound *device.NotFoundError
		alarm    *angel.AlarmResponseError
	)
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return fmt.Sprintf("%v (turn Bluetooth on and check the application may use it)", err)
	case errors.Is(err, device.ErrTimeout):
		return fmt.Sprintf("%v (the sensor did not answer; move it closer and retry)", err)
	case errors.Is(err, ErrConnectionLost):
		return fmt.Sprintf("%v (the sensor went out of range or was switched off)", err)
	case errors.As(err, &alarm):
		return fmt.Sprintf("%v (the sensor rejected the request)", err)
	case errors.As(err, &notFound):
		return fmt.Sprintf("%v (this sensor firmware does not offer it)", err)
	case errors.Is(err, device.ErrUnsupported):
		return fmt.Sprintf("%v (operation not supported by this characteristic)", err)
	default:
		return err.Error()
	}
}
