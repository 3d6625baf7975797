package goble

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
)

// DeviceFactory creates the host radio device. Tests replace it.
//
//nolint:gochecknoglobals
var DeviceFactory = newPlatformDevice

var (
	sharedMu  sync.Mutex
	sharedDev ble.Device
)

// sharedDevice returns the process-wide radio device, creating it on first
// use. A failed creation is retried on the next call.
func sharedDevice() (ble.Device, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedDev != nil {
		return sharedDev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(errors.Wrap(err, "failed to create BLE device"))
	}
	sharedDev = dev
	return dev, nil
}

// ResetSharedDevice stops and forgets the shared radio device.
func ResetSharedDevice() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedDev == nil {
		return nil
	}
	err := sharedDev.Stop()
	sharedDev = nil
	return err
}
