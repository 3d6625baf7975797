package goble

import (
	"context"
	"errors"

	"github.com/go-ble/ble"
	"github.com/srg/angel/internal/device"
)

// scanningDevice adapts ble.Device scanning to device.ScanningDevice.
type scanningDevice struct {
	dev ble.Device
}

// Scan converts each ble.Advertisement before handing it to handler. A
// cancelled context is reported as ctx.Err() whatever go-ble returned.
func (s *scanningDevice) Scan(ctx context.Context, allowDuplicates bool, handler device.AdvertisementHandler) error {
	err := s.dev.Scan(ctx, allowDuplicates, func(adv ble.Advertisement) {
		handler(newAdvertisement(adv))
	})
	if ctxErr := ctx.Err(); ctxErr != nil && (err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctxErr
	}
	return NormalizeError(err)
}

// NewScanningDevice returns a device.ScanningDevice backed by the shared
// host radio device.
func NewScanningDevice() (device.ScanningDevice, error) {
	dev, err := sharedDevice()
	if err != nil {
		return nil, err
	}
	return &scanningDevice{dev: dev}, nil
}

// NewScanningDeviceFrom wraps an existing ble.Device.
func NewScanningDeviceFrom(dev ble.Device) device.ScanningDevice {
	return &scanningDevice{dev: dev}
}
