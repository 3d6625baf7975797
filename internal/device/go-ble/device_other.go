//go:build !darwin && !linux

package goble

import (
	"runtime"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
)

func newPlatformDevice() (ble.Device, error) {
	return nil, errors.Errorf("bluetooth is not supported on %s", runtime.GOOS)
}
