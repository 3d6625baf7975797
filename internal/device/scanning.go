package device

import "context"

// Advertisement is one advertising report seen during a scan.
type Advertisement interface {
	Address() string
	LocalName() string
	RSSI() int
	// Services lists the advertised service UUIDs, normalized.
	Services() []string
	ManufacturerData() []byte
	Connectable() bool
}

// AdvertisementHandler receives advertisements on the radio stack's goroutine.
type AdvertisementHandler func(adv Advertisement)

// ScanningDevice is the discovery side of the radio stack. Scan blocks until
// ctx ends or the stack fails; a cancelled ctx is reported as ctx.Err().
type ScanningDevice interface {
	Scan(ctx context.Context, allowDuplicates bool, handler AdvertisementHandler) error
}
