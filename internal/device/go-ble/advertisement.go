package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/angel/internal/device"
)

// advertisement adapts ble.Advertisement to device.Advertisement.
type advertisement struct {
	adv ble.Advertisement
}

func newAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &advertisement{adv: adv}
}

func (a *advertisement) Address() string          { return a.adv.Addr().String() }
func (a *advertisement) LocalName() string        { return a.adv.LocalName() }
func (a *advertisement) RSSI() int                { return a.adv.RSSI() }
func (a *advertisement) ManufacturerData() []byte { return a.adv.ManufacturerData() }
func (a *advertisement) Connectable() bool        { return a.adv.Connectable() }

// Services merges complete and overflow service lists; both are
// advertised service UUIDs on different platforms.
func (a *advertisement) Services() []string {
	uuids := make([]string, 0, len(a.adv.Services()))
	for _, u := range a.adv.Services() {
		uuids = append(uuids, u.String())
	}
	for _, u := range a.adv.OverflowService() {
		uuids = append(uuids, u.String())
	}
	return device.NormalizeUUIDs(uuids)
}
