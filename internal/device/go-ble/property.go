package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/angel/internal/device"
)

var propertyCapabilities = []struct {
	prop ble.Property
	cap  device.Capabilities
}{
	{ble.CharRead, device.CapRead},
	{ble.CharWrite, device.CapWrite},
	{ble.CharWriteNR, device.CapWriteWithoutResponse},
	{ble.CharNotify, device.CapNotify},
	{ble.CharIndicate, device.CapIndicate},
}

// capabilitiesOf maps ble.Property bits to Capabilities. Broadcast, signed
// writes and extended properties have no counterpart and are dropped.
func capabilitiesOf(p ble.Property) device.Capabilities {
	var caps device.Capabilities
	for _, pc := range propertyCapabilities {
		if p&pc.prop != 0 {
			caps |= pc.cap
		}
	}
	return caps
}

// remoteCharacteristic is the transport handle of a discovered
// characteristic. Handles are pointers, so they compare by identity.
type remoteCharacteristic struct {
	char *ble.Characteristic
	uuid string
	caps device.Capabilities
}

func newRemoteCharacteristic(c *ble.Characteristic) *remoteCharacteristic {
	return &remoteCharacteristic{
		char: c,
		uuid: device.NormalizeUUID(c.UUID.String()),
		caps: capabilitiesOf(c.Property),
	}
}

func (c *remoteCharacteristic) UUID() string                      { return c.uuid }
func (c *remoteCharacteristic) Capabilities() device.Capabilities { return c.caps }

// descriptor finds a discovered descriptor by normalized UUID.
func (c *remoteCharacteristic) descriptor(uuid string) *ble.Descriptor {
	want := device.NormalizeUUID(uuid)
	if want == device.CCCDUUID && c.char.CCCD != nil {
		return c.char.CCCD
	}
	for _, d := range c.char.Descriptors {
		if device.NormalizeUUID(d.UUID.String()) == want {
			return d
		}
	}
	return nil
}

type remoteService struct {
	uuid  string
	chars []device.RemoteCharacteristic
}

func newRemoteService(s *ble.Service) *remoteService {
	rs := &remoteService{uuid: device.NormalizeUUID(s.UUID.String())}
	for _, c := range s.Characteristics {
		rs.chars = append(rs.chars, newRemoteCharacteristic(c))
	}
	return rs
}

func (s *remoteService) UUID() string                                   { return s.uuid }
func (s *remoteService) Characteristics() []device.RemoteCharacteristic { return s.chars }
