package testutils

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/srg/angel/internal/device"
)

// FakeCharacteristic is a scripted remote characteristic. Pointer identity
// makes it a valid transport handle.
type FakeCharacteristic struct {
	uuid string
	caps device.Capabilities

	mu    sync.Mutex
	value []byte
}

func (c *FakeCharacteristic) UUID() string                      { return c.uuid }
func (c *FakeCharacteristic) Capabilities() device.Capabilities { return c.caps }

// Value returns the last value read from or written to the characteristic.
func (c *FakeCharacteristic) Value() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.value...)
}

func (c *FakeCharacteristic) SetValue(v []byte) {
	c.mu.Lock()
	c.value = append([]byte(nil), v...)
	c.mu.Unlock()
}

// FakeService is a scripted remote service.
type FakeService struct {
	uuid  string
	chars []*FakeCharacteristic
}

func (s *FakeService) UUID() string { return s.uuid }

func (s *FakeService) Characteristics() []device.RemoteCharacteristic {
	out := make([]device.RemoteCharacteristic, len(s.chars))
	for i, c := range s.chars {
		out[i] = c
	}
	return out
}

// CharacteristicConfig describes one characteristic of a fake peripheral.
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g. "read,notify"
	Value      []byte `json:"value,omitempty"`
}

// ServiceConfig describes one service of a fake peripheral.
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// PeripheralConfig is the GATT profile of a fake peripheral.
type PeripheralConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralBuilder builds the service list a FakeTransport reports.
type PeripheralBuilder struct {
	profile PeripheralConfig
}

func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{}
}

func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service.
// properties is a comma separated capability list; empty means
// read,write,notify.
func (b *PeripheralBuilder) WithCharacteristic(uuid, properties string, value []byte) *PeripheralBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := &b.profile.Services[len(b.profile.Services)-1]
	last.Characteristics = append(last.Characteristics, CharacteristicConfig{
		UUID:       uuid,
		Properties: properties,
		Value:      value,
	})
	return b
}

// FromJSON replaces the profile with a JSON description.
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...any) *PeripheralBuilder {
	var cfg PeripheralConfig
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &cfg); err != nil {
		panic(fmt.Sprintf("PeripheralBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	b.profile = cfg
	return b
}

func (b *PeripheralBuilder) Build() []*FakeService {
	services := make([]*FakeService, 0, len(b.profile.Services))
	for _, sc := range b.profile.Services {
		svc := &FakeService{uuid: sc.UUID}
		for _, cc := range sc.Characteristics {
			props := cc.Properties
			if props == "" {
				props = "read,write,notify"
			}
			caps := device.ParseCapabilities(props)
			svc.chars = append(svc.chars, &FakeCharacteristic{
				uuid:  cc.UUID,
				caps:  caps,
				value: append([]byte(nil), cc.Value...),
			})
		}
		services = append(services, svc)
	}
	return services
}

// BuildTransport is Build followed by NewFakeTransport.
func (b *PeripheralBuilder) BuildTransport() *FakeTransport {
	return NewFakeTransport(b.Build()...)
}
