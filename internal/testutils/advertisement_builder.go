package testutils

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/srg/angel/internal/device"
	"github.com/stretchr/testify/mock"
)

// FakeAdvertisement is a static device.Advertisement.
type FakeAdvertisement struct {
	AddressValue     string   `json:"address"`
	NameValue        string   `json:"name,omitempty"`
	RSSIValue        int      `json:"rssi,omitempty"`
	ServiceUUIDs     []string `json:"services,omitempty"`
	ManufacturerInfo []byte   `json:"manufacturer_data,omitempty"`
	IsConnectable    bool     `json:"connectable"`
}

func (a *FakeAdvertisement) Address() string          { return a.AddressValue }
func (a *FakeAdvertisement) LocalName() string        { return a.NameValue }
func (a *FakeAdvertisement) RSSI() int                { return a.RSSIValue }
func (a *FakeAdvertisement) Services() []string       { return device.NormalizeUUIDs(a.ServiceUUIDs) }
func (a *FakeAdvertisement) ManufacturerData() []byte { return a.ManufacturerInfo }
func (a *FakeAdvertisement) Connectable() bool        { return a.IsConnectable }

// AdvertisementBuilder builds FakeAdvertisements with a fluent API. The
// builder starts connectable.
type AdvertisementBuilder struct {
	adv FakeAdvertisement
}

func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: FakeAdvertisement{IsConnectable: true}}
}

// CreateMockAdvertisement is shorthand for the three fields most tests set.
func CreateMockAdvertisement(name, address string, rssi int) *AdvertisementBuilder {
	return NewAdvertisementBuilder().WithName(name).WithAddress(address).WithRSSI(rssi)
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.NameValue = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.AddressValue = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.RSSIValue = rssi
	return b
}

func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.ServiceUUIDs = uuids
	return b
}

func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.ManufacturerInfo = data
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.IsConnectable = c
	return b
}

// FromJSON replaces the advertisement with a JSON description.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...any) *AdvertisementBuilder {
	adv := FakeAdvertisement{IsConnectable: true}
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &adv); err != nil {
		panic(fmt.Sprintf("AdvertisementBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	b.adv = adv
	return b
}

func (b *AdvertisementBuilder) Build() device.Advertisement {
	adv := b.adv
	return &adv
}

// MockScanningDevice is a testify mock of device.ScanningDevice.
type MockScanningDevice struct {
	mock.Mock
}

func (m *MockScanningDevice) Scan(ctx context.Context, allowDuplicates bool, handler device.AdvertisementHandler) error {
	args := m.Called(ctx, allowDuplicates, handler)
	return args.Error(0)
}

// ExpectScan scripts one Scan call: every advertisement is delivered in
// order, then the scan blocks until ctx ends and returns nil.
func (m *MockScanningDevice) ExpectScan(ads ...device.Advertisement) *mock.Call {
	return m.On("Scan", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			handler := args.Get(2).(device.AdvertisementHandler)
			for _, adv := range ads {
				handler(adv)
			}
			<-ctx.Done()
		}).
		Return(nil).Once()
}

var _ device.ScanningDevice = (*MockScanningDevice)(nil)
