package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/srg/angel/internal/device"
)

// fakeClient overrides the ble.Client methods the transport uses. Calling
// any other method panics on the nil embedded interface.
type fakeClient struct {
	ble.Client

	mu           sync.Mutex
	addr         ble.Addr
	profile      *ble.Profile
	values       map[*ble.Characteristic][]byte
	writes       [][]byte
	handlers     map[*ble.Characteristic]ble.NotificationHandler
	unsubscribed []bool
	readErr      error
	rssi         int
	disconnected chan struct{}
	once         sync.Once
}

func newFakeClient(addr string, profile *ble.Profile) *fakeClient {
	return &fakeClient{
		addr:         ble.NewAddr(addr),
		profile:      profile,
		values:       make(map[*ble.Characteristic][]byte),
		handlers:     make(map[*ble.Characteristic]ble.NotificationHandler),
		disconnected: make(chan struct{}),
	}
}

func (c *fakeClient) Addr() ble.Addr { return c.addr }

func (c *fakeClient) DiscoverProfile(bool) (*ble.Profile, error) { return c.profile, nil }

func (c *fakeClient) ReadCharacteristic(ch *ble.Characteristic) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.values[ch], nil
}

func (c *fakeClient) WriteCharacteristic(ch *ble.Characteristic, value []byte, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[ch] = value
	c.writes = append(c.writes, value)
	return nil
}

func (c *fakeClient) Subscribe(ch *ble.Characteristic, _ bool, h ble.NotificationHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[ch] = h
	return nil
}

func (c *fakeClient) Unsubscribe(ch *ble.Characteristic, ind bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, ch)
	c.unsubscribed = append(c.unsubscribed, ind)
	return nil
}

func (c *fakeClient) ReadRSSI() int { return c.rssi }

func (c *fakeClient) CancelConnection() error {
	c.drop()
	return nil
}

func (c *fakeClient) Disconnected() <-chan struct{} { return c.disconnected }

func (c *fakeClient) drop() { c.once.Do(func() { close(c.disconnected) }) }

func (c *fakeClient) notify(ch *ble.Characteristic, data []byte) bool {
	c.mu.Lock()
	h := c.handlers[ch]
	c.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

// fakeBLEDevice overrides Dial and Scan.
type fakeBLEDevice struct {
	ble.Device

	client  *fakeClient
	dialErr error
	block   bool
	ads     []ble.Advertisement
	scanErr error
}

func (d *fakeBLEDevice) Dial(ctx context.Context, _ ble.Addr) (ble.Client, error) {
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.client, nil
}

func (d *fakeBLEDevice) Scan(ctx context.Context, _ bool, h ble.AdvHandler) error {
	for _, adv := range d.ads {
		h(adv)
	}
	if d.scanErr != nil {
		return d.scanErr
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeAdvertisement struct {
	ble.Advertisement

	addr     string
	name     string
	rssi     int
	services []ble.UUID
	overflow []ble.UUID
	mfg      []byte
}

func (a *fakeAdvertisement) Addr() ble.Addr              { return ble.NewAddr(a.addr) }
func (a *fakeAdvertisement) LocalName() string           { return a.name }
func (a *fakeAdvertisement) RSSI() int                   { return a.rssi }
func (a *fakeAdvertisement) Services() []ble.UUID        { return a.services }
func (a *fakeAdvertisement) OverflowService() []ble.UUID { return a.overflow }
func (a *fakeAdvertisement) ManufacturerData() []byte    { return a.mfg }
func (a *fakeAdvertisement) Connectable() bool           { return true }

// recordingEvents captures transport events in arrival order.
type recordingEvents struct {
	mu          sync.Mutex
	states      []stateEvent
	services    []device.RemoteService
	discoverErr error
	reads       [][]byte
	writes      int
	changes     [][]byte
	descriptors []error
	rssi        []int
	readErrs    []error
	order       []string

	// gate, when set, holds notification delivery until closed; entered
	// is signalled each time a held notification arrives.
	gate    chan struct{}
	entered chan struct{}
}

type stateEvent struct {
	connected bool
	err       error
}

func (r *recordingEvents) OnConnectionStateChange(connected bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, stateEvent{connected, err})
}

func (r *recordingEvents) OnServicesDiscovered(services []device.RemoteService, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = services
	r.discoverErr = err
}

func (r *recordingEvents) OnCharacteristicRead(_ device.RemoteCharacteristic, value []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, value)
	r.readErrs = append(r.readErrs, err)
	r.order = append(r.order, fmt.Sprintf("read %x", value))
}

func (r *recordingEvents) OnCharacteristicWrite(device.RemoteCharacteristic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
}

func (r *recordingEvents) OnCharacteristicChanged(_ device.RemoteCharacteristic, value []byte) {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
		<-gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, value)
	r.order = append(r.order, fmt.Sprintf("changed %x", value))
}

func (r *recordingEvents) OnDescriptorWrite(_ device.RemoteCharacteristic, _ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors = append(r.descriptors, err)
}

func (r *recordingEvents) OnReadRemoteRSSI(rssi int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rssi = append(r.rssi, rssi)
}

func (r *recordingEvents) snapshot(fn func(r *recordingEvents)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}
