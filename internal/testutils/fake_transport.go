package testutils

import (
	"context"
	"sync"

	"github.com/srg/angel/internal/device"
	"github.com/srg/angel/internal/groutine"
)

// Call is one request a FakeTransport received.
type Call struct {
	Op         string
	UUID       string
	Descriptor string
	Value      []byte
	Enabled    bool
}

// Transport operation names recorded in Call.Op.
const (
	OpConnect          = "connect"
	OpDisconnect       = "disconnect"
	OpDiscoverServices = "discover_services"
	OpRead             = "read"
	OpWrite            = "write"
	OpWriteNoResponse  = "write_without_response"
	OpSetNotification  = "set_notification"
	OpWriteDescriptor  = "write_descriptor"
	OpReadRSSI         = "read_rssi"
	OpClose            = "close"
)

// FakeTransport is a scripted device.Transport. Outcomes are delivered on a
// single event goroutine like a real radio stack. By default every request
// succeeds; the Set* methods script failures.
type FakeTransport struct {
	services []*FakeService

	mu             sync.Mutex
	events         device.TransportEvents
	calls          []Call
	queue          []func()
	closed         bool
	connectErr     error
	refuseConnect  error
	discoverErr    error
	descriptorErr  error
	holdAcks       bool
	silentConnect  bool
	heldAcks       []func()
	rssi           int
	responders     map[string]func(request []byte) []byte
	bindErr        error
	bindGate       chan struct{}
	wake           chan struct{}
	done           <-chan struct{}
	stopEventsLoop context.CancelFunc
}

func NewFakeTransport(services ...*FakeService) *FakeTransport {
	ctx, cancel := context.WithCancel(context.Background())
	f := &FakeTransport{
		services:       services,
		rssi:           -60,
		wake:           make(chan struct{}, 1),
		stopEventsLoop: cancel,
	}
	f.done = groutine.GoDone(ctx, "fake-transport-events", f.run)
	return f
}

// Factory returns a TransportFactory that binds this transport. Binding
// waits for ReleaseBind when HoldBind was called.
func (f *FakeTransport) Factory() device.TransportFactory {
	return func(ctx context.Context, events device.TransportEvents) (device.Transport, error) {
		f.mu.Lock()
		gate := f.bindGate
		f.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.bindErr != nil {
			return nil, f.bindErr
		}
		f.events = events
		return f, nil
	}
}

// ----------------------------
// Scripting
// ----------------------------

// HoldBind makes the factory block until ReleaseBind.
func (f *FakeTransport) HoldBind() {
	f.mu.Lock()
	f.bindGate = make(chan struct{})
	f.mu.Unlock()
}

func (f *FakeTransport) ReleaseBind() {
	f.mu.Lock()
	gate := f.bindGate
	f.bindGate = nil
	f.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (f *FakeTransport) SetBindError(err error) { f.set(func() { f.bindErr = err }) }

// SetConnectError makes Connect fail synchronously.
func (f *FakeTransport) SetConnectError(err error) { f.set(func() { f.connectErr = err }) }

// SetRefuseConnect makes Connect report a failed connection event.
func (f *FakeTransport) SetRefuseConnect(err error) { f.set(func() { f.refuseConnect = err }) }

// SetSilentConnect makes Connect report nothing, leaving the device binding.
func (f *FakeTransport) SetSilentConnect(silent bool) { f.set(func() { f.silentConnect = silent }) }

// SetResponder makes writes to the characteristic with uuid answered by a
// value-changed event carrying respond(request). A nil response sends
// nothing.
func (f *FakeTransport) SetResponder(uuid string, respond func(request []byte) []byte) {
	f.set(func() {
		if f.responders == nil {
			f.responders = make(map[string]func([]byte) []byte)
		}
		f.responders[device.NormalizeUUID(uuid)] = respond
	})
}

func (f *FakeTransport) SetDiscoverError(err error)   { f.set(func() { f.discoverErr = err }) }
func (f *FakeTransport) SetDescriptorError(err error) { f.set(func() { f.descriptorErr = err }) }
func (f *FakeTransport) SetRSSI(rssi int)             { f.set(func() { f.rssi = rssi }) }

// HoldDescriptorAcks queues descriptor write acknowledgements until
// ReleaseDescriptorAcks. Holding forever simulates a peripheral that never
// answers.
func (f *FakeTransport) HoldDescriptorAcks(hold bool) { f.set(func() { f.holdAcks = hold }) }

func (f *FakeTransport) ReleaseDescriptorAcks() {
	f.mu.Lock()
	held := f.heldAcks
	f.heldAcks = nil
	f.queue = append(f.queue, held...)
	f.mu.Unlock()
	f.signal()
}

// HeldDescriptorAcks returns the number of acknowledgements being held.
func (f *FakeTransport) HeldDescriptorAcks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heldAcks)
}

// Notify delivers a value-changed event for the characteristic with uuid.
func (f *FakeTransport) Notify(uuid string, value []byte) {
	c := f.Characteristic(uuid)
	if c == nil {
		panic("FakeTransport.Notify: unknown characteristic " + uuid)
	}
	v := append([]byte(nil), value...)
	f.emit(func(ev device.TransportEvents) { ev.OnCharacteristicChanged(c, v) })
}

// DropLink reports a remote-initiated disconnection.
func (f *FakeTransport) DropLink(err error) {
	f.emit(func(ev device.TransportEvents) { ev.OnConnectionStateChange(false, err) })
}

// Emit runs fn on the event goroutine, for events the other helpers do not
// cover.
func (f *FakeTransport) Emit(fn func(ev device.TransportEvents)) { f.emit(fn) }

// Sync waits until every event queued so far has been delivered.
func (f *FakeTransport) Sync() {
	done := make(chan struct{})
	f.enqueue(func() { close(done) })
	select {
	case <-done:
	case <-f.done:
	}
}

// Characteristic finds a fake characteristic by UUID in any service.
func (f *FakeTransport) Characteristic(uuid string) *FakeCharacteristic {
	want := device.NormalizeUUID(uuid)
	for _, s := range f.services {
		for _, c := range s.chars {
			if device.NormalizeUUID(c.uuid) == want {
				return c
			}
		}
	}
	return nil
}

// Calls returns every recorded request in order.
func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsOf returns the recorded requests with the given operation.
func (f *FakeTransport) CallsOf(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// ----------------------------
// device.Transport
// ----------------------------

func (f *FakeTransport) Connect(address string) error {
	f.mu.Lock()
	f.record(Call{Op: OpConnect, Value: []byte(address)})
	err, refuse, silent := f.connectErr, f.refuseConnect, f.silentConnect
	f.mu.Unlock()

	switch {
	case err != nil:
		return err
	case silent:
	case refuse != nil:
		f.emit(func(ev device.TransportEvents) { ev.OnConnectionStateChange(false, refuse) })
	default:
		f.emit(func(ev device.TransportEvents) { ev.OnConnectionStateChange(true, nil) })
	}
	return nil
}

func (f *FakeTransport) Disconnect() error {
	f.mu.Lock()
	f.record(Call{Op: OpDisconnect})
	f.mu.Unlock()

	f.emit(func(ev device.TransportEvents) { ev.OnConnectionStateChange(false, nil) })
	return nil
}

func (f *FakeTransport) DiscoverServices() error {
	f.mu.Lock()
	f.record(Call{Op: OpDiscoverServices})
	err := f.discoverErr
	f.mu.Unlock()

	remotes := make([]device.RemoteService, len(f.services))
	for i, s := range f.services {
		remotes[i] = s
	}
	if err != nil {
		remotes = nil
	}
	f.emit(func(ev device.TransportEvents) { ev.OnServicesDiscovered(remotes, err) })
	return nil
}

func (f *FakeTransport) ReadCharacteristic(ch device.RemoteCharacteristic) error {
	c := ch.(*FakeCharacteristic)
	f.mu.Lock()
	f.record(Call{Op: OpRead, UUID: c.uuid})
	f.mu.Unlock()

	v := c.Value()
	f.emit(func(ev device.TransportEvents) { ev.OnCharacteristicRead(c, v, nil) })
	return nil
}

func (f *FakeTransport) WriteCharacteristic(ch device.RemoteCharacteristic, value []byte, withoutResponse bool) error {
	c := ch.(*FakeCharacteristic)
	op := OpWrite
	if withoutResponse {
		op = OpWriteNoResponse
	}
	f.mu.Lock()
	f.record(Call{Op: op, UUID: c.uuid, Value: append([]byte(nil), value...)})
	respond := f.responders[device.NormalizeUUID(c.uuid)]
	f.mu.Unlock()

	c.SetValue(value)
	if !withoutResponse {
		f.emit(func(ev device.TransportEvents) { ev.OnCharacteristicWrite(c, nil) })
	}
	if respond != nil {
		if resp := respond(append([]byte(nil), value...)); resp != nil {
			f.emit(func(ev device.TransportEvents) { ev.OnCharacteristicChanged(c, resp) })
		}
	}
	return nil
}

func (f *FakeTransport) SetNotification(ch device.RemoteCharacteristic, enabled bool) error {
	f.mu.Lock()
	f.record(Call{Op: OpSetNotification, UUID: ch.UUID(), Enabled: enabled})
	f.mu.Unlock()
	return nil
}

func (f *FakeTransport) WriteDescriptor(ch device.RemoteCharacteristic, descriptor string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Op: OpWriteDescriptor, UUID: ch.UUID(), Descriptor: descriptor, Value: append([]byte(nil), value...)})
	err := f.descriptorErr
	ack := func() {
		if ev := f.handler(); ev != nil {
			ev.OnDescriptorWrite(ch, descriptor, err)
		}
	}
	if f.holdAcks {
		f.heldAcks = append(f.heldAcks, ack)
		return nil
	}
	f.queue = append(f.queue, ack)
	f.signal()
	return nil
}

func (f *FakeTransport) ReadRemoteRSSI() error {
	f.mu.Lock()
	f.record(Call{Op: OpReadRSSI})
	rssi := f.rssi
	f.mu.Unlock()

	f.emit(func(ev device.TransportEvents) { ev.OnReadRemoteRSSI(rssi, nil) })
	return nil
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.record(Call{Op: OpClose})
	f.closed = true
	f.events = nil
	f.mu.Unlock()

	f.stopEventsLoop()
	return nil
}

// ----------------------------
// event loop
// ----------------------------

func (f *FakeTransport) run(ctx context.Context) {
	for {
		select {
		case <-f.wake:
		case <-ctx.Done():
			return
		}
		for {
			f.mu.Lock()
			batch := f.queue
			f.queue = nil
			f.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				fn()
			}
		}
	}
}

func (f *FakeTransport) emit(fn func(ev device.TransportEvents)) {
	f.enqueue(func() {
		if ev := f.handler(); ev != nil {
			fn(ev)
		}
	})
}

func (f *FakeTransport) enqueue(fn func()) {
	f.mu.Lock()
	f.queue = append(f.queue, fn)
	f.mu.Unlock()
	f.signal()
}

func (f *FakeTransport) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *FakeTransport) handler() device.TransportEvents {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

func (f *FakeTransport) set(fn func()) {
	f.mu.Lock()
	fn()
	f.mu.Unlock()
}

// record must be called with f.mu held.
func (f *FakeTransport) record(c Call) {
	f.calls = append(f.calls, c)
}

var _ device.Transport = (*FakeTransport)(nil)
