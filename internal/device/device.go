package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/angel/internal/groutine"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// State is the lifecycle state of a Device.
type State int

const (
	StateIdle State = iota
	StateBinding
	StateConnected
	StateDiscoveringServices
	StateReady
	StateDisconnected
)

var stateNames = [...]string{"idle", "binding", "connected", "discovering_services", "ready", "disconnected"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// linkUp reports whether the transport link is established.
func (s State) linkUp() bool {
	return s == StateConnected || s == StateDiscoveringServices || s == StateReady
}

// pendingAction is deferred until the transport session is bound.
type pendingAction int

const (
	actionNone pendingAction = iota
	actionConnect
	actionDisconnect
)

// Options tunes a Device.
type Options struct {
	// DescriptorWriteTimeout bounds the wait for a configuration descriptor
	// acknowledgement.
	DescriptorWriteTimeout time.Duration `default:"5s"`
	// CallbackQueueSize is the callback backlog above which a slow consumer
	// is reported. Callbacks are never dropped.
	CallbackQueueSize int `default:"256"`
}

// DefaultOptions returns Options with every field at its default.
func DefaultOptions() Options {
	var o Options
	defaults.SetDefaults(&o)
	return o
}

// Callbacks are invoked on the device callback goroutine, never on the
// transport goroutine. Any of them may be nil.
type Callbacks struct {
	OnServicesDiscovered func(d *Device)
	// OnDisconnected fires for every link loss after the link was up. err is
	// nil when the disconnection was requested through Disconnect.
	OnDisconnected   func(d *Device, err error)
	OnReadRemoteRSSI func(d *Device, rssi int, err error)
	// OnError reports transport failures: bind, connect and discovery.
	OnError       func(d *Device, err error)
	OnStateChange func(d *Device, from, to State)
}

// Device is one session with a remote peripheral: the registered service
// kinds, the services discovered on the current connection and the
// transport that carries them.
type Device struct {
	factory   TransportFactory
	opts      Options
	callbacks Callbacks
	logger    *logrus.Logger

	mu             sync.Mutex
	address        string
	state          State
	pending        pendingAction
	transport      Transport
	userDisconnect bool
	closed         bool
	classes        *orderedmap.OrderedMap[string, ServiceClass]
	services       *orderedmap.OrderedMap[string, *Service]
	handles        map[RemoteCharacteristic]CharacteristicHandle

	opMu        sync.Mutex // one descriptor write at a time
	descriptors *rendezvous

	dispatch *dispatcher
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewDevice creates an idle device. opts may be nil for defaults; zero
// fields are filled with defaults.
func NewDevice(factory TransportFactory, callbacks Callbacks, opts *Options, logger *logrus.Logger) *Device {
	if logger == nil {
		logger = logrus.New()
	}
	o := DefaultOptions()
	if opts != nil {
		o = *opts
		defaults.SetDefaults(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Device{
		factory:     factory,
		opts:        o,
		callbacks:   callbacks,
		logger:      logger,
		state:       StateIdle,
		classes:     orderedmap.New[string, ServiceClass](),
		services:    orderedmap.New[string, *Service](),
		handles:     make(map[RemoteCharacteristic]CharacteristicHandle),
		descriptors: newRendezvous(),
		dispatch:    newDispatcher(context.Background(), o.CallbackQueueSize, logger),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Address returns the address of the last connect request.
func (d *Device) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// State returns the current lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// RegisterServiceClass registers a service kind to be instantiated when the
// peripheral offers it. Registration is only accepted while no connection is
// in progress.
func (d *Device) RegisterServiceClass(class ServiceClass) error {
	if class == nil {
		return &RegistrationError{Kind: "service", Reason: "nil kind", Err: ErrInvalidRegistration}
	}
	if err := class.validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateIdle && d.state != StateDisconnected {
		return &RegistrationError{
			Kind:   "service",
			Name:   class.ServiceName(),
			UUID:   class.Identifier(),
			Reason: "device is " + d.state.String(),
			Err:    ErrInvalidRegistration,
		}
	}

	id := class.Identifier()
	if _, dup := d.classes.Get(id); dup {
		return &RegistrationError{
			Kind:   "service",
			Name:   class.ServiceName(),
			UUID:   id,
			Reason: "identifier already registered",
			Err:    ErrDuplicateRegistration,
		}
	}
	d.classes.Set(id, class)
	return nil
}

// Connect starts a connection to address. It returns once the request is
// under way; progress is reported through Callbacks.
func (d *Device) Connect(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrNotInitialized
	}
	if d.state != StateIdle && d.state != StateDisconnected {
		state := d.state
		d.mu.Unlock()
		return &ConnectionError{State: AlreadyConnected, Msg: "device is " + state.String()}
	}

	d.address = address
	d.userDisconnect = false
	d.services = orderedmap.New[string, *Service]()
	d.handles = make(map[RemoteCharacteristic]CharacteristicHandle)
	d.setStateLocked(StateBinding)

	t := d.transport
	if t == nil {
		d.pending = actionConnect
		d.mu.Unlock()

		d.logger.WithField("address", address).Debug("Binding transport session")
		groutine.Go(d.ctx, "angel-transport-bind", d.bind)
		return nil
	}
	d.mu.Unlock()

	return d.requestConnect(t, address)
}

func (d *Device) bind(ctx context.Context) {
	t, err := d.factory(ctx, d)

	d.mu.Lock()
	if err != nil {
		d.pending = actionNone
		d.setStateLocked(StateDisconnected)
		d.mu.Unlock()

		d.reportError(fmt.Errorf("bind transport: %w", err))
		return
	}

	if d.closed {
		d.mu.Unlock()
		_ = t.Close()
		return
	}

	d.transport = t
	action := d.pending
	d.pending = actionNone
	address := d.address

	if action == actionDisconnect {
		d.setStateLocked(StateDisconnected)
		d.mu.Unlock()

		d.logger.WithField("address", address).Debug("Disconnect requested while binding")
		d.postDisconnected(nil)
		return
	}
	d.mu.Unlock()

	if action == actionConnect {
		if err := d.requestConnect(t, address); err != nil {
			d.reportError(err)
		}
	}
}

func (d *Device) requestConnect(t Transport, address string) error {
	d.logger.WithField("address", address).Info("Connecting to device...")

	if err := t.Connect(address); err != nil {
		d.mu.Lock()
		if d.state == StateBinding {
			d.setStateLocked(StateDisconnected)
		}
		d.mu.Unlock()
		return fmt.Errorf("connect %s: %w", address, err)
	}
	return nil
}

// Disconnect requests disconnection. While the transport is still binding
// the request is deferred until binding completes.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	switch {
	case d.state == StateIdle || d.state == StateDisconnected:
		d.mu.Unlock()
		return ErrNotConnected
	case d.state == StateBinding && d.transport == nil:
		d.pending = actionDisconnect
		d.mu.Unlock()
		return nil
	}
	d.userDisconnect = true
	t := d.transport
	d.mu.Unlock()

	d.descriptors.cancel(ErrDisconnected)
	return t.Disconnect()
}

// ReadRemoteRSSI requests a signal strength sample, reported through
// Callbacks.OnReadRemoteRSSI.
func (d *Device) ReadRemoteRSSI() error {
	d.mu.Lock()
	t := d.transport
	up := d.state.linkUp()
	d.mu.Unlock()

	if !up {
		return ErrNotConnected
	}
	return t.ReadRemoteRSSI()
}

// Services lists the services discovered on the current connection in
// discovery order.
func (d *Device) Services() []*Service {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*Service, 0, d.services.Len())
	for pair := d.services.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Service looks up a discovered service by UUID.
func (d *Device) Service(uuid string) (*Service, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if svc, ok := d.services.Get(NormalizeUUID(uuid)); ok {
		return svc, nil
	}
	return nil, &NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

// GetService returns the typed view of a discovered service.
func GetService[S any](d *Device, kind *ServiceKind[S]) (S, error) {
	var zero S
	svc, err := d.Service(kind.Identifier())
	if err != nil {
		return zero, err
	}
	v, ok := svc.Instance().(S)
	if !ok {
		return zero, fmt.Errorf("service %s was built by a different kind: %w", svc.UUID(), ErrInvalidRegistration)
	}
	return v, nil
}

// Close disconnects, releases the transport and stops callback delivery.
// OnDisconnected is not reported for a link closed this way. Callbacks queued
// before Close still run; Done reports when they have. The device cannot be
// reused.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	t := d.transport
	d.transport = nil
	up := d.state.linkUp() || d.state == StateBinding
	handles := d.handles
	d.handles = make(map[RemoteCharacteristic]CharacteristicHandle)
	d.services = orderedmap.New[string, *Service]()
	if d.state != StateIdle {
		d.setStateLocked(StateDisconnected)
	}
	d.mu.Unlock()

	d.descriptors.cancel(ErrNotInitialized)
	for _, h := range handles {
		h.abort(ErrNotInitialized)
	}

	var errs []error
	if t != nil {
		if up {
			if err := t.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
				errs = append(errs, err)
			}
		}
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	d.dispatch.close()
	d.cancel()
	return errors.Join(errs...)
}

// Done is closed once Close has been called and every callback queued before
// it has run.
func (d *Device) Done() <-chan struct{} { return d.dispatch.done }

// ----------------------------
// TransportEvents
// ----------------------------

func (d *Device) OnConnectionStateChange(connected bool, err error) {
	if connected {
		d.onConnected()
		return
	}

	d.mu.Lock()
	prev := d.state
	if prev == StateIdle || prev == StateDisconnected {
		d.mu.Unlock()
		return
	}
	d.setStateLocked(StateDisconnected)
	handles := d.handles
	d.services = orderedmap.New[string, *Service]()
	d.handles = make(map[RemoteCharacteristic]CharacteristicHandle)
	requested := d.userDisconnect
	d.userDisconnect = false
	address := d.address
	d.mu.Unlock()

	d.descriptors.cancel(ErrDisconnected)
	for _, h := range handles {
		h.abort(ErrDisconnected)
	}

	log := d.logger.WithFields(logrus.Fields{"address": address, "state": prev})
	if prev == StateBinding && !requested {
		if err == nil {
			err = ErrNotConnected
		}
		log.WithError(err).Warn("Connection attempt failed")
		d.reportError(fmt.Errorf("connect %s: %w", address, err))
		return
	}

	if requested {
		err = nil
		log.Info("Disconnected")
	} else {
		log.WithError(err).Warn("Connection lost")
	}
	d.postDisconnected(err)
}

func (d *Device) onConnected() {
	d.mu.Lock()
	if d.state != StateBinding {
		state := d.state
		d.mu.Unlock()
		d.logger.WithField("state", state).Debug("Ignoring connected event")
		return
	}
	d.setStateLocked(StateConnected)
	d.descriptors.open()
	t := d.transport
	d.setStateLocked(StateDiscoveringServices)
	d.mu.Unlock()

	if err := t.DiscoverServices(); err != nil {
		d.OnServicesDiscovered(nil, err)
	}
}

func (d *Device) OnServicesDiscovered(remotes []RemoteService, err error) {
	d.mu.Lock()
	if d.state != StateDiscoveringServices && d.state != StateReady {
		d.mu.Unlock()
		return
	}
	if err != nil {
		d.setStateLocked(StateConnected)
		d.mu.Unlock()
		d.reportError(fmt.Errorf("discover services: %w", err))
		return
	}

	var errs []error
	for _, rs := range remotes {
		id := NormalizeUUID(rs.UUID())
		class, ok := d.classes.Get(id)
		if !ok {
			d.logger.WithField("service_uuid", id).Debug("Skipping unregistered service")
			continue
		}
		if _, known := d.services.Get(id); known {
			continue
		}

		svc := newService(class, rs, d)
		inst, err := class.build(svc)
		if err != nil {
			errs = append(errs, fmt.Errorf("build service %s: %w", id, err))
			continue
		}
		svc.instance = inst
		d.services.Set(id, svc)
		for _, h := range svc.Characteristics() {
			d.handles[h.remote()] = h
		}

		d.logger.WithFields(logrus.Fields{
			"service_uuid":    id,
			"service":         svc.Name(),
			"characteristics": svc.characteristics.Len(),
		}).Debug("Service instantiated")
	}
	d.setStateLocked(StateReady)
	d.mu.Unlock()

	for _, err := range errs {
		d.logger.WithError(err).Error("Service construction failed")
		d.reportError(err)
	}
	if cb := d.callbacks.OnServicesDiscovered; cb != nil {
		d.post(func() { cb(d) })
	}
}

func (d *Device) OnCharacteristicRead(rc RemoteCharacteristic, value []byte, err error) {
	if h := d.handle(rc); h != nil {
		h.deliver(value, true, err)
	}
}

func (d *Device) OnCharacteristicChanged(rc RemoteCharacteristic, value []byte) {
	if h := d.handle(rc); h != nil {
		h.deliver(value, false, nil)
	}
}

func (d *Device) OnCharacteristicWrite(rc RemoteCharacteristic, err error) {
	if err != nil {
		d.reportError(fmt.Errorf("write characteristic %s: %w", NormalizeUUID(rc.UUID()), err))
	}
}

func (d *Device) OnDescriptorWrite(rc RemoteCharacteristic, descriptor string, err error) {
	if !d.descriptors.complete(rc, descriptor, err) {
		d.logger.WithFields(logrus.Fields{
			"char_uuid":  NormalizeUUID(rc.UUID()),
			"descriptor": descriptor,
		}).Debug("Unexpected descriptor write acknowledgement")
	}
}

func (d *Device) OnReadRemoteRSSI(rssi int, err error) {
	if cb := d.callbacks.OnReadRemoteRSSI; cb != nil {
		d.post(func() { cb(d, rssi, err) })
	}
}

func (d *Device) handle(rc RemoteCharacteristic) CharacteristicHandle {
	d.mu.Lock()
	h := d.handles[rc]
	d.mu.Unlock()

	if h == nil {
		d.logger.WithField("char_uuid", NormalizeUUID(rc.UUID())).Debug("Event for unregistered characteristic")
	}
	return h
}

// ----------------------------
// operations
// ----------------------------

func (d *Device) readyTransport() (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return nil, &ConnectionError{State: NotConnected, Msg: "device is " + d.state.String()}
	}
	return d.transport, nil
}

func (d *Device) requestRead(h CharacteristicHandle) error {
	t, err := d.readyTransport()
	if err != nil {
		return err
	}
	return t.ReadCharacteristic(h.remote())
}

func (d *Device) requestWrite(h CharacteristicHandle, value []byte, withoutResponse bool) error {
	t, err := d.readyTransport()
	if err != nil {
		return err
	}
	return t.WriteCharacteristic(h.remote(), value, withoutResponse)
}

func (d *Device) setNotifications(ctx context.Context, h CharacteristicHandle, enable bool) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	t, err := d.readyTransport()
	if err != nil {
		return err
	}

	rc := h.remote()
	if err := t.SetNotification(rc, enable); err != nil {
		return fmt.Errorf("set notification on %s: %w", h.UUID(), err)
	}

	value := CCCDDisable
	if enable {
		value = CCCDEnableIndication
		if h.Capabilities()&CapNotify != 0 {
			value = CCCDEnableNotify
		}
	}

	w, err := d.descriptors.begin(rc, CCCDUUID)
	if err != nil {
		return err
	}
	if err := t.WriteDescriptor(rc, CCCDUUID, value); err != nil {
		d.descriptors.withdraw(w)
		return fmt.Errorf("write configuration descriptor of %s: %w", h.UUID(), err)
	}

	d.logger.WithFields(logrus.Fields{
		"char_uuid": h.UUID(),
		"enable":    enable,
	}).Debug("Waiting for configuration descriptor acknowledgement")

	if err := d.descriptors.wait(ctx, w, d.opts.DescriptorWriteTimeout); err != nil {
		return fmt.Errorf("configure notifications on %s: %w", h.UUID(), err)
	}
	return nil
}

func (d *Device) post(fn func()) { d.dispatch.post(fn) }

func (d *Device) log() *logrus.Logger { return d.logger }

// setStateLocked must be called with d.mu held.
func (d *Device) setStateLocked(to State) {
	from := d.state
	if from == to {
		return
	}
	d.state = to

	d.logger.WithFields(logrus.Fields{
		"address": d.address,
		"from":    from,
		"to":      to,
	}).Debug("Device state changed")

	if cb := d.callbacks.OnStateChange; cb != nil {
		d.post(func() { cb(d, from, to) })
	}
}

func (d *Device) postDisconnected(err error) {
	if cb := d.callbacks.OnDisconnected; cb != nil {
		d.post(func() { cb(d, err) })
	}
}

func (d *Device) reportError(err error) {
	if cb := d.callbacks.OnError; cb != nil {
		d.post(func() { cb(d, err) })
		return
	}
	d.logger.WithError(err).Error("Device error")
}
