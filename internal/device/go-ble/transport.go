// Package goble implements the device transport and scanning contracts on
// top of github.com/go-ble/ble.
package goble

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/srg/angel/internal/device"
	"github.com/srg/angel/internal/groutine"
)

// Options tunes a Transport.
type Options struct {
	ConnectTimeout time.Duration `default:"30s"`
	// NotificationBuffer bounds notifications waiting for delivery; the
	// oldest are dropped when the consumer falls behind.
	NotificationBuffer int `default:"256"`
	RequestQueueSize   int `default:"64"`
}

// event is one queued callback. Notifications are marked so the oldest can
// be dropped without touching request completions.
type event struct {
	fire         func(ev device.TransportEvents)
	notification bool
}

// Transport drives one peripheral connection through go-ble. go-ble calls
// block, so requests are executed one at a time on a worker goroutine and
// their outcomes are delivered on a separate event goroutine.
type Transport struct {
	dev    ble.Device
	events device.TransportEvents
	opts   Options
	logger *logrus.Logger

	requests chan func()

	mu            sync.Mutex
	client        ble.Client
	connecting    context.CancelFunc
	disconnecting bool
	routed        map[*remoteCharacteristic]bool
	indicating    map[*remoteCharacteristic]bool
	queue         []event
	pendingNotes  int
	closed        bool
	wake          chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewTransport binds a transport to dev. opts may be nil.
func NewTransport(dev ble.Device, events device.TransportEvents, opts *Options, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	defaults.SetDefaults(&o)

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		dev:           dev,
		events:        events,
		opts:          o,
		logger:        logger,
		requests:      make(chan func(), o.RequestQueueSize),
		routed:        make(map[*remoteCharacteristic]bool),
		indicating:    make(map[*remoteCharacteristic]bool),
		wake:          make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}

	groutine.Go(ctx, "goble-gatt-worker", t.work)
	groutine.Go(ctx, "goble-transport-events", t.deliver)
	return t
}

// NewTransportFactory returns a device.TransportFactory that binds
// transports to the shared host radio device.
func NewTransportFactory(opts *Options, logger *logrus.Logger) device.TransportFactory {
	return func(ctx context.Context, events device.TransportEvents) (device.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dev, err := sharedDevice()
		if err != nil {
			return nil, err
		}
		return NewTransport(dev, events, opts, logger), nil
	}
}

// ----------------------------
// device.Transport
// ----------------------------

func (t *Transport) Connect(address string) error {
	t.mu.Lock()
	if t.client != nil || t.connecting != nil {
		t.mu.Unlock()
		return device.ErrAlreadyConnected
	}
	ctx, cancel := context.WithTimeout(t.ctx, t.opts.ConnectTimeout)
	t.connecting = cancel
	t.disconnecting = false
	t.mu.Unlock()

	err := t.submit(func() {
		defer cancel()
		t.dial(ctx, address)
	})
	if err != nil {
		cancel()
		t.mu.Lock()
		t.connecting = nil
		t.mu.Unlock()
	}
	return err
}

func (t *Transport) dial(ctx context.Context, address string) {
	log := t.logger.WithField("address", address)
	log.Debug("Dialing BLE device...")

	client, err := t.dev.Dial(ctx, ble.NewAddr(address))

	t.mu.Lock()
	t.connecting = nil
	requested := t.disconnecting
	if err == nil && ctx.Err() != nil {
		// Cancelled after the link came up.
		err = ctx.Err()
		go client.CancelConnection() //nolint:errcheck
	}
	if err != nil {
		t.mu.Unlock()
		if requested {
			log.Debug("Connection attempt cancelled")
			t.emit(func(ev device.TransportEvents) { ev.OnConnectionStateChange(false, nil) })
			return
		}
		err = NormalizeError(errors.Wrapf(err, "failed to connect to device with address %q", address))
		log.WithError(err).Warn("Failed to dial BLE device")
		t.emit(func(ev device.TransportEvents) { ev.OnConnectionStateChange(false, err) })
		return
	}
	t.client = client
	t.mu.Unlock()

	t.monitor(client)
	log.Info("BLE device connected")
	t.emit(func(ev device.TransportEvents) { ev.OnConnectionStateChange(true, nil) })
}

// monitor reports the link loss go-ble signals through Disconnected().
func (t *Transport) monitor(client ble.Client) {
	groutine.Go(t.ctx, "goble-connection-monitor", func(ctx context.Context) {
		select {
		case <-client.Disconnected():
			t.linkDown(client)
		case <-ctx.Done():
		}
	})
}

func (t *Transport) linkDown(client ble.Client) {
	t.mu.Lock()
	if t.client != client {
		t.mu.Unlock()
		return
	}
	t.client = nil
	requested := t.disconnecting
	t.disconnecting = false
	t.routed = make(map[*remoteCharacteristic]bool)
	t.indicating = make(map[*remoteCharacteristic]bool)
	t.mu.Unlock()

	var err error
	if !requested {
		err = errors.Wrap(device.ErrNotConnected, "link lost")
		t.logger.WithField("address", client.Addr().String()).Warn("BLE link lost")
	}
	t.emit(func(ev device.TransportEvents) { ev.OnConnectionStateChange(false, err) })
}

func (t *Transport) Disconnect() error {
	t.mu.Lock()
	if cancel := t.connecting; cancel != nil {
		t.disconnecting = true
		t.mu.Unlock()
		cancel()
		return nil
	}
	client := t.client
	if client == nil {
		t.mu.Unlock()
		return device.ErrNotConnected
	}
	t.disconnecting = true
	t.mu.Unlock()

	// Not queued: a disconnect must not wait behind a stalled request.
	groutine.Go(t.ctx, "goble-disconnect", func(context.Context) {
		if err := client.CancelConnection(); err != nil {
			t.logger.WithError(err).Warn("Failed to cancel connection")
			t.linkDown(client)
		}
	})
	return nil
}

func (t *Transport) DiscoverServices() error {
	return t.withClient(func(client ble.Client) {
		profile, err := client.DiscoverProfile(true)
		if err != nil {
			err = NormalizeError(errors.Wrap(err, "failed to discover profile"))
			t.emit(func(ev device.TransportEvents) { ev.OnServicesDiscovered(nil, err) })
			return
		}

		services := make([]device.RemoteService, 0, len(profile.Services))
		for _, s := range profile.Services {
			services = append(services, newRemoteService(s))
		}
		t.logger.WithField("services", len(services)).Debug("Profile discovered")
		t.emit(func(ev device.TransportEvents) { ev.OnServicesDiscovered(services, nil) })
	}, func(err error) {
		t.emit(func(ev device.TransportEvents) { ev.OnServicesDiscovered(nil, err) })
	})
}

func (t *Transport) ReadCharacteristic(ch device.RemoteCharacteristic) error {
	rc, err := asRemote(ch)
	if err != nil {
		return err
	}
	return t.withClient(func(client ble.Client) {
		value, err := client.ReadCharacteristic(rc.char)
		if err != nil {
			err = NormalizeError(errors.Wrapf(err, "failed to read characteristic %s", rc.uuid))
		}
		t.emit(func(ev device.TransportEvents) { ev.OnCharacteristicRead(rc, value, err) })
	}, func(err error) {
		t.emit(func(ev device.TransportEvents) { ev.OnCharacteristicRead(rc, nil, err) })
	})
}

func (t *Transport) WriteCharacteristic(ch device.RemoteCharacteristic, value []byte, withoutResponse bool) error {
	rc, err := asRemote(ch)
	if err != nil {
		return err
	}
	buf := append([]byte(nil), value...)
	return t.withClient(func(client ble.Client) {
		err := client.WriteCharacteristic(rc.char, buf, withoutResponse)
		if err != nil {
			err = NormalizeError(errors.Wrapf(err, "failed to write characteristic %s", rc.uuid))
		}
		if !withoutResponse || err != nil {
			t.emit(func(ev device.TransportEvents) { ev.OnCharacteristicWrite(rc, err) })
		}
	}, func(err error) {
		t.emit(func(ev device.TransportEvents) { ev.OnCharacteristicWrite(rc, err) })
	})
}

// SetNotification only routes value changes; go-ble switches the peripheral
// side when the configuration descriptor is written.
func (t *Transport) SetNotification(ch device.RemoteCharacteristic, enabled bool) error {
	rc, err := asRemote(ch)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if enabled {
		t.routed[rc] = true
	} else {
		delete(t.routed, rc)
	}
	return nil
}

// WriteDescriptor writes a descriptor value. Configuration descriptor
// writes go through go-ble's Subscribe and Unsubscribe, which write the
// descriptor themselves and install the notification handler.
func (t *Transport) WriteDescriptor(ch device.RemoteCharacteristic, descriptor string, value []byte) error {
	rc, err := asRemote(ch)
	if err != nil {
		return err
	}
	buf := append([]byte(nil), value...)
	ack := func(err error) {
		t.emit(func(ev device.TransportEvents) { ev.OnDescriptorWrite(rc, descriptor, err) })
	}

	return t.withClient(func(client ble.Client) {
		var err error
		if device.NormalizeUUID(descriptor) == device.CCCDUUID {
			err = t.configure(client, rc, buf)
		} else if d := rc.descriptor(descriptor); d != nil {
			err = client.WriteDescriptor(d, buf)
		} else {
			err = &device.NotFoundError{Resource: "descriptor", UUIDs: []string{rc.uuid, descriptor}}
		}
		if err != nil {
			err = NormalizeError(errors.Wrapf(err, "failed to write descriptor %s of %s", descriptor, rc.uuid))
		}
		ack(err)
	}, ack)
}

func (t *Transport) configure(client ble.Client, rc *remoteCharacteristic, value []byte) error {
	switch {
	case bytes.Equal(value, device.CCCDEnableNotify), bytes.Equal(value, device.CCCDEnableIndication):
		ind := bytes.Equal(value, device.CCCDEnableIndication)
		if err := client.Subscribe(rc.char, ind, t.handler(rc)); err != nil {
			return err
		}
		t.mu.Lock()
		t.indicating[rc] = ind
		t.mu.Unlock()
		return nil

	case bytes.Equal(value, device.CCCDDisable):
		t.mu.Lock()
		ind, subscribed := t.indicating[rc]
		delete(t.indicating, rc)
		t.mu.Unlock()
		if !subscribed {
			return nil
		}
		return client.Unsubscribe(rc.char, ind)

	default:
		return errors.Errorf("unsupported configuration value % x", value)
	}
}

// handler runs on go-ble's goroutine and must not block.
func (t *Transport) handler(rc *remoteCharacteristic) ble.NotificationHandler {
	return func(data []byte) {
		t.mu.Lock()
		routed := t.routed[rc]
		t.mu.Unlock()
		if !routed {
			return
		}
		value := append([]byte(nil), data...)
		if t.push(event{
			fire:         func(ev device.TransportEvents) { ev.OnCharacteristicChanged(rc, value) },
			notification: true,
		}) {
			t.logger.WithField("char_uuid", rc.uuid).Warn("Notification buffer full, dropped oldest value")
		}
	}
}

func (t *Transport) ReadRemoteRSSI() error {
	return t.withClient(func(client ble.Client) {
		rssi := client.ReadRSSI()
		t.emit(func(ev device.TransportEvents) { ev.OnReadRemoteRSSI(rssi, nil) })
	}, func(err error) {
		t.emit(func(ev device.TransportEvents) { ev.OnReadRemoteRSSI(0, err) })
	})
}

// Close cancels any connection and stops both goroutines. The shared radio
// device stays up for later sessions.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	client := t.client
	t.client = nil
	cancelConnect := t.connecting
	t.mu.Unlock()

	if cancelConnect != nil {
		cancelConnect()
	}
	t.cancel()

	if client != nil {
		if err := client.CancelConnection(); err != nil {
			return NormalizeError(errors.Wrap(err, "failed to cancel connection"))
		}
	}
	return nil
}

// ----------------------------
// request worker and event delivery
// ----------------------------

func (t *Transport) submit(fn func()) error {
	select {
	case <-t.ctx.Done():
		return device.ErrNotInitialized
	default:
	}
	select {
	case t.requests <- fn:
		return nil
	case <-t.ctx.Done():
		return device.ErrNotInitialized
	}
}

// withClient queues fn to run against the live client. When the link is
// gone by the time fn runs, fail reports ErrNotConnected instead.
func (t *Transport) withClient(fn func(ble.Client), fail func(error)) error {
	t.mu.Lock()
	connected := t.client != nil
	t.mu.Unlock()
	if !connected {
		return device.ErrNotConnected
	}

	return t.submit(func() {
		t.mu.Lock()
		client := t.client
		t.mu.Unlock()
		if client == nil {
			fail(device.ErrNotConnected)
			return
		}
		fn(client)
	})
}

func (t *Transport) work(ctx context.Context) {
	for {
		select {
		case fn := <-t.requests:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// deliver fires queued events in arrival order, so a notification and a
// read completion on the same characteristic never overtake each other.
func (t *Transport) deliver(ctx context.Context) {
	for {
		select {
		case <-t.wake:
			for {
				t.mu.Lock()
				batch := t.queue
				t.queue = nil
				t.pendingNotes = 0
				closed := t.closed
				t.mu.Unlock()
				if len(batch) == 0 || closed {
					break
				}
				for _, e := range batch {
					e.fire(t.events)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (t *Transport) emit(fn func(ev device.TransportEvents)) {
	t.push(event{fire: fn})
}

// push queues e and reports whether an older notification was dropped to
// keep pending notifications within NotificationBuffer.
func (t *Transport) push(e event) (dropped bool) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	if e.notification {
		if t.pendingNotes >= t.opts.NotificationBuffer {
			for i, q := range t.queue {
				if q.notification {
					t.queue = append(t.queue[:i], t.queue[i+1:]...)
					dropped = true
					break
				}
			}
		} else {
			t.pendingNotes++
		}
	}
	t.queue = append(t.queue, e)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
	return dropped
}

func asRemote(ch device.RemoteCharacteristic) (*remoteCharacteristic, error) {
	rc, ok := ch.(*remoteCharacteristic)
	if !ok {
		return nil, errors.Errorf("characteristic %s was not discovered by this transport", ch.UUID())
	}
	return rc, nil
}

var _ device.Transport = (*Transport)(nil)
