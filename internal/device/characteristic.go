package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ValueCallback receives a decoded value or the reason there is none. A
// *DecodeError means the payload was malformed; the stream continues.
type ValueCallback[T any] func(value T, err error)

// CharacteristicKind binds a characteristic identifier to the codec of its
// value. Kinds are declared once as package variables and shared by every
// device.
type CharacteristicKind[T any] struct {
	Name   string
	UUID   string
	Decode func([]byte) (T, error)
	// Encode is nil for characteristics the client never writes.
	Encode func(T) ([]byte, error)
}

// Identifier returns the normalized characteristic UUID.
func (k *CharacteristicKind[T]) Identifier() string {
	return NormalizeUUID(k.UUID)
}

func (k *CharacteristicKind[T]) validate() error {
	if k == nil {
		return &RegistrationError{Kind: "characteristic", Reason: "nil kind", Err: ErrInvalidRegistration}
	}
	if k.Identifier() == "" {
		return &RegistrationError{Kind: "characteristic", Name: k.Name, UUID: k.UUID, Reason: "malformed identifier", Err: ErrInvalidRegistration}
	}
	if k.Decode == nil {
		return &RegistrationError{Kind: "characteristic", Name: k.Name, UUID: k.UUID, Reason: "missing decoder", Err: ErrInvalidRegistration}
	}
	return nil
}

// CharacteristicHandle is the value-type agnostic view of a characteristic.
// It is what Service enumerates and what generic consumers such as CLIs use.
type CharacteristicHandle interface {
	UUID() string
	Name() string
	Capabilities() Capabilities
	Service() *Service
	ReadAny(ctx context.Context) (any, error)
	EnableNotificationsAny(ctx context.Context, cb func(value any, err error)) error
	DisableNotifications(ctx context.Context) error

	remote() RemoteCharacteristic
	deliver(value []byte, fromRead bool, err error)
	abort(err error)
}

// operations is the part of Device a characteristic drives. Characteristics
// never own the device.
type operations interface {
	requestRead(h CharacteristicHandle) error
	requestWrite(h CharacteristicHandle, value []byte, withoutResponse bool) error
	setNotifications(ctx context.Context, h CharacteristicHandle, enable bool) error
	post(fn func())
	log() *logrus.Logger
}

type readResult[T any] struct {
	value T
	err   error
}

// Characteristic is one discovered characteristic with a typed value.
type Characteristic[T any] struct {
	kind    *CharacteristicKind[T]
	rc      RemoteCharacteristic
	service *Service
	ops     operations

	mu       sync.Mutex
	listener ValueCallback[T]
	waiters  []chan readResult[T]
}

func newCharacteristic[T any](kind *CharacteristicKind[T], rc RemoteCharacteristic, svc *Service, ops operations) *Characteristic[T] {
	return &Characteristic[T]{kind: kind, rc: rc, service: svc, ops: ops}
}

func (c *Characteristic[T]) UUID() string               { return c.kind.Identifier() }
func (c *Characteristic[T]) Name() string               { return c.kind.Name }
func (c *Characteristic[T]) Capabilities() Capabilities { return c.rc.Capabilities() }
func (c *Characteristic[T]) Service() *Service          { return c.service }

func (c *Characteristic[T]) remote() RemoteCharacteristic { return c.rc }

// Read requests the current value. When cb is non-nil it becomes the sole
// listener before the request is issued. The value arrives on the callback
// goroutine. Read is a no-op when the characteristic is not readable.
func (c *Characteristic[T]) Read(cb ValueCallback[T]) error {
	if !c.Capabilities().CanRead() {
		return nil
	}
	if cb != nil {
		c.setListener(cb)
	}
	return c.ops.requestRead(c)
}

// ReadValue reads the value and waits for it. Unlike Read it reports
// ErrUnsupported for characteristics that cannot be read.
func (c *Characteristic[T]) ReadValue(ctx context.Context) (T, error) {
	var zero T
	if !c.Capabilities().CanRead() {
		return zero, fmt.Errorf("read %s: %w", c.UUID(), ErrUnsupported)
	}

	ch := make(chan readResult[T], 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	if err := c.ops.requestRead(c); err != nil {
		c.dropWaiter(ch)
		return zero, err
	}

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		c.dropWaiter(ch)
		return zero, ctx.Err()
	}
}

// ReadAny is ReadValue without the static type.
func (c *Characteristic[T]) ReadAny(ctx context.Context) (any, error) {
	return c.ReadValue(ctx)
}

// EnableNotifications installs cb as the sole listener and turns on
// notifications, or indications when only those are offered. It blocks until
// the peripheral acknowledges the configuration write, the write times out,
// ctx ends or the device disconnects. It must not be called from a transport
// event handler.
func (c *Characteristic[T]) EnableNotifications(ctx context.Context, cb ValueCallback[T]) error {
	c.setListener(cb)
	if !c.Capabilities().CanNotify() {
		return nil
	}
	return c.ops.setNotifications(ctx, c, true)
}

// EnableNotificationsAny is EnableNotifications without the static type.
func (c *Characteristic[T]) EnableNotificationsAny(ctx context.Context, cb func(value any, err error)) error {
	return c.EnableNotifications(ctx, func(v T, err error) { cb(v, err) })
}

// DisableNotifications turns notifications off and removes the listener.
func (c *Characteristic[T]) DisableNotifications(ctx context.Context) error {
	defer c.setListener(nil)
	if !c.Capabilities().CanNotify() {
		return nil
	}
	return c.ops.setNotifications(ctx, c, false)
}

// Write encodes v and writes it. Write-without-response is used when it is
// the only write mode offered. Write is a no-op when the characteristic is
// not writable.
func (c *Characteristic[T]) Write(v T) error {
	caps := c.Capabilities()
	if !caps.CanWrite() {
		return nil
	}
	if c.kind.Encode == nil {
		return fmt.Errorf("write %s: no encoder: %w", c.UUID(), ErrUnsupported)
	}

	buf, err := c.kind.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.UUID(), err)
	}
	return c.ops.requestWrite(c, buf, caps&CapWrite == 0)
}

func (c *Characteristic[T]) setListener(cb ValueCallback[T]) {
	c.mu.Lock()
	c.listener = cb
	c.mu.Unlock()
}

func (c *Characteristic[T]) dropWaiter(ch chan readResult[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// deliver decodes a value reported by the transport and hands it to the
// listener on the callback goroutine. Completed reads also release ReadValue
// waiters.
func (c *Characteristic[T]) deliver(value []byte, fromRead bool, err error) {
	var v T
	if err == nil {
		var derr error
		v, derr = c.kind.Decode(value)
		if derr != nil {
			err = &DecodeError{UUID: c.UUID(), Value: append([]byte(nil), value...), Err: derr}
			c.ops.log().WithFields(logrus.Fields{
				"char_uuid": c.UUID(),
				"error":     derr,
			}).Warn("Failed to decode characteristic value")
		}
	}

	c.mu.Lock()
	listener := c.listener
	var waiters []chan readResult[T]
	if fromRead {
		waiters, c.waiters = c.waiters, nil
	}
	c.mu.Unlock()

	for _, w := range waiters {
		w <- readResult[T]{value: v, err: err}
	}
	if listener != nil {
		c.ops.post(func() { listener(v, err) })
	}
}

// abort fails outstanding ReadValue calls.
func (c *Characteristic[T]) abort(err error) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		w <- readResult[T]{err: err}
	}
}
