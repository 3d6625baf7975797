package goble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/angel/internal/device"
	"github.com/srg/angel/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func heartRateProfile() (*ble.Profile, *ble.Characteristic, *ble.Characteristic) {
	measurement := &ble.Characteristic{
		UUID:     ble.UUID16(0x2a37),
		Property: ble.CharNotify,
		CCCD:     &ble.Descriptor{UUID: ble.UUID16(0x2902)},
	}
	location := &ble.Characteristic{
		UUID:     ble.UUID16(0x2a38),
		Property: ble.CharRead | ble.CharWrite,
	}
	profile := &ble.Profile{Services: []*ble.Service{{
		UUID:            ble.UUID16(0x180d),
		Characteristics: []*ble.Characteristic{measurement, location},
	}}}
	return profile, measurement, location
}

type transportFixture struct {
	t         *testing.T
	helper    *testutils.TestHelper
	client    *fakeClient
	dev       *fakeBLEDevice
	events    *recordingEvents
	transport *Transport
}

func newTransportFixture(t *testing.T) *transportFixture {
	return newTransportFixtureWith(t, &recordingEvents{}, &Options{ConnectTimeout: 200 * time.Millisecond})
}

func newTransportFixtureWith(t *testing.T, events *recordingEvents, opts *Options) *transportFixture {
	profile, _, _ := heartRateProfile()
	client := newFakeClient("aa:bb:cc:dd:ee:ff", profile)
	f := &transportFixture{
		t:      t,
		helper: testutils.NewTestHelper(t),
		client: client,
		dev:    &fakeBLEDevice{client: client},
		events: events,
	}
	f.transport = NewTransport(f.dev, f.events, opts, f.helper.Logger)
	t.Cleanup(func() { _ = f.transport.Close() })
	return f
}

func (f *transportFixture) connect() {
	f.t.Helper()
	require.NoError(f.t, f.transport.Connect("aa:bb:cc:dd:ee:ff"))
	f.waitStates(1)
	require.NoError(f.t, f.transport.DiscoverServices())
	require.Eventually(f.t, func() bool {
		var n int
		f.events.snapshot(func(r *recordingEvents) { n = len(r.services) })
		return n == 1
	}, waitFor, tick)
}

func (f *transportFixture) waitStates(n int) []stateEvent {
	f.t.Helper()
	var states []stateEvent
	require.Eventually(f.t, func() bool {
		f.events.snapshot(func(r *recordingEvents) { states = append([]stateEvent(nil), r.states...) })
		return len(states) >= n
	}, waitFor, tick)
	return states
}

func (f *transportFixture) characteristic(uuid string) device.RemoteCharacteristic {
	f.t.Helper()
	var found device.RemoteCharacteristic
	f.events.snapshot(func(r *recordingEvents) {
		for _, s := range r.services {
			for _, c := range s.Characteristics() {
				if c.UUID() == uuid {
					found = c
				}
			}
		}
	})
	require.NotNil(f.t, found, "characteristic %s", uuid)
	return found
}

func TestCapabilitiesOf(t *testing.T) {
	assert.Equal(t, device.CapRead|device.CapNotify, capabilitiesOf(ble.CharRead|ble.CharNotify))
	assert.Equal(t, device.CapWriteWithoutResponse|device.CapIndicate, capabilitiesOf(ble.CharWriteNR|ble.CharIndicate))
	assert.Equal(t, device.Capabilities(0), capabilitiesOf(ble.CharBroadcast))
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"central manager has invalid state: 4", device.ErrBluetoothOff},
		{"Bluetooth is turned off", device.ErrBluetoothOff},
		{"device already connected", device.ErrAlreadyConnected},
		{"device not connected", device.ErrNotConnected},
		{"peripheral disconnected", device.ErrNotConnected},
		{"connection is not initialized", device.ErrNotInitialized},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := NormalizeError(errors.New(tt.msg))
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	plain := errors.New("att: invalid handle")
	assert.Same(t, plain, NormalizeError(plain))
	assert.NoError(t, NormalizeError(nil))
}

func TestTransportDiscoversProfile(t *testing.T) {
	f := newTransportFixture(t)
	f.connect()

	states := f.waitStates(1)
	assert.Equal(t, stateEvent{connected: true}, states[0])

	f.events.snapshot(func(r *recordingEvents) {
		require.NoError(t, r.discoverErr)
		require.Len(t, r.services, 1)
		assert.Equal(t, "180d", r.services[0].UUID())
		chars := r.services[0].Characteristics()
		require.Len(t, chars, 2)
		assert.Equal(t, "2a37", chars[0].UUID())
		assert.Equal(t, device.CapNotify, chars[0].Capabilities())
		assert.Equal(t, device.CapRead|device.CapWrite, chars[1].Capabilities())
	})
}

func TestTransportReadWrite(t *testing.T) {
	f := newTransportFixture(t)
	f.connect()
	location := f.characteristic("2a38")

	require.NoError(t, f.transport.WriteCharacteristic(location, []byte{0x02}, false))
	require.NoError(t, f.transport.ReadCharacteristic(location))
	require.Eventually(t, func() bool {
		var reads [][]byte
		var writes int
		f.events.snapshot(func(r *recordingEvents) { reads, writes = r.reads, r.writes })
		return writes == 1 && len(reads) == 1
	}, waitFor, tick)

	f.events.snapshot(func(r *recordingEvents) {
		assert.Equal(t, []byte{0x02}, r.reads[0])
		assert.NoError(t, r.readErrs[0])
	})

	// Writes without response are not acknowledged.
	require.NoError(t, f.transport.WriteCharacteristic(location, []byte{0x03}, true))
	require.NoError(t, f.transport.ReadRemoteRSSI())
	require.Eventually(t, func() bool {
		var n int
		f.events.snapshot(func(r *recordingEvents) { n = len(r.rssi) })
		return n == 1
	}, waitFor, tick)
	f.events.snapshot(func(r *recordingEvents) { assert.Equal(t, 1, r.writes) })
}

func TestTransportReadError(t *testing.T) {
	f := newTransportFixture(t)
	f.connect()
	f.client.readErr = errors.New("device not connected")

	require.NoError(t, f.transport.ReadCharacteristic(f.characteristic("2a38")))
	require.Eventually(t, func() bool {
		var n int
		f.events.snapshot(func(r *recordingEvents) { n = len(r.readErrs) })
		return n == 1
	}, waitFor, tick)
	f.events.snapshot(func(r *recordingEvents) {
		assert.ErrorIs(t, r.readErrs[0], device.ErrNotConnected)
	})
}

func TestTransportSubscribeRoutesNotifications(t *testing.T) {
	f := newTransportFixture(t)
	f.connect()
	measurement := f.characteristic("2a37")
	bleChar := measurement.(*remoteCharacteristic).char

	// Routing without a subscription delivers nothing.
	require.NoError(t, f.transport.SetNotification(measurement, true))
	require.False(t, f.client.notify(bleChar, []byte{0x00, 60}))

	require.NoError(t, f.transport.WriteDescriptor(measurement, device.CCCDUUID, device.CCCDEnableNotify))
	require.Eventually(t, func() bool {
		var n int
		f.events.snapshot(func(r *recordingEvents) { n = len(r.descriptors) })
		return n == 1
	}, waitFor, tick)

	for i := byte(0); i < 10; i++ {
		require.True(t, f.client.notify(bleChar, []byte{0x00, 60 + i}))
	}
	require.Eventually(t, func() bool {
		var n int
		f.events.snapshot(func(r *recordingEvents) { n = len(r.changes) })
		return n == 10
	}, waitFor, tick)
	f.events.snapshot(func(r *recordingEvents) {
		for i, v := range r.changes {
			assert.Equal(t, []byte{0x00, 60 + byte(i)}, v)
		}
	})

	require.NoError(t, f.transport.SetNotification(measurement, false))
	require.NoError(t, f.transport.WriteDescriptor(measurement, device.CCCDUUID, device.CCCDDisable))
	require.Eventually(t, func() bool {
		var n int
		f.events.snapshot(func(r *recordingEvents) { n = len(r.descriptors) })
		return n == 2
	}, waitFor, tick)
	f.client.mu.Lock()
	assert.Equal(t, []bool{false}, f.client.unsubscribed)
	f.client.mu.Unlock()
}

func (f *transportFixture) subscribe(uuid string) *ble.Characteristic {
	f.t.Helper()
	ch := f.characteristic(uuid)
	require.NoError(f.t, f.transport.SetNotification(ch, true))
	require.NoError(f.t, f.transport.WriteDescriptor(ch, device.CCCDUUID, device.CCCDEnableNotify))
	require.Eventually(f.t, func() bool {
		var n int
		f.events.snapshot(func(r *recordingEvents) { n = len(r.descriptors) })
		return n == 1
	}, waitFor, tick)
	return ch.(*remoteCharacteristic).char
}

func (f *transportFixture) order(n int) []string {
	f.t.Helper()
	var order []string
	require.Eventually(f.t, func() bool {
		f.events.snapshot(func(r *recordingEvents) { order = append([]string(nil), r.order...) })
		return len(order) >= n
	}, waitFor, tick)
	return order
}

func TestTransportKeepsReadsAndNotificationsInOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newTransportFixture(t)
		f.connect()
		bleChar := f.subscribe("2a37")
		f.client.mu.Lock()
		f.client.values[bleChar] = []byte{0xaa}
		f.client.mu.Unlock()

		require.True(t, f.client.notify(bleChar, []byte{0x00}))
		require.True(t, f.client.notify(bleChar, []byte{0x01}))
		require.NoError(t, f.transport.ReadCharacteristic(f.characteristic("2a37")))

		assert.Equal(t, []string{"changed 00", "changed 01", "read aa"}, f.order(3))
		require.NoError(t, f.transport.Close())
	}
}

func TestTransportDropsOldestNotificationWhenBehind(t *testing.T) {
	events := &recordingEvents{entered: make(chan struct{}, 1)}
	f := newTransportFixtureWith(t, events, &Options{ConnectTimeout: 200 * time.Millisecond, NotificationBuffer: 2})
	f.connect()
	bleChar := f.subscribe("2a37")
	f.client.mu.Lock()
	f.client.values[bleChar] = []byte{0xaa}
	f.client.mu.Unlock()

	gate := make(chan struct{})
	events.snapshot(func(r *recordingEvents) { r.gate = gate })
	require.True(t, f.client.notify(bleChar, []byte{0x00}))
	select {
	case <-events.entered:
	case <-time.After(waitFor):
		t.Fatal("notification was not delivered")
	}

	queued := func(n int) {
		require.Eventually(t, func() bool {
			f.transport.mu.Lock()
			defer f.transport.mu.Unlock()
			return len(f.transport.queue) == n
		}, waitFor, tick)
	}
	require.True(t, f.client.notify(bleChar, []byte{0x01}))
	require.NoError(t, f.transport.ReadCharacteristic(f.characteristic("2a37")))
	queued(2)
	for _, v := range []byte{0x02, 0x03, 0x04} {
		require.True(t, f.client.notify(bleChar, []byte{v}))
	}
	queued(3)
	close(gate)

	assert.Equal(t, []string{"changed 00", "read aa", "changed 03", "changed 04"}, f.order(4))
	f.helper.RequireLog(logrus.WarnLevel, "Notification buffer full")
}

func TestTransportUnknownDescriptor(t *testing.T) {
	f := newTransportFixture(t)
	f.connect()

	require.NoError(t, f.transport.WriteDescriptor(f.characteristic("2a38"), "2901", []byte("x")))
	require.Eventually(t, func() bool {
		var n int
		f.events.snapshot(func(r *recordingEvents) { n = len(r.descriptors) })
		return n == 1
	}, waitFor, tick)
	f.events.snapshot(func(r *recordingEvents) {
		var nf *device.NotFoundError
		assert.ErrorAs(t, r.descriptors[0], &nf)
	})
}

func TestTransportDisconnect(t *testing.T) {
	t.Run("requested", func(t *testing.T) {
		f := newTransportFixture(t)
		f.connect()

		require.NoError(t, f.transport.Disconnect())
		states := f.waitStates(2)
		assert.Equal(t, stateEvent{connected: false}, states[1])
		assert.ErrorIs(t, f.transport.ReadRemoteRSSI(), device.ErrNotConnected)
	})

	t.Run("link lost", func(t *testing.T) {
		f := newTransportFixture(t)
		f.connect()

		f.client.drop()
		states := f.waitStates(2)
		assert.False(t, states[1].connected)
		assert.ErrorIs(t, states[1].err, device.ErrNotConnected)
		f.helper.RequireLog(logrus.WarnLevel, "BLE link lost")
	})

	t.Run("while dialing", func(t *testing.T) {
		f := newTransportFixture(t)
		f.dev.block = true

		require.NoError(t, f.transport.Connect("aa:bb:cc:dd:ee:ff"))
		require.Eventually(t, func() bool {
			f.transport.mu.Lock()
			defer f.transport.mu.Unlock()
			return f.transport.connecting != nil
		}, waitFor, tick)
		require.NoError(t, f.transport.Disconnect())

		states := f.waitStates(1)
		assert.Equal(t, stateEvent{connected: false}, states[0])
	})

	t.Run("not connected", func(t *testing.T) {
		f := newTransportFixture(t)
		assert.ErrorIs(t, f.transport.Disconnect(), device.ErrNotConnected)
	})
}

func TestTransportDialFailure(t *testing.T) {
	f := newTransportFixture(t)
	f.dev.dialErr = errors.New("central manager has invalid state")

	require.NoError(t, f.transport.Connect("aa:bb:cc:dd:ee:ff"))
	states := f.waitStates(1)
	assert.False(t, states[0].connected)
	assert.ErrorIs(t, states[0].err, device.ErrBluetoothOff)
}

func TestTransportDialTimeout(t *testing.T) {
	f := newTransportFixture(t)
	f.dev.block = true

	require.NoError(t, f.transport.Connect("aa:bb:cc:dd:ee:ff"))
	states := f.waitStates(1)
	assert.False(t, states[0].connected)
	assert.ErrorIs(t, states[0].err, context.DeadlineExceeded)
}

func TestTransportClose(t *testing.T) {
	f := newTransportFixture(t)
	f.connect()

	require.NoError(t, f.transport.Close())
	require.NoError(t, f.transport.Close())
	assert.Error(t, f.transport.Connect("aa:bb:cc:dd:ee:ff"))

	select {
	case <-f.client.Disconnected():
	case <-time.After(waitFor):
		t.Fatal("connection was not cancelled")
	}

	time.Sleep(20 * time.Millisecond)
	f.events.snapshot(func(r *recordingEvents) {
		assert.Len(t, r.states, 1, "no events after Close")
	})
}

func TestNewTransportFactoryUsesSharedDevice(t *testing.T) {
	profile, _, _ := heartRateProfile()
	fake := &fakeBLEDevice{client: newFakeClient("aa:bb:cc:dd:ee:ff", profile)}
	orig := DeviceFactory
	DeviceFactory = func() (ble.Device, error) { return fake, nil }
	t.Cleanup(func() {
		DeviceFactory = orig
		sharedMu.Lock()
		sharedDev = nil
		sharedMu.Unlock()
	})

	factory := NewTransportFactory(nil, testutils.NewTestHelper(t).Logger)
	tr, err := factory(context.Background(), &recordingEvents{})
	require.NoError(t, err)
	defer tr.Close()
	assert.Same(t, fake, tr.(*Transport).dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = factory(ctx, &recordingEvents{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSharedDeviceFailureIsRetried(t *testing.T) {
	orig := DeviceFactory
	calls := 0
	DeviceFactory = func() (ble.Device, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("bluetooth is turned off")
		}
		return &fakeBLEDevice{}, nil
	}
	t.Cleanup(func() {
		DeviceFactory = orig
		sharedMu.Lock()
		sharedDev = nil
		sharedMu.Unlock()
	})

	_, err := sharedDevice()
	assert.ErrorIs(t, err, device.ErrBluetoothOff)
	dev, err := sharedDevice()
	require.NoError(t, err)
	assert.NotNil(t, dev)
	assert.Equal(t, 2, calls)
}
