package device

import "context"

// CCCDUUID is the Client Characteristic Configuration descriptor.
const CCCDUUID = "2902"

// Client Characteristic Configuration values.
var (
	CCCDDisable          = []byte{0x00, 0x00}
	CCCDEnableNotify     = []byte{0x01, 0x00}
	CCCDEnableIndication = []byte{0x02, 0x00}
)

// RemoteService is a service handle reported by the transport during
// discovery.
type RemoteService interface {
	UUID() string
	Characteristics() []RemoteCharacteristic
}

// RemoteCharacteristic is a characteristic handle reported by the transport.
// Events identify characteristics by handle, so implementations must be
// comparable and stable for the lifetime of a connection.
type RemoteCharacteristic interface {
	UUID() string
	Capabilities() Capabilities
}

// Transport is the radio stack seen from a Device. Every request method
// returns as soon as the request is queued; its outcome arrives later through
// TransportEvents on the transport's own event goroutine. A non-nil return
// means the request was not queued at all.
type Transport interface {
	Connect(address string) error
	Disconnect() error
	DiscoverServices() error
	ReadCharacteristic(ch RemoteCharacteristic) error
	WriteCharacteristic(ch RemoteCharacteristic, value []byte, withoutResponse bool) error
	// SetNotification enables local routing of value-changed events for ch.
	// The peripheral side is switched by writing the CCCD.
	SetNotification(ch RemoteCharacteristic, enabled bool) error
	WriteDescriptor(ch RemoteCharacteristic, descriptor string, value []byte) error
	ReadRemoteRSSI() error
	// Close releases the transport session. No events are delivered after it returns.
	Close() error
}

// TransportEvents receives transport outcomes. Implementations are invoked
// from a single goroutine owned by the transport, in the order the radio
// produced them.
type TransportEvents interface {
	OnConnectionStateChange(connected bool, err error)
	OnServicesDiscovered(services []RemoteService, err error)
	OnCharacteristicRead(ch RemoteCharacteristic, value []byte, err error)
	OnCharacteristicWrite(ch RemoteCharacteristic, err error)
	OnCharacteristicChanged(ch RemoteCharacteristic, value []byte)
	OnDescriptorWrite(ch RemoteCharacteristic, descriptor string, err error)
	OnReadRemoteRSSI(rssi int, err error)
}

// TransportFactory binds a new transport session that reports to events.
// Binding may block (adapter power-up); Device calls it off the caller's
// goroutine.
type TransportFactory func(ctx context.Context, events TransportEvents) (Transport, error)
