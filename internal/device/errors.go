package device

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a GATT resource is not found
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // [serviceUUID] or [serviceUUID, charUUID]
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Operation errors
var (
	ErrTimeout      = errors.New("timeout")
	ErrUnsupported  = errors.New("unsupported")
	ErrBusy         = errors.New("operation already pending")
	ErrBluetoothOff = errors.New("bluetooth is turned off")

	// ErrDisconnected is returned to operations cut short by a disconnection.
	// It matches ErrNotConnected through errors.Is.
	ErrDisconnected = &ConnectionError{State: NotConnected, Msg: "disconnected while waiting"}
)

// Registration errors
var (
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrInvalidRegistration   = errors.New("invalid registration")
)

// RegistrationError reports a service or characteristic kind that cannot be
// registered. These are programming errors and are never retried.
type RegistrationError struct {
	Kind   string // "service" or "characteristic"
	Name   string
	UUID   string
	Reason string
	Err    error // ErrDuplicateRegistration or ErrInvalidRegistration
}

func (e *RegistrationError) Error() string {
	subject := e.Kind
	if e.Name != "" {
		subject = fmt.Sprintf("%s %q", e.Kind, e.Name)
	}
	if e.UUID != "" {
		subject = fmt.Sprintf("%s (%s)", subject, e.UUID)
	}
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", subject, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", subject, e.Err, e.Reason)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// DecodeError reports a characteristic payload that failed to decode. The
// notification stream is not affected; later values are still delivered.
type DecodeError struct {
	UUID  string
	Value []byte
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("characteristic %s: decode % x: %v", e.UUID, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// ContainsIgnoreCase checks substring case-insensitively. Transport
// implementations use it to classify library error strings.
func ContainsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
