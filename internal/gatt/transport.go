// Package gatt abstracts the platform BLE stack behind small interfaces so
// the session layer can be exercised against a mock transport. The real
// implementation wraps tinygo-org/bluetooth.
package gatt

import (
	"context"
	"fmt"
)

// ErrorKind classifies a transport failure. The session manager branches on
// kind (log severity, retry pacing), never on error message content.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindAdapterUnavailable
	KindTimeout
	KindPeerDisconnected
)

// String fulfils the Stringer interface.
func (k ErrorKind) String() string {
	switch k {
	case KindAdapterUnavailable:
		return "adapter unavailable"
	case KindTimeout:
		return "timeout"
	case KindPeerDisconnected:
		return "peer disconnected"
	default:
		return "transport error"
	}
}

// TransportError is the single error type surfaced by a Transport. Any
// read, write, connect or subscribe failure is connection-wide: the caller
// is expected to tear down and retry, not recover per-characteristic.
type TransportError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error fulfils the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gatt: %s: %s: %s", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("gatt: %s: %s", e.Op, e.Kind)
}

// Unwrap exposes the underlying platform error.
func (e *TransportError) Unwrap() error { return e.Err }

// NewError wraps a platform error with its classification.
func NewError(kind ErrorKind, op string, err error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Err: err}
}

// Advertisement describes a peripheral seen during discovery.
type Advertisement struct {
	Name    string
	Address string
	RSSI    int16
}

// Connection is an active GATT connection to a peripheral. Characteristics
// are addressed by UUID; the implementation handles service discovery.
type Connection interface {
	// ReadCharacteristic reads the current value of a characteristic.
	ReadCharacteristic(charUUID string) ([]byte, error)
	// WriteCharacteristic writes a payload to a characteristic.
	WriteCharacteristic(charUUID string, data []byte) error
	// Subscribe registers a callback for notifications on a characteristic.
	// The transport invokes it on its own notification goroutine, in
	// delivery order per characteristic.
	Subscribe(charUUID string, callback func(data []byte)) error
	// Disconnect terminates the connection. Idempotent: disconnecting an
	// already-dropped connection is not an error.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the link drops.
	OnDisconnect(callback func())
}

// RSSIReader is an optional capability of a Connection. Transports that
// cannot read signal strength on an established link simply do not
// implement it; callers capability-check instead of probing errors.
type RSSIReader interface {
	RSSI() (int16, error)
}

// Transport abstracts the BLE adapter.
type Transport interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers advertising peripherals until ctx is done.
	Scan(ctx context.Context) ([]Advertisement, error)
	// Connect establishes a connection to the peripheral at the given
	// address (MAC on Linux, CoreBluetooth UUID on macOS).
	Connect(ctx context.Context, address string) (Connection, error)
}
