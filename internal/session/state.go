// Package session owns the connection lifecycle for a single Volcano: it
// drives the GATT transport, keeps the live device snapshot, and fans out
// state changes to registered observers.
package session

import "fmt"

// Status is the connection state of the session. Exactly one value holds at
// any time; every transition is broadcast to observers.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

// String fulfils the Stringer interface.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalJSON renders the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Snapshot is the live device state, copied by value to readers and
// observers. Nil pointer fields mean "never read". Readings are retained
// across disconnects; Status is the staleness signal.
//
// The pointer fields are replaced wholesale on every update and never
// mutated in place, so a copied Snapshot stays immutable.
type Snapshot struct {
	Status    Status `json:"status"`
	LastError string `json:"last_error,omitempty"`

	// Polled and notified readings.
	Temperature  *float64 `json:"temperature_c,omitempty"`
	HeaterOn     *bool    `json:"heater_on,omitempty"`
	PumpOn       *bool    `json:"pump_on,omitempty"`
	HeaterDetail string   `json:"heater_detail,omitempty"`

	// Device identity, read once per successful connection.
	FirmwareVersion    *string `json:"firmware_version,omitempty"`
	BLEFirmwareVersion *string `json:"ble_firmware_version,omitempty"`
	SerialNumber       *string `json:"serial_number,omitempty"`

	// Optimistic setting mirrors: last read or last written, not
	// re-verified against the device after a write.
	TargetTemperature  *float64 `json:"target_temperature_c,omitempty"`
	LEDBrightness      *uint8   `json:"led_brightness,omitempty"`
	AutoShutoffEnabled *bool    `json:"auto_shutoff_enabled,omitempty"`
	AutoShutoffMinutes *uint16  `json:"auto_shutoff_minutes,omitempty"`

	// Diagnostics.
	HoursOfOperation   *uint16 `json:"hours_of_operation,omitempty"`
	MinutesOfOperation *uint16 `json:"minutes_of_operation,omitempty"`
	RSSI               *int16  `json:"rssi_dbm,omitempty"`
}

// Connected reports whether commands and polling are currently possible.
func (s Snapshot) Connected() bool {
	return s.Status == StatusConnected
}

func ptr[T any](v T) *T { return &v }
