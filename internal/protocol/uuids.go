// Package protocol implements the Volcano's GATT wire protocol: the
// characteristic UUIDs, the fixed-layout binary payload codec, and the
// decoder for the combined heater/pump status notifications.
package protocol

// The Volcano exposes two vendor services. The "1011" family carries live
// register data (temperature, setpoint, control writes), the "1010" family
// carries device identity and the status notification stream. The shared
// UUID suffix is the ASCII string "STORZ&BICKEL".
const (
	UUIDCurrentTemperature = "10110001-5354-4f52-5a26-4249434b454c"
	UUIDHeaterSetpoint     = "10110003-5354-4f52-5a26-4249434b454c"
	UUIDLEDBrightness      = "10110005-5354-4f52-5a26-4249434b454c"
	UUIDAutoShutoffEnable  = "1011000c-5354-4f52-5a26-4249434b454c"
	UUIDAutoShutoffSeconds = "1011000d-5354-4f52-5a26-4249434b454c"
	UUIDHeatOn             = "1011000f-5354-4f52-5a26-4249434b454c"
	UUIDHeatOff            = "10110010-5354-4f52-5a26-4249434b454c"
	UUIDPumpOn             = "10110013-5354-4f52-5a26-4249434b454c"
	UUIDPumpOff            = "10110014-5354-4f52-5a26-4249434b454c"
	UUIDHoursOfOperation   = "10110015-5354-4f52-5a26-4249434b454c"
	UUIDMinutesOfOperation = "10110016-5354-4f52-5a26-4249434b454c"

	UUIDFirmwareVersion    = "10100003-5354-4f52-5a26-4249434b454c"
	UUIDBLEFirmwareVersion = "10100004-5354-4f52-5a26-4249434b454c"
	UUIDSerialNumber       = "10100008-5354-4f52-5a26-4249434b454c"
	UUIDStatusNotify       = "1010000c-5354-4f52-5a26-4249434b454c"
)

// Heater temperature envelope enforced by the device firmware. Setpoints
// outside this range are clamped before encoding, never rejected.
const (
	MinTemperature = 40.0
	MaxTemperature = 230.0
)
