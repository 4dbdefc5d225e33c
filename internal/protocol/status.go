package protocol

// ToggleState is the on/off model for the heater and pump. Unknown covers
// the window before the first notification and any undocumented firmware
// pattern.
type ToggleState int

const (
	ToggleUnknown ToggleState = iota
	ToggleOff
	ToggleOn
)

// String fulfils the Stringer interface.
func (t ToggleState) String() string {
	switch t {
	case ToggleOff:
		return "off"
	case ToggleOn:
		return "on"
	default:
		return "unknown"
	}
}

// StatusUpdate is the decoded form of a two-byte heater/pump notification.
// Detail carries the heater sub-state for patterns where the firmware
// reports more than plain on/off.
type StatusUpdate struct {
	Heater ToggleState
	Pump   ToggleState
	Detail string

	// Known reports whether the byte pair matched a documented pattern.
	Known bool
}

// statusTable maps the byte pairs observed across device firmware revisions.
// The 0x23 heater sub-states (bursting, target met, over target) all
// collapse to heater on for the on/off model; Detail preserves the
// distinction for diagnostics.
var statusTable = map[[2]byte]StatusUpdate{
	{0x00, 0x00}: {Heater: ToggleOff, Pump: ToggleOff, Known: true},
	{0x00, 0x30}: {Heater: ToggleOff, Pump: ToggleOn, Known: true},
	{0x23, 0x00}: {Heater: ToggleOn, Pump: ToggleOff, Detail: "heating", Known: true},
	{0x23, 0x30}: {Heater: ToggleOn, Pump: ToggleOn, Detail: "heating", Known: true},
	{0x23, 0x06}: {Heater: ToggleOn, Pump: ToggleOn, Detail: "bursting", Known: true},
	{0x23, 0x26}: {Heater: ToggleOn, Pump: ToggleOn, Detail: "target met", Known: true},
	{0x23, 0x36}: {Heater: ToggleOn, Pump: ToggleOn, Detail: "over target", Known: true},
}

// DecodeStatus maps a status notification payload to heater and pump
// states. Unrecognized byte pairs decode to Unknown rather than erroring;
// the firmware emits undocumented transitional patterns and failing hard
// would make the whole session unusable.
func DecodeStatus(data []byte) (StatusUpdate, error) {
	if len(data) < 2 {
		return StatusUpdate{}, ErrShortPayload
	}
	if update, ok := statusTable[[2]byte{data[0], data[1]}]; ok {
		return update, nil
	}
	return StatusUpdate{Heater: ToggleUnknown, Pump: ToggleUnknown}, nil
}
