package protocol

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
)

// ErrShortPayload is returned when a characteristic payload is too short to
// carry the expected value. It never escalates past the value it affects.
var ErrShortPayload = errors.New("protocol: payload too short")

// DecodeTemperature interprets the first two bytes of data as an unsigned
// little-endian 16-bit value in tenths of a degree Celsius.
func DecodeTemperature(data []byte) (float64, error) {
	raw, err := DecodeUint16(data)
	if err != nil {
		return 0, err
	}
	return float64(raw) / 10.0, nil
}

// EncodeTemperature encodes a setpoint in tenths of a degree Celsius,
// little-endian. Out-of-range values are silently clamped to [min, max],
// matching the device's own safety envelope.
func EncodeTemperature(celsius, min, max float64) [2]byte {
	if celsius < min {
		celsius = min
	}
	if celsius > max {
		celsius = max
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(math.Round(celsius*10)))
	return buf
}

// DecodeUint16 reads an unsigned little-endian 16-bit value.
func DecodeUint16(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, ErrShortPayload
	}
	return binary.LittleEndian.Uint16(data), nil
}

// EncodeUint16 writes an unsigned little-endian 16-bit value.
func EncodeUint16(v uint16) [2]byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return buf
}

// DecodeString decodes a variable-length characteristic as UTF-8, dropping
// invalid bytes and trimming trailing NUL and whitespace padding.
func DecodeString(data []byte) string {
	s := strings.ToValidUTF8(string(data), "")
	return strings.TrimRight(s, "\x00 \t\r\n")
}

// DecodeBrightness reads the single-byte LED brightness register (0-100).
func DecodeBrightness(data []byte) (uint8, error) {
	if len(data) < 1 {
		return 0, ErrShortPayload
	}
	return clampBrightness(data[0]), nil
}

// EncodeBrightness encodes an LED brightness percentage, clamped to 0-100.
func EncodeBrightness(percent uint8) [1]byte {
	return [1]byte{clampBrightness(percent)}
}

func clampBrightness(v uint8) uint8 {
	if v > 100 {
		return 100
	}
	return v
}

// EncodeBool encodes a single-byte on/off register (0x01 / 0x00).
func EncodeBool(on bool) [1]byte {
	if on {
		return [1]byte{0x01}
	}
	return [1]byte{0x00}
}

// DecodeBool reads a single-byte on/off register. Any non-zero value is on.
func DecodeBool(data []byte) (bool, error) {
	if len(data) < 1 {
		return false, ErrShortPayload
	}
	return data[0] != 0, nil
}

// EncodeShutoffMinutes encodes the auto-shutoff duration. The UI works in
// minutes but the device register stores seconds, little-endian.
func EncodeShutoffMinutes(minutes uint16) [2]byte {
	seconds := uint32(minutes) * 60
	if seconds > math.MaxUint16 {
		seconds = math.MaxUint16
	}
	return EncodeUint16(uint16(seconds))
}

// DecodeShutoffSeconds reads the auto-shutoff register and converts the
// stored seconds back to whole minutes.
func DecodeShutoffSeconds(data []byte) (uint16, error) {
	seconds, err := DecodeUint16(data)
	if err != nil {
		return 0, err
	}
	return seconds / 60, nil
}
