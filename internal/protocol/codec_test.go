package protocol

import (
	"errors"
	"math"
	"testing"
)

func TestTemperatureRoundTrip(t *testing.T) {
	// Every setpoint in the device range must survive encode/decode within
	// the rounding tolerance of one tenth of a degree.
	for celsius := MinTemperature; celsius <= MaxTemperature; celsius += 0.7 {
		buf := EncodeTemperature(celsius, MinTemperature, MaxTemperature)
		got, err := DecodeTemperature(buf[:])
		if err != nil {
			t.Fatalf("DecodeTemperature(%v) error = %v", buf, err)
		}
		if math.Abs(got-celsius) > 0.1 {
			t.Errorf("round trip %.2f °C = %.2f °C, want within 0.1", celsius, got)
		}
	}
}

func TestEncodeTemperatureClamps(t *testing.T) {
	low := EncodeTemperature(10.0, MinTemperature, MaxTemperature)
	min := EncodeTemperature(MinTemperature, MinTemperature, MaxTemperature)
	if low != min {
		t.Errorf("EncodeTemperature(10.0) = %v, want %v (clamped to min)", low, min)
	}

	high := EncodeTemperature(500.0, MinTemperature, MaxTemperature)
	max := EncodeTemperature(MaxTemperature, MinTemperature, MaxTemperature)
	if high != max {
		t.Errorf("EncodeTemperature(500.0) = %v, want %v (clamped to max)", high, max)
	}
}

func TestDecodeTemperature(t *testing.T) {
	// 0x03B6 = 950 tenths = 95.0 °C.
	got, err := DecodeTemperature([]byte{0xB6, 0x03})
	if err != nil {
		t.Fatalf("DecodeTemperature() error = %v", err)
	}
	if got != 95.0 {
		t.Errorf("DecodeTemperature([0xB6, 0x03]) = %v, want 95.0", got)
	}
}

func TestDecodeTemperatureShortPayload(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {0x01}} {
		_, err := DecodeTemperature(data)
		if !errors.Is(err, ErrShortPayload) {
			t.Errorf("DecodeTemperature(%v) error = %v, want ErrShortPayload", data, err)
		}
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"plain", []byte("V01.23"), "V01.23"},
		{"trailing nul", []byte("SN-1234\x00\x00"), "SN-1234"},
		{"trailing whitespace", []byte("V02.00  \n"), "V02.00"},
		{"invalid utf8 dropped", []byte{'O', 'K', 0xFF, 0xFE}, "OK"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		if got := DecodeString(tt.data); got != tt.want {
			t.Errorf("%s: DecodeString(%v) = %q, want %q", tt.name, tt.data, got, tt.want)
		}
	}
}

func TestShutoffMinutesRoundTrip(t *testing.T) {
	// The register stores seconds; 30 minutes = 1800 = 0x0708 little-endian.
	buf := EncodeShutoffMinutes(30)
	if buf != [2]byte{0x08, 0x07} {
		t.Errorf("EncodeShutoffMinutes(30) = %v, want [0x08 0x07]", buf)
	}

	for _, minutes := range []uint16{30, 60, 180, 360} {
		buf := EncodeShutoffMinutes(minutes)
		got, err := DecodeShutoffSeconds(buf[:])
		if err != nil {
			t.Fatalf("DecodeShutoffSeconds(%v) error = %v", buf, err)
		}
		if got != minutes {
			t.Errorf("shutoff round trip %d min = %d min", minutes, got)
		}
	}
}

func TestDecodeBrightnessClamps(t *testing.T) {
	got, err := DecodeBrightness([]byte{0xFF})
	if err != nil {
		t.Fatalf("DecodeBrightness() error = %v", err)
	}
	if got != 100 {
		t.Errorf("DecodeBrightness([0xFF]) = %d, want 100", got)
	}

	if _, err := DecodeBrightness(nil); !errors.Is(err, ErrShortPayload) {
		t.Errorf("DecodeBrightness(nil) error = %v, want ErrShortPayload", err)
	}
}

func TestEncodeBool(t *testing.T) {
	if EncodeBool(true) != [1]byte{0x01} {
		t.Error("EncodeBool(true) != 0x01")
	}
	if EncodeBool(false) != [1]byte{0x00} {
		t.Error("EncodeBool(false) != 0x00")
	}
}

func TestUint16RoundTrip(t *testing.T) {
	for _, v := range []uint16{0, 1, 950, 65535} {
		buf := EncodeUint16(v)
		got, err := DecodeUint16(buf[:])
		if err != nil {
			t.Fatalf("DecodeUint16(%v) error = %v", buf, err)
		}
		if got != v {
			t.Errorf("uint16 round trip %d = %d", v, got)
		}
	}
}
