package gatt

import (
	"errors"
	"strings"
	"testing"
)

func TestTransportErrorMessage(t *testing.T) {
	cause := errors.New("device closed the connection")
	err := NewError(KindPeerDisconnected, "read temperature", cause)

	msg := err.Error()
	for _, want := range []string{"gatt:", "read temperature", "peer disconnected", "device closed"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want substring %q", msg, want)
		}
	}
}

func TestTransportErrorWithoutCause(t *testing.T) {
	err := NewError(KindTimeout, "connect", nil)
	if got := err.Error(); got != "gatt: connect: timeout" {
		t.Errorf("Error() = %q, want %q", got, "gatt: connect: timeout")
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(KindOther, "write", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}

	var te *TransportError
	if !errors.As(error(err), &te) {
		t.Fatal("errors.As should match *TransportError")
	}
	if te.Kind != KindOther || te.Op != "write" {
		t.Errorf("got kind=%v op=%q, want KindOther/write", te.Kind, te.Op)
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindOther, "transport error"},
		{KindAdapterUnavailable, "adapter unavailable"},
		{KindTimeout, "timeout"},
		{KindPeerDisconnected, "peer disconnected"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
