package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestFatalDeviceErrorUnwrap(t *testing.T) {
	base := errors.New("VK_ERROR_OUT_OF_DEVICE_MEMORY")
	err := fmt.Errorf("creating vertex buffer: %w", NewFatalDeviceError("CreateBuffer", base))

	if !IsFatalDeviceError(err) {
		t.Fatalf("expected fatal device error in chain, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected errors.Is to reach the native error")
	}
	if !strings.Contains(err.Error(), "CreateBuffer") {
		t.Fatalf("expected op in message, got %q", err.Error())
	}
}

func TestFatalDeviceErrorNilCause(t *testing.T) {
	err := NewFatalDeviceError("Signal", nil)
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown cause, got %v", err.Err)
	}
}

func TestAssert(t *testing.T) {
	Assert(true, "never fires")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(error)
		if !ok || !strings.Contains(err.Error(), "slot 7") {
			t.Fatalf("unexpected panic value %v", r)
		}
	}()
	Assert(false, "slot %d out of range", 7)
}
