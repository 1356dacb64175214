package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrOutOfDate        = errors.New("swapchain out of date")
	ErrDeviceLost       = errors.New("device lost")
	ErrUnknown          = errors.New("unknown")
)

// FatalDeviceError is returned whenever the native device refuses an
// operation. There is no recovery path: callers propagate it up to main.
type FatalDeviceError struct {
	Op  string
	Err error
}

func NewFatalDeviceError(op string, err error) *FatalDeviceError {
	if err == nil {
		err = ErrUnknown
	}
	return &FatalDeviceError{Op: op, Err: errors.WithStack(err)}
}

func (e *FatalDeviceError) Error() string {
	return fmt.Sprintf("fatal device error in %s: %v", e.Op, e.Err)
}

func (e *FatalDeviceError) Unwrap() error {
	return e.Err
}

// IsFatalDeviceError reports whether err carries a FatalDeviceError.
func IsFatalDeviceError(err error) bool {
	var fde *FatalDeviceError
	return errors.As(err, &fde)
}

// Assert panics with an assertion failure when cond is false. It guards
// programming invariants such as out of range slot or sub-range indices.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}
