package camera

import (
	"errors"
	"fmt"

	"github.com/sterex-dev/detector-interfaces/genicam"
)

var (
	// ErrNoDeviceBound indicates that a session operation was called before a device handle was bound.
	ErrNoDeviceBound = errors.New("no device bound to session")

	// ErrDeviceNotFound indicates that enumeration returned no device, or none matching the requested serial number.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceInUse indicates that the device handle is claimed by another session.
	ErrDeviceInUse = errors.New("device is claimed by another session")

	// ErrHandleInvalid indicates that the device handle was released or the device was lost.
	ErrHandleInvalid = errors.New("device handle is no longer valid")
)

var (
	// ErrRegisterRejected indicates that the device refused a register value.
	ErrRegisterRejected = errors.New("register write rejected")

	// ErrUnsupported indicates that the device does not publish the register, or publishes it with another type.
	ErrUnsupported = errors.New("register not supported by device")

	// ErrDeviceFault indicates a device-side failure that is neither a rejection nor a missing register.
	ErrDeviceFault = errors.New("device fault")

	// ErrIncompleteROI indicates that only some of the four region-of-interest keys were supplied.
	ErrIncompleteROI = errors.New("incomplete region of interest, all of IMAGE_X_OFFSET, IMAGE_Y_OFFSET, IMAGE_WIDTH and IMAGE_HEIGHT are required")
)

var (
	// ErrGrabTimeout indicates that no buffer completed within the read timeout.
	ErrGrabTimeout = errors.New("grab timeout")

	// ErrGrabFailed indicates that the device delivered a failed buffer.
	ErrGrabFailed = errors.New("grab failed")

	// ErrInvalidState indicates that the operation is not allowed in the current acquisition state.
	ErrInvalidState = errors.New("invalid acquisition state")

	// ErrInvalidArgument indicates that a caller-supplied argument is out of range.
	ErrInvalidArgument = errors.New("invalid argument")
)

// RegisterError records a register access that failed while applying a configuration key
// or reading a timing register. It matches both its class and the device cause with errors.Is.
type RegisterError struct {
	Key     Key // empty for reads outside the pipeline
	Feature genicam.Feature
	Class   error // ErrRegisterRejected, ErrUnsupported or ErrDeviceFault
	Err     error
}

func (e *RegisterError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s (%s): %v: %v", e.Key, e.Feature, e.Class, e.Err)
	}

	return fmt.Sprintf("%s: %v: %v", e.Feature, e.Class, e.Err)
}

func (e *RegisterError) Unwrap() []error { return []error{e.Class, e.Err} }

// GrabError describes a failed buffer.
type GrabError struct {
	Code        uint32
	Description string
}

func (e *GrabError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%v: code 0x%08X", ErrGrabFailed, e.Code)
	}

	return fmt.Sprintf("%v: code 0x%08X: %s", ErrGrabFailed, e.Code, e.Description)
}

func (e *GrabError) Unwrap() error { return ErrGrabFailed }

// classify maps a device error to its controller error class.
func classify(err error) error {
	switch {
	case errors.Is(err, genicam.ErrNodeNotFound), errors.Is(err, genicam.ErrTypeMismatch):
		return ErrUnsupported
	case errors.Is(err, genicam.ErrOutOfRange), errors.Is(err, genicam.ErrAccessDenied):
		return ErrRegisterRejected
	default:
		return ErrDeviceFault
	}
}

func registerError(key Key, f genicam.Feature, err error) *RegisterError {
	return &RegisterError{Key: key, Feature: f, Class: classify(err), Err: err}
}

func isDeviceLost(err error) bool {
	return errors.Is(err, genicam.ErrDeviceLost)
}
