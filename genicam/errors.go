package genicam

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen indicates that a node was accessed while the device is closed.
	ErrNotOpen = errors.New("device is not open")

	// ErrNodeNotFound indicates that the device does not publish the requested node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrTypeMismatch indicates that a node was accessed through the wrong interface type.
	ErrTypeMismatch = errors.New("node type mismatch")

	// ErrOutOfRange indicates that the device refused a value outside the node's valid range.
	ErrOutOfRange = errors.New("value out of range")

	// ErrAccessDenied indicates that the node is read-only, or locked in the current device state.
	ErrAccessDenied = errors.New("node access denied")
)

var (
	// ErrTimeout indicates that no buffer completed within the retrieve timeout.
	ErrTimeout = errors.New("retrieve timeout")

	// ErrNotGrabbing indicates that a stream operation requires an active stream.
	ErrNotGrabbing = errors.New("device is not grabbing")

	// ErrAlreadyGrabbing indicates that the stream has already been started.
	ErrAlreadyGrabbing = errors.New("device is already grabbing")

	// ErrDeviceLost indicates that the device was removed or stopped responding.
	ErrDeviceLost = errors.New("device lost")
)

// NodeError records a failed node access.
type NodeError struct {
	Node  string
	Op    string // "get" or "set"
	Value any    // value written, nil for reads
	Err   error
}

func (e *NodeError) Error() string {
	if e.Op == "set" {
		return fmt.Sprintf("set %s=%v: %v", e.Node, e.Value, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
