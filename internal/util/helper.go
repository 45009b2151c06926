// Package util contains small helpers shared by the controller and the simulator.
package util

// CloneSlice returns a copy of src with length cloneSize.
// The length of src is used when cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
