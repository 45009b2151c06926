// Package simcam simulates GenICam cameras and their transport layer.
//
// A simulated camera publishes its nodes under a configurable naming convention, validates
// writes against the binned sensor geometry, refuses geometry changes while grabbing and
// produces frames on a background task into a buffer pool bounded by MaxNumBuffer.
// Fault injection (rejected nodes, failed buffers, device loss) and a write journal make it
// suitable as the device behind controller tests and the simgrab example.
package simcam
