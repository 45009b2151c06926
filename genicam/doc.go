// Package genicam defines the register interface the acquisition controller consumes:
// logical features and the node names different camera firmwares publish for them,
// typed node access, and the device, stream and transport contracts.
//
// Feature Naming:
// A Feature is a capability such as Width or Gain. A NodeNames table maps each feature to
// the node a firmware publishes, together with its interface type:
//   - SFNC:  Standard Features Naming Convention names.
//   - BaslerGigE:  Legacy Basler ace GigE names (GainRaw, ExposureTimeAbs, GevSCDCT, ...).
//
// Device Contract:
//   - Transport enumerates DeviceInfo records and creates Device instances.
//   - Device opens and closes the control channel, exposes a NodeMap, and runs the stream.
//   - GrabResult carries one buffer; it must be released exactly once.
//
// Errors:
// Node accesses fail with a *NodeError wrapping one of ErrNotOpen, ErrNodeNotFound,
// ErrTypeMismatch, ErrOutOfRange, ErrAccessDenied or ErrDeviceLost, so callers can use errors.Is
// to tell an unsupported node from a refused value from a device fault.
package genicam
