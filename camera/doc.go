/*
Package camera implements an acquisition controller for GenICam machine-vision cameras.

The controller works against the register interface in package genicam and is made of:

  - Registry: enumerates devices through a genicam.Transport and hands out DeviceHandles.
    A handle is claimed by exactly one Session; a second claim fails with ErrDeviceInUse.
  - Session: owns the control channel. Connect and Disconnect are idempotent, and Scope runs
    register access with the device opened for the scope only if it was not already open.
  - Pipeline: writes a ConfigSet in a fixed order and reports the outcome of every key.
    The region of interest is shrunk to 1x1 at the origin before it is grown to the target,
    so the device never sees an out-of-bounds rectangle.
  - Acquisition: the Idle / Grabbing(strategy) state machine with an explicit StrategyPolicy
    for strategy changes while grabbing.
  - Retriever: bounded-attempt frame retrieval. Every retrieved buffer is released exactly
    once, including on failed buffers and panics.
  - FrameOverheads: the per-frame timing model (exposure start delay, readout time,
    transmission start delay and transmission delay).

Camera composes all of the above for one device and adds a live-preview loop.

# Usage

	cam, err := camera.New(transport, camera.WithLogger(log))
	if err != nil {
	    return err
	}
	defer cam.Close()

	if err := cam.Bind(nil); err != nil {
	    return err
	}

	report, err := cam.Apply(cfg)
	if err != nil {
	    return err
	}
	if err := report.Err(); err != nil {
	    log.Warn("some keys were not applied", "error", err)
	}

	if _, err := cam.BeginExpose(genicam.OneByOne); err != nil {
	    return err
	}
	res, err := cam.Read(ctx, 10, time.Second, 20)

# Errors

Operation-level failures are reported with the sentinel errors of this package. Register
failures are returned as *RegisterError, which matches both its class (ErrRegisterRejected,
ErrUnsupported or ErrDeviceFault) and the device-level cause from package genicam.
*/
package camera
