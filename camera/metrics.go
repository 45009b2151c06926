package camera

import "sync/atomic"

// Metrics contains atomic counters for one device session.
// Each field can back a prometheus CounterFunc or GaugeFunc; see package promcam for a collector.
type Metrics struct {
	// ConnectCount indicates the number of control-channel opens.
	ConnectCount atomic.Uint64
	// DisconnectCount indicates the number of control-channel closes.
	DisconnectCount atomic.Uint64
	// DeviceLostCount indicates the number of times the bound device was lost.
	DeviceLostCount atomic.Uint64

	// RegisterWriteCount indicates the number of register writes attempted by the pipeline.
	RegisterWriteCount atomic.Uint64
	// RegisterErrCount indicates the number of register writes the device refused.
	RegisterErrCount atomic.Uint64

	// ExposeCount indicates the number of grabbing runs started.
	ExposeCount atomic.Uint64
	// GrabbingGauge is 1 while the stream is active.
	GrabbingGauge atomic.Uint32

	// FrameCount indicates the number of valid frames handed to callers.
	FrameCount atomic.Uint64
	// TimeoutCount indicates the number of retrieve attempts that timed out.
	TimeoutCount atomic.Uint64
	// FailedFrameCount indicates the number of failed buffers retrieved.
	FailedFrameCount atomic.Uint64
	// ReleaseCount indicates the number of buffers released back to the device.
	ReleaseCount atomic.Uint64
}

func (m *Metrics) incConnectCount() { m.ConnectCount.Add(1) }
func (m *Metrics) incDisconnectCount() { m.DisconnectCount.Add(1) }
func (m *Metrics) incDeviceLostCount() { m.DeviceLostCount.Add(1) }
func (m *Metrics) incRegisterWriteCount() { m.RegisterWriteCount.Add(1) }
func (m *Metrics) incRegisterErrCount() { m.RegisterErrCount.Add(1) }
func (m *Metrics) incExposeCount() { m.ExposeCount.Add(1) }
func (m *Metrics) incFrameCount() { m.FrameCount.Add(1) }
func (m *Metrics) incTimeoutCount() { m.TimeoutCount.Add(1) }
func (m *Metrics) incFailedFrameCount() { m.FailedFrameCount.Add(1) }
func (m *Metrics) incReleaseCount() { m.ReleaseCount.Add(1) }

func (m *Metrics) setGrabbing(grabbing bool) {
	if grabbing {
		m.GrabbingGauge.Store(1)
	} else {
		m.GrabbingGauge.Store(0)
	}
}
