// Package promcam exports camera.Metrics to Prometheus.
package promcam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sterex-dev/detector-interfaces/camera"
)

const namespace = "camera"

type counter struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(m *camera.Metrics) float64
}

// Collector is a prometheus.Collector reading the counters of one camera session.
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(promcam.NewCollector(cam.Metrics(), prometheus.Labels{"serial": "21000001"}))
type Collector struct {
	metrics  *camera.Metrics
	counters []counter
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector over m. labels are attached to every exported series.
func NewCollector(m *camera.Metrics, labels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels)
	}

	return &Collector{
		metrics: m,
		counters: []counter{
			{desc("connects_total", "Number of control-channel opens."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.ConnectCount.Load()) }},
			{desc("disconnects_total", "Number of control-channel closes."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.DisconnectCount.Load()) }},
			{desc("device_lost_total", "Number of times the bound device was lost."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.DeviceLostCount.Load()) }},
			{desc("register_writes_total", "Number of register writes attempted while applying configurations."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.RegisterWriteCount.Load()) }},
			{desc("register_errors_total", "Number of register writes refused by the device."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.RegisterErrCount.Load()) }},
			{desc("exposures_total", "Number of grabbing runs started."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.ExposeCount.Load()) }},
			{desc("grabbing", "Whether the stream is active."), prometheus.GaugeValue,
				func(m *camera.Metrics) float64 { return float64(m.GrabbingGauge.Load()) }},
			{desc("frames_total", "Number of valid frames retrieved."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.FrameCount.Load()) }},
			{desc("retrieve_timeouts_total", "Number of retrieve attempts that timed out."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.TimeoutCount.Load()) }},
			{desc("failed_frames_total", "Number of failed buffers retrieved."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.FailedFrameCount.Load()) }},
			{desc("buffer_releases_total", "Number of buffers released back to the device."), prometheus.CounterValue,
				func(m *camera.Metrics) float64 { return float64(m.ReleaseCount.Load()) }},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, ctr := range c.counters {
		ch <- ctr.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, ctr := range c.counters {
		ch <- prometheus.MustNewConstMetric(ctr.desc, ctr.kind, ctr.value(c.metrics))
	}
}
