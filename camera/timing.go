package camera

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
)

// TimingBreakdown is the per-frame overhead on top of the exposure time.
type TimingBreakdown struct {
	ExposureStartDelay     time.Duration
	ReadoutTime            time.Duration
	TransmissionStartDelay time.Duration
	TransmissionDelay      time.Duration
}

// TimingSeconds is a TimingBreakdown expressed in seconds.
type TimingSeconds struct {
	ExposureStartDelay     float64
	ReadoutTime            float64
	TransmissionStartDelay float64
	TransmissionDelay      float64
}

// Total returns the sum of all overheads.
func (t TimingBreakdown) Total() time.Duration {
	return t.ExposureStartDelay + t.ReadoutTime + t.TransmissionStartDelay + t.TransmissionDelay
}

// Seconds returns the breakdown in seconds.
func (t TimingBreakdown) Seconds() TimingSeconds {
	return TimingSeconds{
		ExposureStartDelay:     t.ExposureStartDelay.Seconds(),
		ReadoutTime:            t.ReadoutTime.Seconds(),
		TransmissionStartDelay: t.TransmissionStartDelay.Seconds(),
		TransmissionDelay:      t.TransmissionDelay.Seconds(),
	}
}

// LogValue implements slog.LogValuer.
func (t TimingBreakdown) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("exposure_start_delay", t.ExposureStartDelay),
		slog.Duration("readout_time", t.ReadoutTime),
		slog.Duration("transmission_start_delay", t.TransmissionStartDelay),
		slog.Duration("transmission_delay", t.TransmissionDelay),
		slog.Duration("total", t.Total()),
	)
}

// FrameOverheads reads the timing registers of the bound device under one session scope.
//
// The transmission delay is the payload size divided by the current link throughput. Readout
// time and transmission start delay are read in device time units. Any failed read, or a zero
// throughput, fails the whole computation.
func FrameOverheads(session *Session) (TimingBreakdown, error) {
	model := session.Model()
	if model == nil {
		return TimingBreakdown{}, fmt.Errorf("frame overheads: %w", ErrNoDeviceBound)
	}

	var t TimingBreakdown
	err := session.Scope(func(nodes genicam.NodeMap) error {
		r := registerReader{nodes: nodes, names: model.Names()}

		payload := r.read(genicam.PayloadSize)
		throughput := r.read(genicam.ThroughputCurrent)
		readout := r.read(genicam.ReadoutTime)
		startDelay := r.read(genicam.TransmissionStartDelay)
		if r.err != nil {
			return r.err
		}
		if throughput <= 0 {
			return &RegisterError{
				Feature: genicam.ThroughputCurrent,
				Class:   ErrDeviceFault,
				Err:     fmt.Errorf("link throughput is %v", throughput),
			}
		}

		unit := float64(model.TimeUnit())
		t = TimingBreakdown{
			ExposureStartDelay:     model.ExposureStartDelay(),
			ReadoutTime:            time.Duration(math.Round(readout * unit)),
			TransmissionStartDelay: time.Duration(math.Round(startDelay * unit)),
			TransmissionDelay:      time.Duration(math.Round(payload * float64(time.Second) / throughput)),
		}

		return nil
	})
	if err != nil {
		return TimingBreakdown{}, fmt.Errorf("frame overheads: %w", err)
	}

	return t, nil
}

// registerReader reads numeric registers, keeping the first error.
type registerReader struct {
	nodes genicam.NodeMap
	names genicam.NodeNames
	err   error
}

func (r *registerReader) read(f genicam.Feature) float64 {
	if r.err != nil {
		return 0
	}

	v, err := getNumber(r.nodes, r.names, f)
	if err != nil {
		if isDeviceLost(err) {
			r.err = err
		} else {
			r.err = registerError("", f, err)
		}
	}

	return v
}

func (r *registerReader) readString(f genicam.Feature) string {
	if r.err != nil {
		return ""
	}

	node, ok := r.names.Lookup(f)
	if !ok {
		r.err = registerError("", f, genicam.ErrNodeNotFound)
		return ""
	}

	v, err := r.nodes.GetString(node.Name)
	if err != nil {
		if isDeviceLost(err) {
			r.err = err
		} else {
			r.err = registerError("", f, err)
		}
	}

	return v
}

func getNumber(nodes genicam.NodeMap, names genicam.NodeNames, f genicam.Feature) (float64, error) {
	node, ok := names.Lookup(f)
	if !ok {
		return 0, fmt.Errorf("%s: %w", f, genicam.ErrNodeNotFound)
	}

	switch node.Kind {
	case genicam.IntegerKind:
		v, err := nodes.GetInt(node.Name)
		return float64(v), err
	case genicam.FloatKind:
		return nodes.GetFloat(node.Name)
	default:
		return 0, &genicam.NodeError{Node: node.Name, Op: "get", Err: fmt.Errorf("%w: %s is not numeric", genicam.ErrTypeMismatch, node.Kind)}
	}
}
