package camera

import (
	"errors"
	"fmt"
	"math"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/logger"
)

// Status is the outcome of one configuration key.
type Status uint8

const (
	Applied Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// KeyResult is the outcome of one configuration key.
type KeyResult struct {
	Key    Key
	Status Status
	Err    error
}

// ApplyReport lists the outcome of every present key in application order.
type ApplyReport struct {
	Results []KeyResult
}

// Result returns the outcome of key, if the key was present.
func (r *ApplyReport) Result(key Key) (KeyResult, bool) {
	for _, res := range r.Results {
		if res.Key == key {
			return res, true
		}
	}

	return KeyResult{}, false
}

// Count returns the number of keys with the given status.
func (r *ApplyReport) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}

	return n
}

// Err joins the errors of every failed or skipped key. It returns nil when all keys were applied.
func (r *ApplyReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Status != Applied {
			errs = append(errs, res.Err)
		}
	}

	return errors.Join(errs...)
}

func (r *ApplyReport) add(key Key, err error) {
	res := KeyResult{Key: key, Status: Applied}
	if err != nil {
		res.Status = Failed
		res.Err = err
	}
	r.Results = append(r.Results, res)
}

func (r *ApplyReport) skip(key Key, reason error) {
	r.Results = append(r.Results, KeyResult{Key: key, Status: Skipped, Err: fmt.Errorf("%s: %w", key, reason)})
}

// Pipeline writes a ConfigSet to the bound device in a fixed order.
//
// The order is exposure time and pixel format, binning, region of interest, binning mode,
// gain, black level, frame rate, acquisition mode, image reversal and packet size.
// The region of interest is written only when all four of its keys are present: it is first
// shrunk to a 1x1 rectangle at the origin, then offsets are written before sizes, so the
// rectangle stays inside the sensor after every single write.
type Pipeline struct {
	session *Session
	logger  logger.Logger
}

// NewPipeline creates a pipeline writing through session.
func NewPipeline(session *Session) *Pipeline {
	return &Pipeline{session: session, logger: session.cfg.GetLogger()}
}

// Apply writes every present key of cfg under one session scope.
//
// A key that fails does not stop later keys; its error is recorded in the report.
// The returned error is non-nil only when the session cannot be used or the device is lost,
// in which case the report covers the keys processed before the failure.
func (p *Pipeline) Apply(cfg ConfigSet) (*ApplyReport, error) {
	report := &ApplyReport{Results: make([]KeyResult, 0, len(cfg.Keys()))}

	model := p.session.Model()
	if model == nil {
		return report, fmt.Errorf("apply config: %w", ErrNoDeviceBound)
	}

	err := p.session.Scope(func(nodes genicam.NodeMap) error {
		w := &registerWriter{
			nodes:   nodes,
			names:   model.Names(),
			metrics: p.session.Metrics(),
			logger:  p.logger,
		}

		return p.apply(w, cfg, report)
	})
	if err != nil {
		return report, fmt.Errorf("apply config: %w", err)
	}

	if failed := report.Count(Failed); failed > 0 {
		p.logger.Warn("config applied with failures", "applied", report.Count(Applied), "failed", failed, "skipped", report.Count(Skipped))
	} else {
		p.logger.Info("config applied", "applied", report.Count(Applied), "skipped", report.Count(Skipped))
	}

	return report, nil
}

func (p *Pipeline) apply(w *registerWriter, cfg ConfigSet, report *ApplyReport) error {
	steps := []func() error{
		func() error { return w.key(report, KeyExposureTime, cfg.ExposureTime, genicam.ExposureTime) },
		func() error { return w.key(report, KeyPixelFormat, cfg.PixelFormat, genicam.PixelFormat) },
		func() error { return w.key(report, KeyBinningH, cfg.BinningH, genicam.BinningHorizontal) },
		func() error { return w.key(report, KeyBinningV, cfg.BinningV, genicam.BinningVertical) },
		func() error { return p.applyROI(w, cfg, report) },
		func() error { return p.applyBinningMode(w, cfg, report) },
		func() error { return w.key(report, KeyGain, cfg.Gain, genicam.Gain) },
		func() error { return w.key(report, KeyGainAuto, cfg.GainAuto, genicam.GainAuto) },
		func() error { return w.key(report, KeyBias, cfg.Bias, genicam.BlackLevel) },
		func() error { return p.applyFrameRate(w, cfg, report) },
		func() error { return w.key(report, KeyAcquisitionMode, cfg.AcquisitionMode, genicam.AcquisitionMode) },
		func() error { return w.key(report, KeyReverseX, cfg.ReverseX, genicam.ReverseX) },
		func() error { return w.key(report, KeyReverseY, cfg.ReverseY, genicam.ReverseY) },
		func() error { return w.key(report, KeyPacketSize, cfg.PacketSize, genicam.PacketSize) },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) applyROI(w *registerWriter, cfg ConfigSet, report *ApplyReport) error {
	type roiKey struct {
		key     Key
		value   *int64
		feature genicam.Feature
		shrink  int64
	}
	// grow order: offsets before sizes
	keys := []roiKey{
		{KeyOffsetX, cfg.OffsetX, genicam.OffsetX, 0},
		{KeyOffsetY, cfg.OffsetY, genicam.OffsetY, 0},
		{KeyWidth, cfg.Width, genicam.Width, 1},
		{KeyHeight, cfg.Height, genicam.Height, 1},
	}

	if !cfg.hasROI() {
		for _, k := range keys {
			if k.value != nil {
				report.skip(k.key, ErrIncompleteROI)
			}
		}

		return nil
	}

	errs := make(map[Key]error, len(keys))

	// shrink order: sizes before offsets
	for _, i := range []int{2, 3, 0, 1} {
		k := keys[i]
		if err := w.write(k.key, k.feature, k.shrink); err != nil {
			if isDeviceLost(err) {
				return err
			}
			errs[k.key] = err
		}
	}

	for _, k := range keys {
		err := w.write(k.key, k.feature, *k.value)
		if isDeviceLost(err) {
			return err
		}
		if errs[k.key] == nil {
			errs[k.key] = err
		}
		report.add(k.key, errs[k.key])
	}

	return nil
}

func (p *Pipeline) applyBinningMode(w *registerWriter, cfg ConfigSet, report *ApplyReport) error {
	if cfg.BinningMode == nil {
		return nil
	}

	var first error
	for _, f := range []genicam.Feature{genicam.BinningHorizontalMode, genicam.BinningVerticalMode} {
		err := w.write(KeyBinningMode, f, *cfg.BinningMode)
		if isDeviceLost(err) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	report.add(KeyBinningMode, first)

	return nil
}

func (p *Pipeline) applyFrameRate(w *registerWriter, cfg ConfigSet, report *ApplyReport) error {
	if cfg.FrameRate == nil {
		return nil
	}

	rate := *cfg.FrameRate
	if rate == 0 {
		err := w.write(KeyFrameRate, genicam.AcquisitionFrameRateEnable, false)
		if isDeviceLost(err) {
			return err
		}
		report.add(KeyFrameRate, err)

		return nil
	}

	err := w.write(KeyFrameRate, genicam.AcquisitionFrameRateEnable, true)
	if err == nil {
		err = w.write(KeyFrameRate, genicam.AcquisitionFrameRate, rate)
	}
	if isDeviceLost(err) {
		return err
	}
	report.add(KeyFrameRate, err)

	return nil
}

// registerWriter converts logical values to the node type the model publishes.
type registerWriter struct {
	nodes   genicam.NodeMap
	names   genicam.NodeNames
	metrics *Metrics
	logger  logger.Logger
}

// key writes one optional single-register key. Device loss is returned, other failures are reported.
func (w *registerWriter) key(report *ApplyReport, key Key, value any, f genicam.Feature) error {
	v, ok := deref(value)
	if !ok {
		return nil
	}

	err := w.write(key, f, v)
	if isDeviceLost(err) {
		return err
	}
	report.add(key, err)

	return nil
}

// write writes v to the node published for f. Failures other than device loss are
// returned as *RegisterError.
func (w *registerWriter) write(key Key, f genicam.Feature, v any) error {
	node, ok := w.names.Lookup(f)
	if !ok {
		return registerError(key, f, fmt.Errorf("%s: %w", f, genicam.ErrNodeNotFound))
	}

	w.metrics.incRegisterWriteCount()
	err := setNode(w.nodes, node, v)
	if err == nil {
		w.logger.Debug("register written", "key", key, "node", node.Name, "value", v)
		return nil
	}
	if isDeviceLost(err) {
		return err
	}

	w.metrics.incRegisterErrCount()
	w.logger.Warn("register write failed", "key", key, "node", node.Name, "value", v, "error", err)

	return registerError(key, f, err)
}

// setNode writes v through the interface matching the node kind. Numeric values are
// rounded for integer nodes.
func setNode(nodes genicam.NodeMap, node genicam.Node, v any) error {
	switch node.Kind {
	case genicam.IntegerKind:
		n, ok := toFloat(v)
		if !ok {
			return mismatch(node, v)
		}
		return nodes.SetInt(node.Name, int64(math.Round(n)))
	case genicam.FloatKind:
		n, ok := toFloat(v)
		if !ok {
			return mismatch(node, v)
		}
		return nodes.SetFloat(node.Name, n)
	case genicam.EnumerationKind, genicam.StringKind:
		s, ok := v.(string)
		if !ok {
			return mismatch(node, v)
		}
		return nodes.SetString(node.Name, s)
	case genicam.BooleanKind:
		b, ok := v.(bool)
		if !ok {
			return mismatch(node, v)
		}
		return nodes.SetBool(node.Name, b)
	default:
		return mismatch(node, v)
	}
}

func mismatch(node genicam.Node, v any) error {
	return &genicam.NodeError{
		Node:  node.Name,
		Op:    "set",
		Value: v,
		Err:   fmt.Errorf("%w: %T written to %s node", genicam.ErrTypeMismatch, v, node.Kind),
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// deref unwraps the optional ConfigSet field types.
func deref(v any) (any, bool) {
	switch p := v.(type) {
	case *float64:
		if p != nil {
			return *p, true
		}
	case *int64:
		if p != nil {
			return *p, true
		}
	case *string:
		if p != nil {
			return *p, true
		}
	case *bool:
		if p != nil {
			return *p, true
		}
	}

	return nil, false
}
