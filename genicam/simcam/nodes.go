package simcam

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
)

// ROI is the region-of-interest state of the simulated sensor.
type ROI struct {
	Width     int64
	Height    int64
	OffsetX   int64
	OffsetY   int64
	WidthMax  int64
	HeightMax int64
}

// InBounds reports whether the region lies inside the binned sensor area.
func (r ROI) InBounds() bool {
	return r.Width >= 1 && r.Height >= 1 &&
		r.OffsetX >= 0 && r.OffsetY >= 0 &&
		r.OffsetX+r.Width <= r.WidthMax &&
		r.OffsetY+r.Height <= r.HeightMax
}

// Write is one node write attempt recorded in the journal.
type Write struct {
	Node  string
	Value any
	Err   error
	ROI   ROI // region after the write
}

var readOnly = map[genicam.Feature]bool{
	genicam.WidthMax:           true,
	genicam.HeightMax:          true,
	genicam.SensorWidth:        true,
	genicam.SensorHeight:       true,
	genicam.PayloadSize:        true,
	genicam.ResultingFrameRate: true,
	genicam.ReadoutTime:        true,
	genicam.Temperature:        true,
	genicam.TemperatureState:   true,
	genicam.ThroughputCurrent:  true,
	genicam.ThroughputMax:      true,
}

// features whose writes are refused while the stream runs
var streamLocked = map[genicam.Feature]bool{
	genicam.Width:                 true,
	genicam.Height:                true,
	genicam.OffsetX:               true,
	genicam.OffsetY:               true,
	genicam.BinningHorizontal:     true,
	genicam.BinningVertical:       true,
	genicam.BinningHorizontalMode: true,
	genicam.BinningVerticalMode:   true,
	genicam.PixelFormat:           true,
	genicam.PacketSize:            true,
	genicam.MaxNumBuffer:          true,
	genicam.AcquisitionMode:       true,
}

var enumEntries = map[genicam.Feature][]string{
	genicam.AcquisitionMode:       {"Continuous", "SingleFrame", "MultiFrame"},
	genicam.BinningHorizontalMode: {"Summing", "Averaging"},
	genicam.BinningVerticalMode:   {"Summing", "Averaging"},
	genicam.GainAuto:              {"Off", "Once", "Continuous"},
	genicam.PixelFormat:           {"Mono8", "Mono12", "Mono12Packed", "Mono16"},
	genicam.TemperatureSelector:   {"Coreboard", "Sensor", "Framegrabber"},
}

// static numeric limits, inclusive
var limits = map[genicam.Feature][2]float64{
	genicam.BinningHorizontal:      {1, 4},
	genicam.BinningVertical:        {1, 4},
	genicam.BandwidthAssigned:      {1, 125_000_000},
	genicam.BandwidthReserve:       {0, 26},
	genicam.BlackLevel:             {0, 255},
	genicam.ExposureTime:           {20, 10_000_000},
	genicam.AcquisitionFrameRate:   {0.1, 1000},
	genicam.InterPacketDelay:       {0, 65535},
	genicam.MaxNumBuffer:           {1, 1024},
	genicam.PacketSize:             {220, 16404},
	genicam.TransmissionStartDelay: {0, 50000},
}

// raw gain steps versus dB
var gainLimits = map[genicam.Kind][2]float64{
	genicam.IntegerKind: {0, 500},
	genicam.FloatKind:   {0, 24},
}

var bytesPerPixel = map[string]float64{
	"Mono8":        1,
	"Mono12":       2,
	"Mono12Packed": 1.5,
	"Mono16":       2,
}

const criticalTemperature = 70.0

type nodeMap struct {
	c *Camera
}

func (m *nodeMap) GetInt(node string) (int64, error) {
	v, err := m.c.get(node, genicam.IntegerKind)
	if err != nil {
		return 0, err
	}

	return v.(int64), nil
}

func (m *nodeMap) SetInt(node string, value int64) error {
	return m.c.set(node, genicam.IntegerKind, value)
}

func (m *nodeMap) GetFloat(node string) (float64, error) {
	v, err := m.c.get(node, genicam.FloatKind)
	if err != nil {
		return 0, err
	}

	return v.(float64), nil
}

func (m *nodeMap) SetFloat(node string, value float64) error {
	return m.c.set(node, genicam.FloatKind, value)
}

func (m *nodeMap) GetString(node string) (string, error) {
	v, err := m.c.get(node, genicam.StringKind)
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

func (m *nodeMap) SetString(node string, value string) error {
	return m.c.set(node, genicam.StringKind, value)
}

func (m *nodeMap) GetBool(node string) (bool, error) {
	v, err := m.c.get(node, genicam.BooleanKind)
	if err != nil {
		return false, err
	}

	return v.(bool), nil
}

func (m *nodeMap) SetBool(node string, value bool) error {
	return m.c.set(node, genicam.BooleanKind, value)
}

// compatible reports whether a node of kind can be accessed through the want interface.
func compatible(kind, want genicam.Kind) bool {
	if want == genicam.StringKind {
		return kind == genicam.StringKind || kind == genicam.EnumerationKind
	}

	return kind == want
}

// resolve maps a node name to its feature. Callers hold c.mu.
func (c *Camera) resolve(name, op string, want genicam.Kind, value any) (genicam.Feature, error) {
	fail := func(err error) (genicam.Feature, error) {
		return 0, &genicam.NodeError{Node: name, Op: op, Value: value, Err: err}
	}

	if c.lost {
		return fail(genicam.ErrDeviceLost)
	}
	if !c.open {
		return fail(genicam.ErrNotOpen)
	}

	f, ok := c.names.Feature(name)
	if !ok {
		return fail(genicam.ErrNodeNotFound)
	}
	if !compatible(c.names[f].Kind, want) {
		return fail(fmt.Errorf("%w: %s is %s", genicam.ErrTypeMismatch, name, c.names[f].Kind))
	}

	return f, nil
}

func (c *Camera) get(name string, want genicam.Kind) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.resolve(name, "get", want, nil)
	if err != nil {
		return nil, err
	}

	return c.read(f), nil
}

func (c *Camera) set(name string, want genicam.Kind, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.write(name, want, value)
	c.journal = append(c.journal, Write{Node: name, Value: value, Err: err, ROI: c.roiLocked()})
	if err != nil {
		c.log.Debug("node write refused", "node", name, "value", value, "error", err)
	}

	return err
}

func (c *Camera) write(name string, want genicam.Kind, value any) error {
	f, err := c.resolve(name, "set", want, value)
	if err != nil {
		return err
	}

	fail := func(err error) error {
		return &genicam.NodeError{Node: name, Op: "set", Value: value, Err: err}
	}

	if err, ok := c.rejects[name]; ok {
		return fail(err)
	}
	if readOnly[f] {
		return fail(fmt.Errorf("%w: %s is read-only", genicam.ErrAccessDenied, name))
	}
	if c.grabbing && streamLocked[f] {
		return fail(fmt.Errorf("%w: %s is locked while grabbing", genicam.ErrAccessDenied, name))
	}
	if err := c.validate(f, value); err != nil {
		return fail(err)
	}

	c.values[f] = value
	if f == genicam.BinningHorizontal || f == genicam.BinningVertical {
		c.clampROI()
	}

	return nil
}

func (c *Camera) validate(f genicam.Feature, value any) error {
	kind := c.names[f].Kind

	switch kind {
	case genicam.EnumerationKind:
		entries := enumEntries[f]
		if !slices.Contains(entries, value.(string)) {
			return fmt.Errorf("%w: %q is not one of %v", genicam.ErrOutOfRange, value, entries)
		}

		return nil
	case genicam.StringKind:
		if len(value.(string)) > 16 {
			return fmt.Errorf("%w: string longer than 16 bytes", genicam.ErrOutOfRange)
		}

		return nil
	case genicam.BooleanKind:
		return nil
	}

	lo, hi, ok := c.bounds(f, kind)
	if !ok {
		return nil
	}

	v := numeric(value)
	if v < lo || v > hi {
		return fmt.Errorf("%w: %v not in [%v, %v]", genicam.ErrOutOfRange, value, lo, hi)
	}

	return nil
}

// bounds returns the current inclusive limits of a numeric feature.
func (c *Camera) bounds(f genicam.Feature, kind genicam.Kind) (lo, hi float64, ok bool) {
	roi := c.roiLocked()

	switch f {
	case genicam.Width:
		return 1, float64(roi.WidthMax - roi.OffsetX), true
	case genicam.Height:
		return 1, float64(roi.HeightMax - roi.OffsetY), true
	case genicam.OffsetX:
		return 0, float64(roi.WidthMax - roi.Width), true
	case genicam.OffsetY:
		return 0, float64(roi.HeightMax - roi.Height), true
	case genicam.Gain:
		l, ok := gainLimits[kind]
		return l[0], l[1], ok
	}

	l, ok := limits[f]

	return l[0], l[1], ok
}

// clampROI shrinks the region so that it fits the binned sensor.
func (c *Camera) clampROI() {
	roi := c.roiLocked()

	width := min(roi.Width, roi.WidthMax)
	height := min(roi.Height, roi.HeightMax)
	c.storeInt(genicam.Width, width)
	c.storeInt(genicam.Height, height)
	c.storeInt(genicam.OffsetX, min(roi.OffsetX, roi.WidthMax-width))
	c.storeInt(genicam.OffsetY, min(roi.OffsetY, roi.HeightMax-height))
}

// read returns the value of f, computing derived nodes. Callers hold c.mu.
func (c *Camera) read(f genicam.Feature) any {
	kind := c.names[f].Kind

	switch f {
	case genicam.WidthMax:
		return c.cfg.SensorWidth / c.intValue(genicam.BinningHorizontal)
	case genicam.HeightMax:
		return c.cfg.SensorHeight / c.intValue(genicam.BinningVertical)
	case genicam.PayloadSize:
		return c.payloadSize()
	case genicam.ResultingFrameRate:
		return float64(time.Second) / float64(c.frameInterval())
	case genicam.ReadoutTime:
		roi := c.roiLocked()
		return c.cfg.ReadoutTimeUs * float64(roi.Height) / float64(roi.HeightMax)
	case genicam.ThroughputCurrent:
		return min(c.cfg.Throughput, c.intValue(genicam.BandwidthAssigned))
	case genicam.ThroughputMax:
		return c.cfg.Throughput
	case genicam.Temperature:
		return c.temps[c.stringValue(genicam.TemperatureSelector)]
	case genicam.TemperatureState:
		if c.temps[c.stringValue(genicam.TemperatureSelector)] >= criticalTemperature {
			return "Critical"
		}
		return "Ok"
	}

	v, ok := c.values[f]
	if !ok {
		return zero(kind)
	}

	return v
}

func (c *Camera) roiLocked() ROI {
	return ROI{
		Width:     c.intValue(genicam.Width),
		Height:    c.intValue(genicam.Height),
		OffsetX:   c.intValue(genicam.OffsetX),
		OffsetY:   c.intValue(genicam.OffsetY),
		WidthMax:  c.cfg.SensorWidth / max(c.intValue(genicam.BinningHorizontal), 1),
		HeightMax: c.cfg.SensorHeight / max(c.intValue(genicam.BinningVertical), 1),
	}
}

func (c *Camera) payloadSize() int64 {
	roi := c.roiLocked()
	bpp := bytesPerPixel[c.stringValue(genicam.PixelFormat)]

	return int64(math.Ceil(float64(roi.Width*roi.Height) * bpp))
}

// frameInterval returns the time between frames in the current configuration.
func (c *Camera) frameInterval() time.Duration {
	enabled, _ := c.values[genicam.AcquisitionFrameRateEnable].(bool)
	rate := numeric(c.values[genicam.AcquisitionFrameRate])
	if enabled && rate > 0 {
		return time.Duration(float64(time.Second) / rate)
	}

	return c.cfg.FrameInterval
}

// setDefault stores a power-on value converted to the kind the naming convention publishes.
func (c *Camera) setDefault(f genicam.Feature, value any) {
	node, ok := c.names[f]
	if !ok {
		return
	}

	switch node.Kind {
	case genicam.IntegerKind:
		c.values[f] = int64(math.Round(numeric(value)))
	case genicam.FloatKind:
		c.values[f] = numeric(value)
	default:
		c.values[f] = value
	}
}

func (c *Camera) storeInt(f genicam.Feature, v int64) {
	c.values[f] = v
}

func (c *Camera) intValue(f genicam.Feature) int64 {
	return int64(numeric(c.values[f]))
}

func (c *Camera) stringValue(f genicam.Feature) string {
	s, _ := c.values[f].(string)
	return s
}

func numeric(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func zero(kind genicam.Kind) any {
	switch kind {
	case genicam.IntegerKind:
		return int64(0)
	case genicam.FloatKind:
		return 0.0
	case genicam.BooleanKind:
		return false
	default:
		return ""
	}
}
