package simcam

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/internal/queue"
	"github.com/sterex-dev/detector-interfaces/internal/task"
	"github.com/sterex-dev/detector-interfaces/logger"
)

// ErrAlreadyOpen is returned by Open when the control channel is already open.
var ErrAlreadyOpen = errors.New("device is already open")

// Config describes a simulated camera.
type Config struct {
	SerialNumber    string
	ModelName       string
	VendorName      string
	UserDefinedName string

	// Names is the naming convention the simulated firmware publishes. Defaults to genicam.SFNC.
	Names genicam.NodeNames

	// SensorWidth and SensorHeight are the full sensor size in pixels. Default to 2048.
	SensorWidth  int64
	SensorHeight int64

	// FrameInterval is the time between frames while frame-rate forcing is disabled. Defaults to 50ms.
	FrameInterval time.Duration

	// Throughput is the link throughput in bytes/s. Defaults to 100 MB/s.
	Throughput int64

	// ReadoutTimeUs is the full-sensor readout time in microseconds. Defaults to 25000.
	ReadoutTimeUs float64

	// MaxNumBuffer is the initial stream buffer count. Defaults to 10.
	MaxNumBuffer int64

	Logger logger.Logger
}

func (cfg *Config) setDefaults() {
	if cfg.Names == nil {
		cfg.Names = genicam.SFNC
	}
	if cfg.SensorWidth <= 0 {
		cfg.SensorWidth = 2048
	}
	if cfg.SensorHeight <= 0 {
		cfg.SensorHeight = 2048
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 50 * time.Millisecond
	}
	if cfg.Throughput <= 0 {
		cfg.Throughput = 100_000_000
	}
	if cfg.ReadoutTimeUs <= 0 {
		cfg.ReadoutTimeUs = 25000
	}
	if cfg.MaxNumBuffer <= 0 {
		cfg.MaxNumBuffer = 10
	}
	if cfg.VendorName == "" {
		cfg.VendorName = "Simulated"
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "SimCam"
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
}

// Stats counts device round-trips and buffer traffic.
type Stats struct {
	Opens          int
	Closes         int
	StreamStarts   int
	Produced       uint64
	Lost           uint64
	Retrieved      int
	Released       int
	DoubleReleases int
	Outstanding    int
}

// Camera is a simulated GenICam device. It implements genicam.Device.
type Camera struct {
	mu    sync.Mutex
	cfg   Config
	names genicam.NodeNames
	log   logger.Logger

	open    bool
	lost    bool
	values  map[genicam.Feature]any
	temps   map[string]float64
	rejects map[string]error
	journal []Write
	stats   Stats

	grabbing  bool
	strategy  genicam.GrabStrategy
	maxImages uint64
	failEvery uint64
	buffers   *queue.Bounded[*grabResult]
	signal    chan struct{}
	tasks     *task.Manager
}

var _ genicam.Device = (*Camera)(nil)

// New creates a simulated camera in its power-on state.
func New(cfg Config) *Camera {
	cfg.setDefaults()

	c := &Camera{
		cfg:     cfg,
		names:   cfg.Names,
		log:     cfg.Logger.With("device", cfg.SerialNumber),
		values:  make(map[genicam.Feature]any),
		temps:   map[string]float64{"Coreboard": 42.5, "Sensor": 38.0, "Framegrabber": 40.0},
		rejects: make(map[string]error),
		signal:  make(chan struct{}, 1),
		tasks:   task.NewManager(context.Background(), cfg.Logger),
	}
	c.powerOn()

	return c
}

func (c *Camera) powerOn() {
	c.setDefault(genicam.Width, c.cfg.SensorWidth)
	c.setDefault(genicam.Height, c.cfg.SensorHeight)
	c.setDefault(genicam.OffsetX, 0)
	c.setDefault(genicam.OffsetY, 0)
	c.setDefault(genicam.SensorWidth, c.cfg.SensorWidth)
	c.setDefault(genicam.SensorHeight, c.cfg.SensorHeight)
	c.setDefault(genicam.BinningHorizontal, 1)
	c.setDefault(genicam.BinningVertical, 1)
	c.setDefault(genicam.BinningHorizontalMode, "Summing")
	c.setDefault(genicam.BinningVerticalMode, "Summing")
	c.setDefault(genicam.PixelFormat, "Mono8")
	c.setDefault(genicam.ExposureTime, 10000)
	c.setDefault(genicam.Gain, 0)
	c.setDefault(genicam.GainAuto, "Off")
	c.setDefault(genicam.BlackLevel, 0)
	c.setDefault(genicam.AcquisitionFrameRate, 10)
	c.setDefault(genicam.AcquisitionFrameRateEnable, false)
	c.setDefault(genicam.AcquisitionMode, "Continuous")
	c.setDefault(genicam.ReverseX, false)
	c.setDefault(genicam.ReverseY, false)
	c.setDefault(genicam.PacketSize, 1500)
	c.setDefault(genicam.InterPacketDelay, 0)
	c.setDefault(genicam.TransmissionStartDelay, 0)
	c.setDefault(genicam.BandwidthAssigned, c.cfg.Throughput)
	c.setDefault(genicam.BandwidthReserve, 10)
	c.setDefault(genicam.MaxNumBuffer, c.cfg.MaxNumBuffer)
	c.setDefault(genicam.DeviceUserID, c.cfg.UserDefinedName)
	c.setDefault(genicam.TemperatureSelector, "Coreboard")
}

// Info returns the identification reported during enumeration.
func (c *Camera) Info() genicam.DeviceInfo {
	return genicam.DeviceInfo{
		SerialNumber:    c.cfg.SerialNumber,
		ModelName:       c.cfg.ModelName,
		VendorName:      c.cfg.VendorName,
		UserDefinedName: c.cfg.UserDefinedName,
		DeviceClass:     "BaslerGigE",
	}
}

// Open opens the control channel. A second Open without Close fails with ErrAlreadyOpen.
func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lost {
		return genicam.ErrDeviceLost
	}
	if c.open {
		return ErrAlreadyOpen
	}
	c.open = true
	c.stats.Opens++
	c.log.Debug("control channel opened")

	return nil
}

// Close closes the control channel and stops the stream.
func (c *Camera) Close() error {
	if err := c.StopGrabbing(); err != nil && !errors.Is(err, genicam.ErrDeviceLost) {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil
	}
	c.open = false
	c.stats.Closes++
	c.log.Debug("control channel closed")

	return nil
}

// IsOpen reports whether the control channel is open.
func (c *Camera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.open
}

// NodeMap returns the node map of the camera.
func (c *Camera) NodeMap() genicam.NodeMap {
	return &nodeMap{c: c}
}

// RejectNode makes every write to the node fail with err. A nil err removes the fault.
func (c *Camera) RejectNode(node string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		delete(c.rejects, node)
		return
	}
	c.rejects[node] = err
}

// SetFailEvery marks every n-th produced buffer as failed. Zero disables failures.
func (c *Camera) SetFailEvery(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failEvery = uint64(max(n, 0))
}

// SetFrameInterval changes the free-running frame interval. It takes effect on the next stream start.
func (c *Camera) SetFrameInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.FrameInterval = d
}

// SetTemperature sets the reading of a temperature sensor.
func (c *Camera) SetTemperature(selector string, celsius float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.temps[selector] = celsius
}

// Unplug simulates device loss. Every later access fails with genicam.ErrDeviceLost.
func (c *Camera) Unplug() {
	c.mu.Lock()
	c.lost = true
	c.grabbing = false
	c.open = false
	c.mu.Unlock()

	c.wake()
	c.tasks.Stop()
	c.tasks.Wait()
}

// Stats returns a snapshot of the device counters.
func (c *Camera) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// ROI returns the current region of interest.
func (c *Camera) ROI() ROI {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.roiLocked()
}

// Journal returns every node write attempted since creation or the last ResetJournal.
func (c *Camera) Journal() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Write, len(c.journal))
	copy(out, c.journal)

	return out
}

// ResetJournal clears the write journal.
func (c *Camera) ResetJournal() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.journal = c.journal[:0]
}

func (c *Camera) wake() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}
