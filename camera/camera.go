package camera

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/internal/task"
	"github.com/sterex-dev/detector-interfaces/logger"
)

// Camera is the acquisition controller for one device.
//
// It composes a Session, a Pipeline, an Acquisition state machine and a Retriever.
// A Camera is meant to be driven by one goroutine at a time; the only background goroutine
// it starts itself is the live-preview loop.
//
//	cam, _ := camera.New(transport, camera.WithReadTimeout(500*time.Millisecond))
//	_ = cam.Bind(nil)
//	report, _ := cam.Apply(cfg)
//	_, _ = cam.BeginExpose(genicam.OneByOne)
//	res, _ := cam.Grab(ctx, 10)
//	_ = cam.EndExpose()
//	_ = cam.Close()
type Camera struct {
	cfg       *Config
	logger    logger.Logger
	registry  *Registry
	session   *Session
	pipeline  *Pipeline
	acq       *Acquisition
	retriever *Retriever

	previewMu  sync.Mutex
	preview    *task.Manager
	previewing bool
}

// New creates a controller using transport for device discovery.
func New(transport genicam.Transport, opts ...Option) (*Camera, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return NewWithRegistry(NewRegistry(transport, cfg.GetLogger()), cfg), nil
}

// NewWithRegistry creates a controller sharing registry with other controllers, so that
// claims on the same device are enforced across them.
func NewWithRegistry(registry *Registry, cfg *Config) *Camera {
	session := NewSession(cfg)
	acq := NewAcquisition(session)

	return &Camera{
		cfg:       cfg,
		logger:    cfg.GetLogger(),
		registry:  registry,
		session:   session,
		pipeline:  NewPipeline(session),
		acq:       acq,
		retriever: NewRetriever(acq),
		preview:   task.NewManager(context.Background(), cfg.GetLogger()),
	}
}

// Config returns the controller configuration.
func (c *Camera) Config() *Config { return c.cfg }

// Registry returns the registry used by Bind.
func (c *Camera) Registry() *Registry { return c.registry }

// Session returns the device session.
func (c *Camera) Session() *Session { return c.session }

// Acquisition returns the acquisition state machine.
func (c *Camera) Acquisition() *Acquisition { return c.acq }

// Retriever returns the frame retriever.
func (c *Camera) Retriever() *Retriever { return c.retriever }

// Metrics returns the session counters.
func (c *Camera) Metrics() *Metrics { return c.session.Metrics() }

// Bind finds the device with the given serial number, or the first device when serial is
// nil, and claims it for this controller.
func (c *Camera) Bind(serial *uint64) error {
	h, err := c.registry.Find(serial)
	if err != nil {
		return err
	}

	return c.session.Bind(h)
}

// BindHandle claims an already found handle.
func (c *Camera) BindHandle(h *DeviceHandle) error {
	return c.session.Bind(h)
}

// Connect opens the control channel. It is a no-op when already open.
func (c *Camera) Connect() error { return c.session.Connect() }

// Disconnect stops any active stream and closes the control channel. It is a no-op when already closed.
func (c *Camera) Disconnect() error {
	c.StopPreview()
	if err := c.acq.EndExpose(); err != nil {
		c.logger.Warn("failed to end exposure before disconnect", "error", err)
	}

	return c.session.Disconnect()
}

// IsOpen reports whether the control channel is open.
func (c *Camera) IsOpen() bool { return c.session.IsOpen() }

// Apply writes cfg to the device. See Pipeline.Apply.
func (c *Camera) Apply(cfg ConfigSet) (*ApplyReport, error) {
	return c.pipeline.Apply(cfg)
}

// BeginExpose starts grabbing. See Acquisition.BeginExpose.
func (c *Camera) BeginExpose(strategy genicam.GrabStrategy) (genicam.GrabStrategy, error) {
	return c.acq.BeginExpose(strategy)
}

// BeginExposeMax starts grabbing a limited number of images. See Acquisition.BeginExposeMax.
func (c *Camera) BeginExposeMax(strategy genicam.GrabStrategy, maxImages int) (genicam.GrabStrategy, error) {
	return c.acq.BeginExposeMax(strategy, maxImages)
}

// EndExpose stops grabbing.
func (c *Camera) EndExpose() error { return c.acq.EndExpose() }

// IsExposing reports whether the stream is active.
func (c *Camera) IsExposing() bool { return c.acq.IsExposing() }

// RunID returns the identifier of the current or last grabbing run.
func (c *Camera) RunID() uuid.UUID { return c.acq.RunID() }

// SetMaxNumBuffers sets the buffer count of the next grabbing run.
func (c *Camera) SetMaxNumBuffers(n int) error { return c.acq.SetMaxNumBuffers(n) }

// OnStateChange registers handlers invoked on acquisition state changes.
func (c *Camera) OnStateChange(handlers ...StateChangeHandler) { c.acq.AddHandler(handlers...) }

// Read collects up to n frames. See Retriever.Read.
func (c *Camera) Read(ctx context.Context, n int, readTimeout time.Duration, maxAttempts int) (*ReadResult, error) {
	return c.retriever.Read(ctx, n, readTimeout, maxAttempts)
}

// Grab is Read with the configured read timeout and attempt bound.
func (c *Camera) Grab(ctx context.Context, n int) (*ReadResult, error) {
	return c.retriever.Read(ctx, n, c.cfg.ReadTimeout(), c.cfg.MaxAttempts())
}

// Frames iterates over up to n frames with the configured read timeout and attempt bound.
func (c *Camera) Frames(ctx context.Context, n int) iter.Seq[Frame] {
	return c.retriever.Frames(ctx, n, c.cfg.ReadTimeout(), c.cfg.MaxAttempts())
}

// FrameOverheads reads the per-frame timing overheads. See FrameOverheads.
func (c *Camera) FrameOverheads() (TimingBreakdown, error) {
	return FrameOverheads(c.session)
}

// Status reads a snapshot of the device state.
func (c *Camera) Status() (DeviceStatus, error) {
	return ReadDeviceStatus(c.session)
}

// Close stops the preview and the stream, closes the control channel and releases the device.
func (c *Camera) Close() error {
	c.StopPreview()
	if err := c.acq.EndExpose(); err != nil {
		c.logger.Warn("failed to end exposure before close", "error", err)
	}

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close camera: %w", err)
	}

	return nil
}
