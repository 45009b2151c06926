package camera

import (
	"fmt"
	"sync"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/logger"
)

// Session owns the control channel of one bound device.
//
// Connect and Disconnect are idempotent: calling them in the state they lead to returns nil
// without touching the device. Register access goes through Scope.
type Session struct {
	mu      sync.Mutex
	cfg     *Config
	handle  *DeviceHandle
	model   Model
	state   atomicOpState
	logger  logger.Logger
	metrics Metrics

	dropped   bool
	dropHooks []func()
}

// NewSession creates an unbound session.
func NewSession(cfg *Config) *Session {
	return &Session{cfg: cfg, logger: cfg.GetLogger()}
}

// Bind claims h for this session, closing any previously bound handle first.
// It fails with ErrDeviceInUse when another session holds the device.
//
// A fresh handle to the device already bound replaces the old handle and keeps the claim.
func (s *Session) Bind(h *DeviceHandle) error {
	if h == nil {
		return ErrNoDeviceBound
	}
	if !h.Valid() {
		return ErrHandleInvalid
	}

	s.mu.Lock()
	defer s.unlock()

	if s.handle == h {
		return nil
	}
	if err := h.registry.claim(h, s); err != nil {
		return err
	}
	if prev := s.handle; prev != nil {
		if err := s.unbindLocked(!sameDevice(prev, h)); err != nil {
			s.logger.Warn("failed to close previous device", "error", err)
		}
	}

	s.handle = h
	s.model = s.cfg.Model()
	if s.model == nil {
		s.model = ModelFor(h.info)
	}
	s.logger = s.cfg.GetLogger().With("serial", h.info.SerialNumber)
	s.logger.Info("device bound", "model", h.info.ModelName, "profile", s.model.Name())

	return nil
}

// Handle returns the bound handle, or nil.
func (s *Session) Handle() *DeviceHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.handle
}

// Model returns the model of the bound device, or nil.
func (s *Session) Model() Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.model
}

// Connect opens the control channel of the bound device.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.unlock()

	return s.connectLocked()
}

// Disconnect closes the control channel of the bound device.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.unlock()

	return s.disconnectLocked()
}

// IsOpen reports whether the control channel is open.
func (s *Session) IsOpen() bool {
	return s.state.IsOpened()
}

// State returns the open state of the control channel.
func (s *Session) State() OpState {
	return s.state.Get()
}

// Metrics returns the session counters.
func (s *Session) Metrics() *Metrics {
	return &s.metrics
}

// Scope runs fn against the node map of the bound device.
//
// The device is opened for fn only if it is not already open, and then closed again on
// every exit path. Device loss reported by fn invalidates the handle.
func (s *Session) Scope(fn func(nodes genicam.NodeMap) error) (err error) {
	s.mu.Lock()
	defer s.unlock()

	if _, err := s.deviceLocked(); err != nil {
		return err
	}

	if !s.state.IsOpened() {
		if err := s.connectLocked(); err != nil {
			return err
		}
		defer func() {
			if cerr := s.disconnectLocked(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	err = fn(s.handle.device.NodeMap())
	if isDeviceLost(err) {
		s.lostLocked(err)
	}

	return err
}

// Close disconnects, releases the claim on the device and invalidates the handle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.unlock()

	if s.handle == nil {
		return nil
	}

	return s.closeLocked()
}

// device returns the bound device for stream operations, which run outside the session lock.
func (s *Session) device() (genicam.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deviceLocked()
}

// deviceLost invalidates the handle if err reports device loss. It returns true in that case.
func (s *Session) deviceLost(err error) bool {
	if !isDeviceLost(err) {
		return false
	}

	s.mu.Lock()
	defer s.unlock()

	s.lostLocked(err)

	return true
}

func (s *Session) deviceLocked() (genicam.Device, error) {
	if s.handle == nil {
		return nil, ErrNoDeviceBound
	}
	if !s.handle.Valid() {
		return nil, ErrHandleInvalid
	}

	return s.handle.device, nil
}

func (s *Session) connectLocked() error {
	device, err := s.deviceLocked()
	if err != nil {
		return err
	}

	if s.state.IsOpened() {
		return nil
	}
	if !s.state.ToOpening() {
		return fmt.Errorf("connect: %w: session is %s", ErrInvalidState, s.state.Get())
	}

	// a device opened outside the session is adopted as is
	if !device.IsOpen() {
		if err := device.Open(); err != nil {
			s.state.Set(ClosedState)
			if isDeviceLost(err) {
				s.lostLocked(err)
			}

			return fmt.Errorf("connect %s: %w", s.handle.info.SerialNumber, err)
		}
	}

	s.state.ToOpened()
	s.metrics.incConnectCount()
	s.logger.Debug("device connected")

	return nil
}

func (s *Session) disconnectLocked() error {
	if s.handle == nil {
		return ErrNoDeviceBound
	}
	if s.state.IsClosed() {
		return nil
	}
	if !s.state.ToClosing() {
		return fmt.Errorf("disconnect: %w: session is %s", ErrInvalidState, s.state.Get())
	}

	var err error
	if s.handle.Valid() {
		if err = s.handle.device.Close(); err != nil && isDeviceLost(err) {
			s.lostLocked(err)
			err = nil
		}
	}

	s.state.ToClosed()
	s.dropped = true
	s.metrics.incDisconnectCount()
	s.logger.Debug("device disconnected")

	if err != nil {
		return fmt.Errorf("disconnect %s: %w", s.handle.info.SerialNumber, err)
	}

	return nil
}

func (s *Session) closeLocked() error {
	return s.unbindLocked(true)
}

// unbindLocked disconnects and invalidates the bound handle. The registry claim is kept
// when release is false.
func (s *Session) unbindLocked(release bool) error {
	err := s.disconnectLocked()

	h := s.handle
	h.invalidate()
	if release {
		h.registry.release(h, s)
	}
	s.handle = nil
	s.model = nil
	s.logger.Info("device released")

	return err
}

func (s *Session) lostLocked(cause error) {
	if s.handle == nil || !s.handle.Valid() {
		return
	}

	s.handle.invalidate()
	s.state.Set(ClosedState)
	s.dropped = true
	s.metrics.incDeviceLostCount()
	s.logger.Error("device lost", "error", cause)
}

// onDrop registers fn to run whenever the control channel closes or the device is lost.
// fn runs after the session lock is released.
func (s *Session) onDrop(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropHooks = append(s.dropHooks, fn)
}

// unlock releases s.mu and then runs the drop hooks if the channel closed while it was held.
func (s *Session) unlock() {
	dropped := s.dropped
	s.dropped = false
	hooks := s.dropHooks
	s.mu.Unlock()

	if !dropped {
		return
	}
	for _, fn := range hooks {
		fn()
	}
}

func sameDevice(a, b *DeviceHandle) bool {
	return a.registry == b.registry && a.info.SerialNumber == b.info.SerialNumber
}
