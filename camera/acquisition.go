package camera

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/logger"
)

// AcquisitionState is either idle or grabbing with a strategy.
type AcquisitionState struct {
	Grabbing bool
	Strategy genicam.GrabStrategy // meaningful only while grabbing
}

// Idle is the state with no active stream.
var Idle = AcquisitionState{}

// Grabbing returns the grabbing state with strategy s.
func Grabbing(s genicam.GrabStrategy) AcquisitionState {
	return AcquisitionState{Grabbing: true, Strategy: s}
}

func (st AcquisitionState) String() string {
	if !st.Grabbing {
		return "idle"
	}

	return "grabbing(" + st.Strategy.String() + ")"
}

// StateChangeHandler is invoked after every acquisition state change.
//
// Note: the handler is invoked synchronously by the goroutine that caused the change.
// It must not call back into the Acquisition.
type StateChangeHandler func(prev AcquisitionState, next AcquisitionState)

// Acquisition drives the stream of the bound device between Idle and Grabbing.
type Acquisition struct {
	mu            sync.Mutex
	session       *Session
	policy        StrategyPolicy
	maxNumBuffers int
	state         AcquisitionState
	runID         uuid.UUID
	handlers      []StateChangeHandler
	pending       []transition
	dropped       atomic.Bool
	logger        logger.Logger
}

type transition struct {
	prev AcquisitionState
	next AcquisitionState
}

// NewAcquisition creates an idle state machine over session.
func NewAcquisition(session *Session, handlers ...StateChangeHandler) *Acquisition {
	a := &Acquisition{
		session:       session,
		policy:        session.cfg.StrategyPolicy(),
		maxNumBuffers: session.cfg.MaxNumBuffers(),
		handlers:      handlers,
		logger:        session.cfg.GetLogger(),
	}
	session.onDrop(a.sessionDropped)

	return a
}

// AddHandler registers handlers invoked on state changes.
func (a *Acquisition) AddHandler(handlers ...StateChangeHandler) {
	a.mu.Lock()
	defer a.unlock()

	a.handlers = append(a.handlers, handlers...)
}

// State returns the current state. A stream whose session has closed reads as Idle.
func (a *Acquisition) State() AcquisitionState {
	a.mu.Lock()
	defer a.unlock()

	if a.state.Grabbing && !a.session.IsOpen() {
		return Idle
	}

	return a.state
}

// IsExposing reports whether the stream is active. It does not change the state.
func (a *Acquisition) IsExposing() bool {
	return a.State().Grabbing
}

// Strategy returns the strategy of the active stream.
func (a *Acquisition) Strategy() (genicam.GrabStrategy, bool) {
	st := a.State()
	return st.Strategy, st.Grabbing
}

// RunID returns the identifier of the current or last grabbing run.
func (a *Acquisition) RunID() uuid.UUID {
	a.mu.Lock()
	defer a.unlock()

	return a.runID
}

// MaxNumBuffers returns the buffer count written at the next BeginExpose.
func (a *Acquisition) MaxNumBuffers() int {
	a.mu.Lock()
	defer a.unlock()

	return a.maxNumBuffers
}

// SetMaxNumBuffers sets the buffer count used by the next grabbing run.
// It fails with ErrInvalidState while grabbing.
func (a *Acquisition) SetMaxNumBuffers(n int) error {
	if err := checkNumBuffers(n); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.unlock()

	if st := a.syncLocked(); st.Grabbing {
		return fmt.Errorf("set buffer count: %w: %s", ErrInvalidState, st)
	}
	a.maxNumBuffers = n

	return nil
}

// BeginExpose starts grabbing with strategy and returns the strategy in effect.
//
// It connects the session if needed. Calling it while grabbing with the same strategy is a
// no-op; a different strategy is handled according to the configured StrategyPolicy.
func (a *Acquisition) BeginExpose(strategy genicam.GrabStrategy) (genicam.GrabStrategy, error) {
	return a.BeginExposeMax(strategy, 0)
}

// BeginExposeMax is BeginExpose with the stream limited to maxImages buffers; 0 means unlimited.
func (a *Acquisition) BeginExposeMax(strategy genicam.GrabStrategy, maxImages int) (genicam.GrabStrategy, error) {
	if strategy != genicam.OneByOne && strategy != genicam.LatestImageOnly {
		return strategy, fmt.Errorf("begin expose: %w: unknown strategy %d", ErrInvalidArgument, strategy)
	}
	if maxImages < 0 {
		return strategy, fmt.Errorf("begin expose: %w: negative image count %d", ErrInvalidArgument, maxImages)
	}

	a.mu.Lock()
	defer a.unlock()

	if cur := a.syncLocked(); cur.Grabbing {
		if cur.Strategy == strategy {
			a.logger.Debug("already grabbing", "strategy", strategy, "run_id", a.runID)
			return strategy, nil
		}

		switch a.policy {
		case KeepCurrentStrategy:
			a.logger.Debug("strategy change ignored", "current", cur.Strategy, "requested", strategy, "run_id", a.runID)
			return cur.Strategy, nil
		case RestartOnStrategyChange:
			a.logger.Info("restarting for strategy change", "current", cur.Strategy, "requested", strategy, "run_id", a.runID)
			if err := a.stopLocked(); err != nil {
				return cur.Strategy, err
			}
		default:
			return cur.Strategy, fmt.Errorf("begin expose: %w: grabbing with %s, requested %s", ErrInvalidState, cur.Strategy, strategy)
		}
	}

	if err := a.startLocked(strategy, maxImages); err != nil {
		return strategy, err
	}

	return strategy, nil
}

// EndExpose stops grabbing. It is a no-op while idle.
func (a *Acquisition) EndExpose() error {
	a.mu.Lock()
	defer a.unlock()

	if !a.syncLocked().Grabbing {
		return nil
	}

	return a.stopLocked()
}

func (a *Acquisition) startLocked(strategy genicam.GrabStrategy, maxImages int) (err error) {
	opened := !a.session.IsOpen()
	if err := a.session.Connect(); err != nil {
		return fmt.Errorf("begin expose: %w", err)
	}
	// undo a connection made for this run
	defer func() {
		if err == nil || !opened {
			return
		}
		if derr := a.session.Disconnect(); derr != nil {
			a.logger.Warn("failed to disconnect after begin expose", "error", derr)
		}
	}()

	model := a.session.Model()
	err = a.session.Scope(func(nodes genicam.NodeMap) error {
		node, ok := model.Names().Lookup(genicam.MaxNumBuffer)
		if !ok {
			return nil
		}
		if err := nodes.SetInt(node.Name, int64(a.maxNumBuffers)); err != nil {
			return registerError("", genicam.MaxNumBuffer, err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("begin expose: %w", err)
	}

	device, err := a.session.device()
	if err != nil {
		return fmt.Errorf("begin expose: %w", err)
	}
	if err := device.StartGrabbing(strategy, maxImages); err != nil {
		a.session.deviceLost(err)
		return fmt.Errorf("begin expose: start grabbing: %w", err)
	}

	a.runID = uuid.New()
	a.setStateLocked(Grabbing(strategy))
	a.session.Metrics().incExposeCount()
	a.logger.Info("grabbing started", "serial", a.serial(), "run_id", a.runID, "strategy", strategy,
		"max_images", maxImages, "buffers", a.maxNumBuffers)

	return nil
}

func (a *Acquisition) stopLocked() error {
	a.setStateLocked(Idle)

	device, err := a.session.device()
	if err != nil {
		// nothing left to stop
		return nil
	}
	if err := device.StopGrabbing(); err != nil {
		if a.session.deviceLost(err) {
			return nil
		}

		return fmt.Errorf("end expose: %w", err)
	}
	a.logger.Info("grabbing stopped", "serial", a.serial(), "run_id", a.runID)

	return nil
}

// sessionDropped reconciles the state when the session closes. The goroutine holding a.mu
// reconciles in unlock instead.
func (a *Acquisition) sessionDropped() {
	a.dropped.Store(true)
	if a.mu.TryLock() {
		a.unlock()
	}
}

// syncLocked drops to Idle when the session was disconnected or the device lost behind the
// state machine's back.
func (a *Acquisition) syncLocked() AcquisitionState {
	if a.state.Grabbing && !a.session.IsOpen() {
		a.logger.Warn("grabbing ended by session loss", "run_id", a.runID)
		a.setStateLocked(Idle)
	}

	return a.state
}

func (a *Acquisition) setStateLocked(next AcquisitionState) {
	if a.state != next {
		a.pending = append(a.pending, transition{prev: a.state, next: next})
	}
	a.state = next
	a.session.Metrics().setGrabbing(next.Grabbing)
}

// unlock releases a.mu and then delivers the state changes made while it was held.
func (a *Acquisition) unlock() {
	for {
		a.dropped.Store(false)
		a.syncLocked()
		pending := a.pending
		a.pending = nil
		handlers := a.handlers
		a.mu.Unlock()

		for _, t := range pending {
			for _, h := range handlers {
				h(t.prev, t.next)
			}
		}

		// a session drop reported while a.mu was held
		if !a.dropped.Load() || !a.mu.TryLock() {
			return
		}
	}
}

func (a *Acquisition) serial() string {
	if h := a.session.Handle(); h != nil {
		return h.info.SerialNumber
	}

	return ""
}
