package camera

import (
	"fmt"
	"time"

	"github.com/sterex-dev/detector-interfaces/logger"
)

// Default controller settings.
const (
	DefaultReadTimeout   = 1 * time.Second
	DefaultMaxAttempts   = 10
	DefaultMaxNumBuffers = 25
)

// Option range limits.
const (
	MinReadTimeout = 1 * time.Millisecond
	MaxReadTimeout = 60 * time.Second

	MinMaxAttempts = 1
	MaxMaxAttempts = 10000

	MinNumBuffers = 1
	MaxNumBuffers = 1024
)

// StrategyPolicy decides what BeginExpose does when called with a different strategy while grabbing.
type StrategyPolicy uint8

const (
	// RejectStrategyChange fails the call with ErrInvalidState. This is the default.
	RejectStrategyChange StrategyPolicy = iota
	// KeepCurrentStrategy ignores the request and keeps grabbing with the current strategy.
	KeepCurrentStrategy
	// RestartOnStrategyChange stops the stream and restarts it with the requested strategy.
	RestartOnStrategyChange
)

func (p StrategyPolicy) String() string {
	switch p {
	case RejectStrategyChange:
		return "reject"
	case KeepCurrentStrategy:
		return "keep"
	case RestartOnStrategyChange:
		return "restart"
	default:
		return "unknown"
	}
}

// Config holds the controller configuration.
type Config struct {
	readTimeout   time.Duration
	maxAttempts   int
	maxNumBuffers int
	policy        StrategyPolicy
	model         Model // nil selects the model from the device info
	logger        logger.Logger
}

// NewConfig creates a controller configuration with the given options applied in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		readTimeout:   DefaultReadTimeout,
		maxAttempts:   DefaultMaxAttempts,
		maxNumBuffers: DefaultMaxNumBuffers,
		policy:        RejectStrategyChange,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ReadTimeout returns the per-attempt timeout used by Camera.Grab.
func (cfg *Config) ReadTimeout() time.Duration { return cfg.readTimeout }

// MaxAttempts returns the attempt bound used by Camera.Grab.
func (cfg *Config) MaxAttempts() int { return cfg.maxAttempts }

// MaxNumBuffers returns the stream buffer count written before grabbing starts.
func (cfg *Config) MaxNumBuffers() int { return cfg.maxNumBuffers }

// StrategyPolicy returns the policy for strategy changes while grabbing.
func (cfg *Config) StrategyPolicy() StrategyPolicy { return cfg.policy }

// Model returns the configured camera model, or nil when it is selected from the device info.
func (cfg *Config) Model() Model { return cfg.model }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option configures a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l != nil {
			cfg.logger = l
		}

		return nil
	})
}

// WithReadTimeout sets the default per-attempt retrieve timeout, range [1ms, 60s].
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("camera: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithMaxAttempts sets the default attempt bound of a read, range [1, 10000].
func WithMaxAttempts(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinMaxAttempts || n > MaxMaxAttempts {
			return fmt.Errorf("camera: max attempts %d out of range [%d, %d]", n, MinMaxAttempts, MaxMaxAttempts)
		}
		cfg.maxAttempts = n

		return nil
	})
}

// WithMaxNumBuffers sets the stream buffer count, range [1, 1024].
func WithMaxNumBuffers(n int) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkNumBuffers(n); err != nil {
			return err
		}
		cfg.maxNumBuffers = n

		return nil
	})
}

// WithStrategyPolicy sets the policy for BeginExpose calls that change the strategy while grabbing.
func WithStrategyPolicy(p StrategyPolicy) Option {
	return optFunc(func(cfg *Config) error {
		if p > RestartOnStrategyChange {
			return fmt.Errorf("camera: unknown strategy policy %d", p)
		}
		cfg.policy = p

		return nil
	})
}

// WithModel forces the camera model instead of selecting it from the device info.
func WithModel(m Model) Option {
	return optFunc(func(cfg *Config) error {
		cfg.model = m
		return nil
	})
}

func checkNumBuffers(n int) error {
	if n < MinNumBuffers || n > MaxNumBuffers {
		return fmt.Errorf("camera: %w: buffer count %d out of range [%d, %d]", ErrInvalidArgument, n, MinNumBuffers, MaxNumBuffers)
	}

	return nil
}
