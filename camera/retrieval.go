package camera

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/internal/util"
	"github.com/sterex-dev/detector-interfaces/logger"
)

// Frame is one image copied out of a device buffer. The caller owns Data.
type Frame struct {
	Data        []byte
	Width       int
	Height      int
	PixelFormat string
	BlockID     uint64
	ErrorCode   uint32
	Valid       bool
	Timestamp   time.Time
}

// ReadResult summarizes one bounded read.
type ReadResult struct {
	Frames        []Frame
	Attempts      int
	Timeouts      int
	Failures      int
	LastErrorCode uint32
}

// Err returns nil when at least one frame was collected, otherwise why the read came back empty.
func (r *ReadResult) Err() error {
	switch {
	case len(r.Frames) > 0 || r.Attempts == 0:
		return nil
	case r.Failures > 0 && r.LastErrorCode != 0:
		return fmt.Errorf("no frames in %d attempts: %w", r.Attempts, &GrabError{Code: r.LastErrorCode})
	case r.Failures > 0:
		return fmt.Errorf("%w: no frames in %d attempts", ErrGrabFailed, r.Attempts)
	case r.Timeouts > 0:
		return fmt.Errorf("%w: no frames in %d attempts", ErrGrabTimeout, r.Attempts)
	default:
		return nil
	}
}

// Retriever pulls frames from the stream of the bound device with a bounded number of attempts.
type Retriever struct {
	acq     *Acquisition
	session *Session
	logger  logger.Logger
}

// NewRetriever creates a retriever reading the stream driven by acq.
func NewRetriever(acq *Acquisition) *Retriever {
	return &Retriever{acq: acq, session: acq.session, logger: acq.logger}
}

// Read collects up to n valid frames using at most maxAttempts retrieve calls, each waiting
// up to readTimeout.
//
// Timeouts and failed buffers consume an attempt and are counted in the result. Collecting
// fewer than n frames is not an error. Read fails when the controller is not grabbing, when
// an argument is invalid, when the device is lost, or when ctx is done between attempts;
// the partial result is returned with the error.
func (r *Retriever) Read(ctx context.Context, n int, readTimeout time.Duration, maxAttempts int) (*ReadResult, error) {
	res := &ReadResult{Frames: make([]Frame, 0, min(max(n, 0), max(maxAttempts, 0)))}

	err := r.run(ctx, n, readTimeout, maxAttempts, res, func(f Frame) bool {
		res.Frames = append(res.Frames, f)
		return true
	})

	return res, err
}

// Frames returns an iterator over the frames a Read with the same arguments would collect.
// Iteration ends early when the consumer stops; errors end the sequence and are logged.
func (r *Retriever) Frames(ctx context.Context, n int, readTimeout time.Duration, maxAttempts int) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		res := &ReadResult{}
		if err := r.run(ctx, n, readTimeout, maxAttempts, res, yield); err != nil {
			r.logger.Warn("frame sequence ended", "error", err, "attempts", res.Attempts)
		}
	}
}

func (r *Retriever) run(ctx context.Context, n int, readTimeout time.Duration, maxAttempts int, res *ReadResult, yield func(Frame) bool) error {
	switch {
	case n < 1:
		return fmt.Errorf("read: %w: frame count %d must be positive", ErrInvalidArgument, n)
	case readTimeout <= 0:
		return fmt.Errorf("read: %w: read timeout %v must be positive", ErrInvalidArgument, readTimeout)
	case maxAttempts < 1:
		return fmt.Errorf("read: %w: attempt bound %d must be positive", ErrInvalidArgument, maxAttempts)
	}

	if !r.acq.IsExposing() {
		return fmt.Errorf("read: %w: not grabbing", ErrInvalidState)
	}

	device, err := r.session.device()
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	metrics := r.session.Metrics()
	collected := 0

	for res.Attempts < maxAttempts && collected < n {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		res.Attempts++
		frame, err := r.attempt(device, readTimeout)

		var grabErr *GrabError
		switch {
		case err == nil:
			collected++
			metrics.incFrameCount()
			if !yield(frame) {
				return nil
			}
		case errors.Is(err, genicam.ErrTimeout):
			res.Timeouts++
			metrics.incTimeoutCount()
			r.logger.Debug("retrieve timeout", "attempt", res.Attempts, "timeout", readTimeout)
		case errors.As(err, &grabErr):
			res.Failures++
			res.LastErrorCode = grabErr.Code
			metrics.incFailedFrameCount()
			r.logger.Debug("failed buffer", "attempt", res.Attempts, "code", grabErr.Code, "description", grabErr.Description)
		case errors.Is(err, genicam.ErrNotGrabbing):
			// a stream limited by image count has delivered everything
			r.logger.Debug("stream exhausted", "attempt", res.Attempts)
			return nil
		case r.session.deviceLost(err):
			return fmt.Errorf("read: %w", err)
		default:
			res.Failures++
			metrics.incFailedFrameCount()
			r.logger.Warn("retrieve failed", "attempt", res.Attempts, "error", err)
		}
	}

	return nil
}

// attempt performs one retrieve. The buffer is released on every path once retrieved.
func (r *Retriever) attempt(device genicam.Device, timeout time.Duration) (Frame, error) {
	grab, err := device.RetrieveResult(timeout)
	if err != nil {
		return Frame{}, err
	}
	defer func() {
		grab.Release()
		r.session.Metrics().incReleaseCount()
	}()

	if !grab.Succeeded() {
		return Frame{}, &GrabError{Code: grab.ErrorCode(), Description: grab.ErrorDescription()}
	}

	buf := grab.Buffer()

	return Frame{
		Data:        util.CloneSlice(buf, len(buf)),
		Width:       grab.Width(),
		Height:      grab.Height(),
		PixelFormat: grab.PixelFormat(),
		BlockID:     grab.BlockID(),
		Valid:       true,
		Timestamp:   grab.Timestamp(),
	}, nil
}
