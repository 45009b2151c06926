package camera

import (
	"errors"
	"fmt"

	"github.com/sterex-dev/detector-interfaces/genicam"
)

const previewTask = "live-preview"

// FrameHandler receives preview frames on the preview goroutine.
type FrameHandler func(Frame)

// StartPreview starts grabbing with LatestImageOnly and delivers every retrieved frame to
// handler until StopPreview. The loop ends by itself when the stream ends or the device is lost.
func (c *Camera) StartPreview(handler FrameHandler) error {
	if handler == nil {
		return fmt.Errorf("start preview: %w: nil handler", ErrInvalidArgument)
	}

	c.previewMu.Lock()
	defer c.previewMu.Unlock()

	if c.previewing {
		if c.IsPreviewing() {
			return fmt.Errorf("start preview: %w: preview already running", ErrInvalidState)
		}
		// the previous loop ended by itself
		c.stopPreviewLocked()
	}

	if _, err := c.acq.BeginExpose(genicam.LatestImageOnly); err != nil {
		return fmt.Errorf("start preview: %w", err)
	}

	ctx := c.preview.Context()
	timeout := c.cfg.ReadTimeout()

	err := c.preview.Start(previewTask, func() bool {
		res, err := c.retriever.Read(ctx, 1, timeout, 1)
		for _, f := range res.Frames {
			handler(f)
		}

		switch {
		case err == nil:
			// an attempt without frame, timeout or failure means the stream ended
			return len(res.Frames) > 0 || res.Timeouts > 0 || res.Failures > 0
		case errors.Is(err, ErrInvalidState), isDeviceLost(err), ctx.Err() != nil:
			c.logger.Info("preview stopped", "reason", err)
			return false
		default:
			c.logger.Warn("preview read failed", "error", err)
			return true
		}
	})
	if err != nil {
		return fmt.Errorf("start preview: %w", err)
	}
	c.previewing = true

	c.logger.Info("preview started", "run_id", c.acq.RunID())

	return nil
}

// StopPreview stops the preview loop and ends the exposure it started. It is a no-op when
// no preview is running.
func (c *Camera) StopPreview() {
	c.previewMu.Lock()
	defer c.previewMu.Unlock()

	if c.previewing {
		c.stopPreviewLocked()
	}
}

func (c *Camera) stopPreviewLocked() {
	c.preview.Stop()
	c.preview.Wait()
	c.previewing = false

	if err := c.acq.EndExpose(); err != nil {
		c.logger.Warn("failed to end preview exposure", "error", err)
	}
}

// IsPreviewing reports whether the preview loop is running.
func (c *Camera) IsPreviewing() bool {
	return c.preview.TaskCount() > 0
}
