package simcam

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/internal/pool"
	"github.com/sterex-dev/detector-interfaces/internal/queue"
)

// ErrorCodeIncomplete is reported by buffers the stream could not complete.
const ErrorCodeIncomplete uint32 = 0xE1000014

const producerTask = "frame-producer"

// StartGrabbing starts the frame producer.
func (c *Camera) StartGrabbing(strategy genicam.GrabStrategy, maxImages int) error {
	c.mu.Lock()

	switch {
	case c.lost:
		c.mu.Unlock()
		return genicam.ErrDeviceLost
	case !c.open:
		c.mu.Unlock()
		return genicam.ErrNotOpen
	case c.grabbing:
		c.mu.Unlock()
		return genicam.ErrAlreadyGrabbing
	}

	switch strategy {
	case genicam.LatestImageOnly:
		c.buffers = queue.NewBounded[*grabResult](1, queue.DropOldest)
	default:
		c.buffers = queue.NewBounded[*grabResult](int(c.intValue(genicam.MaxNumBuffer)), queue.DropNewest)
	}
	c.grabbing = true
	c.strategy = strategy
	c.maxImages = uint64(max(maxImages, 0))
	c.stats.Produced = 0
	c.stats.StreamStarts++
	interval := c.frameInterval()
	c.mu.Unlock()

	c.log.Debug("stream started", "strategy", strategy, "max_images", maxImages, "interval", interval)

	if err := c.tasks.StartInterval(producerTask, c.produce, interval, false); err != nil {
		c.mu.Lock()
		c.grabbing = false
		c.mu.Unlock()

		return fmt.Errorf("start frame producer: %w", err)
	}

	return nil
}

// StopGrabbing stops the stream. Queued buffers that were never retrieved return to the pool.
func (c *Camera) StopGrabbing() error {
	c.mu.Lock()
	if c.lost {
		c.mu.Unlock()
		return genicam.ErrDeviceLost
	}
	wasGrabbing := c.grabbing
	c.grabbing = false
	if c.buffers != nil {
		c.buffers.Drain()
	}
	c.mu.Unlock()

	c.wake()
	c.tasks.Stop()
	c.tasks.Wait()

	if wasGrabbing {
		c.log.Debug("stream stopped")
	}

	return nil
}

// IsGrabbing reports whether the stream is active. A stream limited by maxImages
// stops reporting active once every buffer has been produced and retrieved.
func (c *Camera) IsGrabbing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.grabbing && !c.exhaustedLocked()
}

// RetrieveResult waits up to timeout for a completed buffer.
func (c *Camera) RetrieveResult(timeout time.Duration) (genicam.GrabResult, error) {
	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	for {
		c.mu.Lock()
		switch {
		case c.lost:
			c.mu.Unlock()
			return nil, genicam.ErrDeviceLost
		case !c.grabbing:
			c.mu.Unlock()
			return nil, genicam.ErrNotGrabbing
		}

		if r, ok := c.buffers.Dequeue(); ok {
			c.stats.Retrieved++
			c.stats.Outstanding++
			c.mu.Unlock()

			return r, nil
		}

		if c.exhaustedLocked() {
			c.mu.Unlock()
			return nil, genicam.ErrNotGrabbing
		}
		c.mu.Unlock()

		select {
		case <-c.signal:
		case <-timer.C:
			return nil, genicam.ErrTimeout
		}
	}
}

func (c *Camera) exhaustedLocked() bool {
	return c.maxImages > 0 && c.stats.Produced >= c.maxImages && c.buffers.IsEmpty()
}

// produce completes one buffer. It runs on the producer task.
func (c *Camera) produce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.grabbing || c.lost {
		return false
	}
	if c.maxImages > 0 && c.stats.Produced >= c.maxImages {
		return false
	}

	c.stats.Produced++

	// every buffer is either queued or retrieved and not yet released
	poolSize := int(c.intValue(genicam.MaxNumBuffer))
	if c.stats.Outstanding+c.buffers.Length() >= poolSize && c.strategy == genicam.OneByOne {
		c.stats.Lost++
		return true
	}
	if c.stats.Outstanding >= poolSize {
		c.stats.Lost++
		return true
	}

	roi := c.roiLocked()
	format := c.stringValue(genicam.PixelFormat)
	r := &grabResult{
		cam:       c,
		succeeded: true,
		width:     int(roi.Width),
		height:    int(roi.Height),
		format:    format,
		size:      c.payloadSize(),
		blockID:   c.stats.Produced,
		timestamp: time.Now(),
	}
	if c.failEvery > 0 && c.stats.Produced%c.failEvery == 0 {
		r.succeeded = false
		r.errorCode = ErrorCodeIncomplete
		r.errorDesc = "The buffer was incompletely grabbed."
	}

	if _, dropped := c.buffers.Enqueue(r); dropped {
		c.stats.Lost++
	}
	c.wake()

	return true
}

func (c *Camera) release(r *grabResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Released++
	c.stats.Outstanding--
}

func (c *Camera) doubleRelease() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.DoubleReleases++
}

type grabResult struct {
	cam       *Camera
	succeeded bool
	errorCode uint32
	errorDesc string
	width     int
	height    int
	format    string
	size      int64
	blockID   uint64
	timestamp time.Time
	released  atomic.Bool
}

var _ genicam.GrabResult = (*grabResult)(nil)

func (r *grabResult) Succeeded() bool { return r.succeeded }
func (r *grabResult) ErrorCode() uint32 { return r.errorCode }
func (r *grabResult) ErrorDescription() string { return r.errorDesc }
func (r *grabResult) Width() int { return r.width }
func (r *grabResult) Height() int { return r.height }
func (r *grabResult) PixelFormat() string { return r.format }
func (r *grabResult) BlockID() uint64 { return r.blockID }
func (r *grabResult) Timestamp() time.Time { return r.timestamp }

// Buffer renders a ramp pattern offset by the block id. It returns nil after Release
// and for failed buffers.
func (r *grabResult) Buffer() []byte {
	if r.released.Load() || !r.succeeded {
		return nil
	}

	buf := make([]byte, r.size)
	for i := range buf {
		buf[i] = byte(uint64(i) + r.blockID)
	}

	return buf
}

func (r *grabResult) Release() {
	if !r.released.CompareAndSwap(false, true) {
		r.cam.doubleRelease()
		return
	}
	r.cam.release(r)
}
