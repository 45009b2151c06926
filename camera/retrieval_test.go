package camera

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/genicam/simcam"
	"github.com/sterex-dev/detector-interfaces/internal/util"
	"github.com/stretchr/testify/require"
)

// startSmall shrinks the region to 64x48 Mono8 and starts grabbing.
func startSmall(t *testing.T, cam *Camera, strategy genicam.GrabStrategy, maxImages int) {
	t.Helper()

	report, err := cam.Apply(ConfigSet{
		PixelFormat: util.Ptr("Mono8"),
		OffsetX:     util.Ptr(int64(0)),
		OffsetY:     util.Ptr(int64(0)),
		Width:       util.Ptr(int64(64)),
		Height:      util.Ptr(int64(48)),
	})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	_, err = cam.BeginExposeMax(strategy, maxImages)
	require.NoError(t, err)
}

func requireAllReleased(t *testing.T, sim *simcam.Camera) {
	t.Helper()

	stats := sim.Stats()
	require.Equal(t, stats.Retrieved, stats.Released, "every retrieved buffer is released")
	require.Zero(t, stats.Outstanding)
	require.Zero(t, stats.DoubleReleases)
}

func TestRetriever_Read(t *testing.T) {
	require := require.New(t)

	cam, sim := newTestCamera(t)
	startSmall(t, cam, genicam.OneByOne, 0)

	res, err := cam.Read(context.Background(), 5, time.Second, 10)
	require.NoError(err)
	require.NoError(res.Err())
	require.Len(res.Frames, 5)
	require.Equal(5, res.Attempts)

	var lastID uint64
	for _, f := range res.Frames {
		require.True(f.Valid)
		require.Equal(64, f.Width)
		require.Equal(48, f.Height)
		require.Equal("Mono8", f.PixelFormat)
		require.Len(f.Data, 64*48)
		require.Equal(byte(f.BlockID), f.Data[0])
		require.Greater(f.BlockID, lastID)
		require.False(f.Timestamp.IsZero())
		lastID = f.BlockID
	}

	requireAllReleased(t, sim)
	require.EqualValues(5, cam.Metrics().FrameCount.Load())
	require.EqualValues(5, cam.Metrics().ReleaseCount.Load())
}

func TestRetriever_FailedBuffers(t *testing.T) {
	t.Run("some failed", func(t *testing.T) {
		require := require.New(t)
		cam, sim := newTestCamera(t)
		sim.SetFailEvery(2)
		startSmall(t, cam, genicam.OneByOne, 0)

		res, err := cam.Read(context.Background(), 3, time.Second, 10)
		require.NoError(err)
		require.Len(res.Frames, 3)
		require.GreaterOrEqual(res.Failures, 2)
		require.Equal(simcam.ErrorCodeIncomplete, res.LastErrorCode)
		require.NoError(res.Err())
		requireAllReleased(t, sim)
		require.EqualValues(res.Failures, cam.Metrics().FailedFrameCount.Load())
	})

	t.Run("all failed", func(t *testing.T) {
		require := require.New(t)
		cam, sim := newTestCamera(t)
		sim.SetFailEvery(1)
		startSmall(t, cam, genicam.OneByOne, 0)

		res, err := cam.Read(context.Background(), 2, time.Second, 4)
		require.NoError(err)
		require.Empty(res.Frames)
		require.Equal(4, res.Attempts)
		require.Equal(4, res.Failures)

		var grabErr *GrabError
		require.ErrorAs(res.Err(), &grabErr)
		require.Equal(simcam.ErrorCodeIncomplete, grabErr.Code)
		require.ErrorIs(res.Err(), ErrGrabFailed)
		requireAllReleased(t, sim)
	})
}

func TestRetriever_Timeouts(t *testing.T) {
	require := require.New(t)

	cam, sim := newTestCamera(t)
	sim.SetFrameInterval(time.Hour)
	startSmall(t, cam, genicam.OneByOne, 0)

	start := time.Now()
	res, err := cam.Read(context.Background(), 1, 10*time.Millisecond, 3)
	require.NoError(err)
	require.Empty(res.Frames)
	require.Equal(3, res.Attempts)
	require.Equal(3, res.Timeouts)
	require.ErrorIs(res.Err(), ErrGrabTimeout)
	require.Less(time.Since(start), time.Second)
	require.EqualValues(3, cam.Metrics().TimeoutCount.Load())
}

func TestRetriever_LatestImageOnly(t *testing.T) {
	t.Run("slow producer bounds the read", func(t *testing.T) {
		require := require.New(t)
		cam, sim := newTestCamera(t)
		sim.SetFrameInterval(200 * time.Millisecond)
		startSmall(t, cam, genicam.LatestImageOnly, 0)

		start := time.Now()
		res, err := cam.Read(context.Background(), 5, 100*time.Millisecond, 3)
		require.NoError(err)
		require.Equal(3, res.Attempts)
		require.LessOrEqual(len(res.Frames), 1)
		require.GreaterOrEqual(res.Timeouts, 2)
		require.Less(time.Since(start), time.Second)
		requireAllReleased(t, sim)
	})

	t.Run("only the newest buffer is kept", func(t *testing.T) {
		require := require.New(t)
		cam, sim := newTestCamera(t)
		startSmall(t, cam, genicam.LatestImageOnly, 0)

		require.Eventually(func() bool { return sim.Stats().Produced >= 10 }, time.Second, time.Millisecond)

		res, err := cam.Read(context.Background(), 1, time.Second, 1)
		require.NoError(err)
		require.Len(res.Frames, 1)
		require.Greater(res.Frames[0].BlockID, uint64(1))
		require.NotZero(sim.Stats().Lost)
	})
}

func TestRetriever_StreamExhausted(t *testing.T) {
	require := require.New(t)

	cam, sim := newTestCamera(t)
	startSmall(t, cam, genicam.OneByOne, 3)

	res, err := cam.Read(context.Background(), 10, time.Second, 20)
	require.NoError(err)
	require.Len(res.Frames, 3)
	require.Equal(4, res.Attempts)
	requireAllReleased(t, sim)
}

func TestRetriever_Errors(t *testing.T) {
	cam, sim := newTestCamera(t)
	ctx := context.Background()

	t.Run("not grabbing", func(t *testing.T) {
		res, err := cam.Read(ctx, 1, time.Second, 1)
		require.ErrorIs(t, err, ErrInvalidState)
		require.Zero(t, res.Attempts)
	})

	startSmall(t, cam, genicam.OneByOne, 0)

	tests := []struct {
		n        int
		timeout  time.Duration
		attempts int
	}{
		{0, time.Second, 1},
		{-1, time.Second, 1},
		{1, 0, 1},
		{1, time.Second, 0},
		{1, time.Second, -5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d timeout=%v attempts=%d", tt.n, tt.timeout, tt.attempts), func(t *testing.T) {
			res, err := cam.Read(ctx, tt.n, tt.timeout, tt.attempts)
			require.ErrorIs(t, err, ErrInvalidArgument)
			require.Empty(t, res.Frames)
		})
	}

	t.Run("context canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		res, err := cam.Read(cctx, 1, time.Second, 1)
		require.ErrorIs(t, err, context.Canceled)
		require.Zero(t, res.Attempts)
	})

	t.Run("device lost", func(t *testing.T) {
		sim.Unplug()

		_, err := cam.Read(ctx, 1, time.Second, 1)
		require.ErrorIs(t, err, genicam.ErrDeviceLost)
		require.False(t, cam.Session().Handle().Valid())
		require.False(t, cam.IsExposing())
	})
}

func TestRetriever_Frames(t *testing.T) {
	require := require.New(t)

	cam, sim := newTestCamera(t, WithReadTimeout(time.Second), WithMaxAttempts(10))
	startSmall(t, cam, genicam.OneByOne, 0)

	count := 0
	for f := range cam.Frames(context.Background(), 4) {
		require.True(f.Valid)
		count++
	}
	require.Equal(4, count)

	count = 0
	for range cam.Frames(context.Background(), 100) {
		count++
		if count == 2 {
			break
		}
	}
	require.Equal(2, count)
	requireAllReleased(t, sim)

	require.NoError(cam.EndExpose())
	for range cam.Frames(context.Background(), 1) {
		require.Fail("no frames expected while idle")
	}
}

func TestReadResult_Err(t *testing.T) {
	tests := []struct {
		name string
		res  ReadResult
		want error
	}{
		{"no attempts", ReadResult{}, nil},
		{"frames", ReadResult{Frames: []Frame{{}}, Attempts: 3, Timeouts: 2}, nil},
		{"timeouts", ReadResult{Attempts: 3, Timeouts: 3}, ErrGrabTimeout},
		{"failures with code", ReadResult{Attempts: 2, Failures: 1, Timeouts: 1, LastErrorCode: 0xE1000014}, ErrGrabFailed},
		{"failures without code", ReadResult{Attempts: 1, Failures: 1}, ErrGrabFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.res.Err()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGrabError(t *testing.T) {
	err := error(&GrabError{Code: 0xE1000014, Description: "The buffer was incompletely grabbed."})
	require.True(t, errors.Is(err, ErrGrabFailed))
	require.Equal(t, "grab failed: code 0xE1000014: The buffer was incompletely grabbed.", err.Error())
	require.Equal(t, "grab failed: code 0x00000001", (&GrabError{Code: 1}).Error())
}
