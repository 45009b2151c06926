package camera

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/stretchr/testify/require"
)

func TestCamera_Preview(t *testing.T) {
	require := require.New(t)

	cam, sim := newTestCamera(t, WithReadTimeout(50*time.Millisecond))
	startSmall(t, cam, genicam.LatestImageOnly, 0)
	require.NoError(cam.EndExpose())

	var frames atomic.Int32
	require.NoError(cam.StartPreview(func(f Frame) {
		if f.Valid {
			frames.Add(1)
		}
	}))
	require.True(cam.IsPreviewing())
	require.True(cam.IsExposing())

	strategy, _ := cam.Acquisition().Strategy()
	require.Equal(genicam.LatestImageOnly, strategy)

	require.ErrorIs(cam.StartPreview(func(Frame) {}), ErrInvalidState)

	require.Eventually(func() bool { return frames.Load() >= 5 }, 2*time.Second, time.Millisecond)

	cam.StopPreview()
	cam.StopPreview()
	require.False(cam.IsPreviewing())
	require.False(cam.IsExposing())
	require.False(sim.IsGrabbing())

	stats := sim.Stats()
	require.Equal(stats.Retrieved, stats.Released)
	require.Zero(stats.DoubleReleases)
}

func TestCamera_PreviewEndsOnDeviceLoss(t *testing.T) {
	require := require.New(t)

	cam, sim := newTestCamera(t, WithReadTimeout(20*time.Millisecond))
	require.NoError(cam.StartPreview(func(Frame) {}))

	sim.Unplug()
	require.Eventually(func() bool { return !cam.IsPreviewing() }, 2*time.Second, time.Millisecond)

	cam.StopPreview()
	require.False(cam.IsExposing())
	require.ErrorIs(cam.StartPreview(func(Frame) {}), ErrHandleInvalid)
}

func TestCamera_PreviewArguments(t *testing.T) {
	cam, _ := newTestCamera(t)

	require.ErrorIs(t, cam.StartPreview(nil), ErrInvalidArgument)

	_, err := cam.BeginExpose(genicam.OneByOne)
	require.NoError(t, err)
	require.ErrorIs(t, cam.StartPreview(func(Frame) {}), ErrInvalidState)
	require.False(t, cam.IsPreviewing())
}

func TestCamera_DisconnectStopsEverything(t *testing.T) {
	require := require.New(t)

	cam, sim := newTestCamera(t)
	require.NoError(cam.StartPreview(func(Frame) {}))

	require.NoError(cam.Disconnect())
	require.False(cam.IsPreviewing())
	require.False(cam.IsExposing())
	require.False(cam.IsOpen())
	require.False(sim.IsOpen())

	// the device stays bound after a disconnect
	require.True(cam.Session().Handle().Valid())
	require.NoError(cam.Connect())
}
