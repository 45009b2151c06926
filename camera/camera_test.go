package camera

import (
	"context"
	"testing"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/genicam/simcam"
	"github.com/sterex-dev/detector-interfaces/internal/util"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidOption(t *testing.T) {
	cam, err := New(simcam.NewTransport(), WithMaxAttempts(0))
	require.Error(t, err)
	require.Nil(t, cam)
}

func TestCamera_BindBySerial(t *testing.T) {
	require := require.New(t)

	transport := simcam.NewTransport(newBasler("100"), newBasler("200"))
	cam, err := New(transport)
	require.NoError(err)
	t.Cleanup(func() { _ = cam.Close() })

	require.ErrorIs(cam.Bind(util.Ptr(uint64(300))), ErrDeviceNotFound)
	require.NoError(cam.Bind(util.Ptr(uint64(200))))
	require.Equal("200", cam.Session().Handle().Info().SerialNumber)

	// rebinding releases the previous device
	require.NoError(cam.Bind(util.Ptr(uint64(100))))
	_, held := cam.Registry().Holder("200")
	require.False(held)
	holder, held := cam.Registry().Holder("100")
	require.True(held)
	require.Same(cam.Session(), holder)
}

func TestCamera_SharedRegistry(t *testing.T) {
	require := require.New(t)

	registry := NewRegistry(simcam.NewTransport(newBasler("1")), nil)
	cfg, err := NewConfig()
	require.NoError(err)

	a := NewWithRegistry(registry, cfg)
	b := NewWithRegistry(registry, cfg)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	require.NoError(a.Bind(nil))
	require.ErrorIs(b.Bind(nil), ErrDeviceInUse)

	// binding again finds a new handle to the same device
	require.NoError(a.Bind(nil))
	require.ErrorIs(b.Bind(nil), ErrDeviceInUse)

	require.NoError(a.Close())
	require.NoError(b.Bind(nil))
}

func TestCamera_Workflow(t *testing.T) {
	require := require.New(t)

	cam, sim := newTestCamera(t, WithReadTimeout(200*time.Millisecond), WithMaxAttempts(20))

	report, err := cam.Apply(ConfigSet{
		ExposureTime: util.Ptr(1000.0),
		BinningH:     util.Ptr(int64(2)),
		BinningV:     util.Ptr(int64(2)),
		OffsetX:      util.Ptr(int64(0)),
		OffsetY:      util.Ptr(int64(0)),
		Width:        util.Ptr(int64(256)),
		Height:       util.Ptr(int64(128)),
	})
	require.NoError(err)
	require.NoError(report.Err())

	_, err = cam.BeginExpose(genicam.OneByOne)
	require.NoError(err)

	res, err := cam.Grab(context.Background(), 3)
	require.NoError(err)
	require.Len(res.Frames, 3)
	for _, f := range res.Frames {
		require.Equal(256, f.Width)
		require.Equal(128, f.Height)
	}

	timing, err := cam.FrameOverheads()
	require.NoError(err)
	require.Equal(time.Duration(256*128*10), timing.TransmissionDelay)

	require.NoError(cam.Close())
	require.False(sim.IsOpen())
	require.False(sim.IsGrabbing())
	require.ErrorIs(cam.Connect(), ErrNoDeviceBound)
	require.NoError(cam.Close())
}
