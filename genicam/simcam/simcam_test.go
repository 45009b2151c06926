package simcam

import (
	"errors"
	"testing"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/logger"
	"github.com/stretchr/testify/require"
)

func newTestCamera(t *testing.T, names genicam.NodeNames) *Camera {
	t.Helper()

	cam := New(Config{
		SerialNumber:  "21000001",
		ModelName:     "acA2040-35gm",
		Names:         names,
		SensorWidth:   1024,
		SensorHeight:  768,
		FrameInterval: 2 * time.Millisecond,
		Logger:        logger.NewPermissiveMockLogger(),
	})
	t.Cleanup(func() { _ = cam.Close() })

	return cam
}

func TestCamera_OpenClose(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, nil)
	require.False(cam.IsOpen())

	_, err := cam.NodeMap().GetInt("Width")
	require.ErrorIs(err, genicam.ErrNotOpen)

	require.NoError(cam.Open())
	require.ErrorIs(cam.Open(), ErrAlreadyOpen)
	require.True(cam.IsOpen())

	require.NoError(cam.Close())
	require.NoError(cam.Close())

	stats := cam.Stats()
	require.Equal(1, stats.Opens)
	require.Equal(1, stats.Closes)
}

func TestCamera_NodeAccess(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, genicam.BaslerGigE)
	require.NoError(cam.Open())
	nodes := cam.NodeMap()

	width, err := nodes.GetInt("Width")
	require.NoError(err)
	require.EqualValues(1024, width)

	// legacy firmware publishes raw integer gain
	require.NoError(nodes.SetInt("GainRaw", 300))
	require.ErrorIs(nodes.SetFloat("GainRaw", 3), genicam.ErrTypeMismatch)
	require.ErrorIs(nodes.SetInt("GainRaw", 501), genicam.ErrOutOfRange)
	require.ErrorIs(nodes.SetFloat("Gain", 3), genicam.ErrNodeNotFound)

	require.NoError(nodes.SetString("PixelFormat", "Mono12"))
	require.ErrorIs(nodes.SetString("PixelFormat", "RGB8"), genicam.ErrOutOfRange)

	payload, err := nodes.GetInt("PayloadSize")
	require.NoError(err)
	require.EqualValues(1024*768*2, payload)

	require.ErrorIs(nodes.SetInt("PayloadSize", 1), genicam.ErrAccessDenied)

	var nodeErr *genicam.NodeError
	require.True(errors.As(nodes.SetInt("GainRaw", -1), &nodeErr))
	require.Equal("GainRaw", nodeErr.Node)
	require.Equal("set", nodeErr.Op)
}

func TestCamera_ROIBounds(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, nil)
	require.NoError(cam.Open())
	nodes := cam.NodeMap()

	// growing the offset before shrinking the size is refused
	require.ErrorIs(nodes.SetInt("OffsetX", 100), genicam.ErrOutOfRange)

	require.NoError(nodes.SetInt("Width", 512))
	require.NoError(nodes.SetInt("OffsetX", 100))
	require.ErrorIs(nodes.SetInt("Width", 1000), genicam.ErrOutOfRange)
	require.ErrorIs(nodes.SetInt("Width", 0), genicam.ErrOutOfRange)

	// binning clamps the region into the smaller binned sensor
	require.NoError(nodes.SetInt("BinningHorizontal", 2))
	roi := cam.ROI()
	require.True(roi.InBounds())
	require.EqualValues(512, roi.WidthMax)
	require.EqualValues(512, roi.Width)
	require.EqualValues(0, roi.OffsetX)

	for _, w := range cam.Journal() {
		require.True(w.ROI.InBounds(), "write %s=%v left the region out of bounds", w.Node, w.Value)
	}
}

func TestCamera_Temperature(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, genicam.BaslerGigE)
	require.NoError(cam.Open())
	nodes := cam.NodeMap()

	cam.SetTemperature("Sensor", 75)
	require.NoError(nodes.SetString("TemperatureSelector", "Sensor"))

	temp, err := nodes.GetFloat("TemperatureAbs")
	require.NoError(err)
	require.InDelta(75.0, temp, 1e-9)

	state, err := nodes.GetString("TemperatureState")
	require.NoError(err)
	require.Equal("Critical", state)
}

func TestCamera_RejectNode(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, nil)
	require.NoError(cam.Open())

	boom := errors.New("boom")
	cam.RejectNode("ExposureTime", boom)
	require.ErrorIs(cam.NodeMap().SetFloat("ExposureTime", 5000), boom)

	cam.RejectNode("ExposureTime", nil)
	require.NoError(cam.NodeMap().SetFloat("ExposureTime", 5000))

	journal := cam.Journal()
	require.Len(journal, 2)
	require.Error(journal[0].Err)
	require.NoError(journal[1].Err)
}

func TestCamera_GrabOneByOne(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, nil)
	require.NoError(cam.Open())

	_, err := cam.RetrieveResult(time.Millisecond)
	require.ErrorIs(err, genicam.ErrNotGrabbing)

	require.NoError(cam.StartGrabbing(genicam.OneByOne, 3))
	require.ErrorIs(cam.StartGrabbing(genicam.OneByOne, 0), genicam.ErrAlreadyGrabbing)
	require.ErrorIs(cam.NodeMap().SetInt("Width", 16), genicam.ErrAccessDenied)

	for want := uint64(1); want <= 3; want++ {
		r, err := cam.RetrieveResult(time.Second)
		require.NoError(err)
		require.True(r.Succeeded())
		require.Equal(want, r.BlockID())
		require.Len(r.Buffer(), 1024*768)
		r.Release()
		require.Nil(r.Buffer())
	}

	require.Eventually(func() bool { return !cam.IsGrabbing() }, time.Second, time.Millisecond)

	require.NoError(cam.StopGrabbing())
	stats := cam.Stats()
	require.Equal(3, stats.Retrieved)
	require.Equal(3, stats.Released)
	require.Equal(0, stats.Outstanding)
}

func TestCamera_GrabLatestImageOnly(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, nil)
	require.NoError(cam.Open())
	require.NoError(cam.StartGrabbing(genicam.LatestImageOnly, 0))

	require.Eventually(func() bool { return cam.Stats().Produced >= 5 }, time.Second, time.Millisecond)

	r, err := cam.RetrieveResult(time.Second)
	require.NoError(err)
	require.Greater(r.BlockID(), uint64(1))
	r.Release()
	r.Release()

	require.NoError(cam.StopGrabbing())
	stats := cam.Stats()
	require.Equal(1, stats.DoubleReleases)
	require.Positive(stats.Lost)
}

func TestCamera_FailedBuffers(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, nil)
	require.NoError(cam.Open())
	cam.SetFailEvery(2)
	require.NoError(cam.StartGrabbing(genicam.OneByOne, 2))

	r, err := cam.RetrieveResult(time.Second)
	require.NoError(err)
	require.True(r.Succeeded())
	r.Release()

	r, err = cam.RetrieveResult(time.Second)
	require.NoError(err)
	require.False(r.Succeeded())
	require.Equal(ErrorCodeIncomplete, r.ErrorCode())
	require.Nil(r.Buffer())
	r.Release()
}

func TestCamera_RetrieveTimeout(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, nil)
	cam.SetFrameInterval(time.Hour)
	require.NoError(cam.Open())
	require.NoError(cam.StartGrabbing(genicam.OneByOne, 0))

	_, err := cam.RetrieveResult(5 * time.Millisecond)
	require.ErrorIs(err, genicam.ErrTimeout)
}

func TestCamera_Unplug(t *testing.T) {
	require := require.New(t)

	cam := newTestCamera(t, nil)
	require.NoError(cam.Open())
	require.NoError(cam.StartGrabbing(genicam.OneByOne, 0))

	cam.Unplug()

	_, err := cam.RetrieveResult(time.Millisecond)
	require.ErrorIs(err, genicam.ErrDeviceLost)
	_, err = cam.NodeMap().GetInt("Width")
	require.ErrorIs(err, genicam.ErrDeviceLost)
	require.ErrorIs(cam.Open(), genicam.ErrDeviceLost)
	require.NoError(cam.Close())
}

func TestTransport(t *testing.T) {
	require := require.New(t)

	a := New(Config{SerialNumber: "100", Logger: logger.NewPermissiveMockLogger()})
	b := New(Config{SerialNumber: "200", Logger: logger.NewPermissiveMockLogger()})
	tr := NewTransport(a, b)

	infos, err := tr.EnumerateDevices()
	require.NoError(err)
	require.Len(infos, 2)
	require.Equal("100", infos[0].SerialNumber)
	require.Equal("200", infos[1].SerialNumber)

	dev, err := tr.CreateDevice(infos[1])
	require.NoError(err)
	require.Same(b, dev)

	tr.Detach("100")
	infos, err = tr.EnumerateDevices()
	require.NoError(err)
	require.Len(infos, 1)

	_, err = tr.CreateDevice(genicam.DeviceInfo{SerialNumber: "100"})
	require.ErrorIs(err, genicam.ErrDeviceLost)
	require.ErrorIs(a.Open(), genicam.ErrDeviceLost)

	bus := errors.New("bus error")
	tr.FailEnumeration(bus)
	_, err = tr.EnumerateDevices()
	require.ErrorIs(err, bus)
}
