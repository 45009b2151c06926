package camera

import (
	"fmt"

	"github.com/sterex-dev/detector-interfaces/genicam"
)

// ROI is a region of interest in binned sensor pixels.
type ROI struct {
	Width   int64
	Height  int64
	OffsetX int64
	OffsetY int64
}

// DeviceStatus is a snapshot of the device state read in one session scope.
type DeviceStatus struct {
	ROI                ROI
	BinningH           int64
	BinningV           int64
	PixelFormat        string
	ExposureTime       float64 // µs
	ResultingFrameRate float64
	PayloadSize        int64
	Temperature        float64 // °C
	TemperatureState   string
}

// ReadDeviceStatus reads the current geometry, frame rate, payload size and temperature.
// The temperature is read after selecting the model's temperature sensor.
func ReadDeviceStatus(session *Session) (DeviceStatus, error) {
	model := session.Model()
	if model == nil {
		return DeviceStatus{}, fmt.Errorf("device status: %w", ErrNoDeviceBound)
	}

	var st DeviceStatus
	err := session.Scope(func(nodes genicam.NodeMap) error {
		names := model.Names()
		if node, ok := names.Lookup(genicam.TemperatureSelector); ok {
			if err := nodes.SetString(node.Name, model.TemperatureSelector()); err != nil {
				if isDeviceLost(err) {
					return err
				}

				return registerError("", genicam.TemperatureSelector, err)
			}
		}

		r := registerReader{nodes: nodes, names: names}
		st = DeviceStatus{
			ROI: ROI{
				Width:   int64(r.read(genicam.Width)),
				Height:  int64(r.read(genicam.Height)),
				OffsetX: int64(r.read(genicam.OffsetX)),
				OffsetY: int64(r.read(genicam.OffsetY)),
			},
			BinningH:           int64(r.read(genicam.BinningHorizontal)),
			BinningV:           int64(r.read(genicam.BinningVertical)),
			PixelFormat:        r.readString(genicam.PixelFormat),
			ExposureTime:       r.read(genicam.ExposureTime),
			ResultingFrameRate: r.read(genicam.ResultingFrameRate),
			PayloadSize:        int64(r.read(genicam.PayloadSize)),
			Temperature:        r.read(genicam.Temperature),
			TemperatureState:   r.readString(genicam.TemperatureState),
		}

		return r.err
	})
	if err != nil {
		return DeviceStatus{}, fmt.Errorf("device status: %w", err)
	}

	return st, nil
}
