package camera

import (
	"strings"
	"time"

	"github.com/sterex-dev/detector-interfaces/genicam"
)

// Model captures what differs between camera models: node naming and timing constants
// that the device does not publish.
type Model interface {
	Name() string
	// Names returns the node naming convention of the model's firmware.
	Names() genicam.NodeNames
	// ExposureStartDelay is the fixed delay between trigger and exposure start.
	ExposureStartDelay() time.Duration
	// TimeUnit is the duration of one unit of the device's timing registers.
	TimeUnit() time.Duration
	// TemperatureSelector is the sensor selected before reading the device temperature.
	TemperatureSelector() string
}

// BaslerAce2040GM is the Basler ace acA2040-35gm GigE camera.
type BaslerAce2040GM struct{}

func (BaslerAce2040GM) Name() string { return "acA2040-35gm" }
func (BaslerAce2040GM) Names() genicam.NodeNames { return genicam.BaslerGigE }
func (BaslerAce2040GM) ExposureStartDelay() time.Duration { return 35 * time.Microsecond }
func (BaslerAce2040GM) TimeUnit() time.Duration { return time.Microsecond }
func (BaslerAce2040GM) TemperatureSelector() string { return "Coreboard" }

// GenericSFNC is any camera following the Standard Features Naming Convention.
// It has no known exposure start delay.
type GenericSFNC struct{}

func (GenericSFNC) Name() string { return "generic-sfnc" }
func (GenericSFNC) Names() genicam.NodeNames { return genicam.SFNC }
func (GenericSFNC) ExposureStartDelay() time.Duration { return 0 }
func (GenericSFNC) TimeUnit() time.Duration { return time.Microsecond }
func (GenericSFNC) TemperatureSelector() string { return "Sensor" }

// ModelFor selects the model matching the device info, falling back to GenericSFNC.
func ModelFor(info genicam.DeviceInfo) Model {
	if strings.HasPrefix(info.ModelName, BaslerAce2040GM{}.Name()) {
		return BaslerAce2040GM{}
	}

	return GenericSFNC{}
}
