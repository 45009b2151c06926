package camera

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Key names one entry of a ConfigSet.
type Key string

// Configuration keys.
const (
	KeyExposureTime    Key = "EXPTIME"
	KeyPixelFormat     Key = "PIXEL_FORMAT"
	KeyOffsetX         Key = "IMAGE_X_OFFSET"
	KeyOffsetY         Key = "IMAGE_Y_OFFSET"
	KeyWidth           Key = "IMAGE_WIDTH"
	KeyHeight          Key = "IMAGE_HEIGHT"
	KeyGain            Key = "GAIN"
	KeyGainAuto        Key = "GAIN_AUTO"
	KeyBias            Key = "BIAS"
	KeyBinningH        Key = "BINNING_H"
	KeyBinningV        Key = "BINNING_V"
	KeyBinningMode     Key = "BINNING_MODE"
	KeyFrameRate       Key = "FRAME_RATE"
	KeyAcquisitionMode Key = "ACQUISITION_MODE"
	KeyReverseX        Key = "REVERSE_X"
	KeyReverseY        Key = "REVERSE_Y"
	KeyPacketSize      Key = "PACKET_SIZE"
)

// ConfigSet is a partial camera configuration. Nil fields are left untouched by Pipeline.Apply.
//
// Exposure time is in microseconds and frame rate in frames per second; a frame rate of 0
// disables frame-rate forcing. Gain and bias are in device units.
type ConfigSet struct {
	ExposureTime    *float64 `yaml:"EXPTIME,omitempty" json:"EXPTIME,omitempty"`
	PixelFormat     *string  `yaml:"PIXEL_FORMAT,omitempty" json:"PIXEL_FORMAT,omitempty"`
	OffsetX         *int64   `yaml:"IMAGE_X_OFFSET,omitempty" json:"IMAGE_X_OFFSET,omitempty"`
	OffsetY         *int64   `yaml:"IMAGE_Y_OFFSET,omitempty" json:"IMAGE_Y_OFFSET,omitempty"`
	Width           *int64   `yaml:"IMAGE_WIDTH,omitempty" json:"IMAGE_WIDTH,omitempty"`
	Height          *int64   `yaml:"IMAGE_HEIGHT,omitempty" json:"IMAGE_HEIGHT,omitempty"`
	Gain            *float64 `yaml:"GAIN,omitempty" json:"GAIN,omitempty"`
	GainAuto        *string  `yaml:"GAIN_AUTO,omitempty" json:"GAIN_AUTO,omitempty"`
	Bias            *float64 `yaml:"BIAS,omitempty" json:"BIAS,omitempty"`
	BinningH        *int64   `yaml:"BINNING_H,omitempty" json:"BINNING_H,omitempty"`
	BinningV        *int64   `yaml:"BINNING_V,omitempty" json:"BINNING_V,omitempty"`
	BinningMode     *string  `yaml:"BINNING_MODE,omitempty" json:"BINNING_MODE,omitempty"`
	FrameRate       *float64 `yaml:"FRAME_RATE,omitempty" json:"FRAME_RATE,omitempty"`
	AcquisitionMode *string  `yaml:"ACQUISITION_MODE,omitempty" json:"ACQUISITION_MODE,omitempty"`
	ReverseX        *bool    `yaml:"REVERSE_X,omitempty" json:"REVERSE_X,omitempty"`
	ReverseY        *bool    `yaml:"REVERSE_Y,omitempty" json:"REVERSE_Y,omitempty"`
	PacketSize      *int64   `yaml:"PACKET_SIZE,omitempty" json:"PACKET_SIZE,omitempty"`
}

// Keys returns the keys present in cs in the order Pipeline.Apply processes them.
func (cs ConfigSet) Keys() []Key {
	present := []struct {
		key Key
		set bool
	}{
		{KeyExposureTime, cs.ExposureTime != nil},
		{KeyPixelFormat, cs.PixelFormat != nil},
		{KeyBinningH, cs.BinningH != nil},
		{KeyBinningV, cs.BinningV != nil},
		{KeyOffsetX, cs.OffsetX != nil},
		{KeyOffsetY, cs.OffsetY != nil},
		{KeyWidth, cs.Width != nil},
		{KeyHeight, cs.Height != nil},
		{KeyBinningMode, cs.BinningMode != nil},
		{KeyGain, cs.Gain != nil},
		{KeyGainAuto, cs.GainAuto != nil},
		{KeyBias, cs.Bias != nil},
		{KeyFrameRate, cs.FrameRate != nil},
		{KeyAcquisitionMode, cs.AcquisitionMode != nil},
		{KeyReverseX, cs.ReverseX != nil},
		{KeyReverseY, cs.ReverseY != nil},
		{KeyPacketSize, cs.PacketSize != nil},
	}

	keys := make([]Key, 0, len(present))
	for _, p := range present {
		if p.set {
			keys = append(keys, p.key)
		}
	}

	return keys
}

// hasROI reports whether all four region-of-interest keys are present.
func (cs ConfigSet) hasROI() bool {
	return cs.OffsetX != nil && cs.OffsetY != nil && cs.Width != nil && cs.Height != nil
}

// ParseConfigSet builds a ConfigSet from string values keyed by configuration key name.
// Key names are case-insensitive. Unknown keys and malformed values are reported together.
func ParseConfigSet(values map[string]string) (ConfigSet, error) {
	var (
		cs   ConfigSet
		errs []error
	)

	for name, raw := range values {
		raw = strings.TrimSpace(raw)

		var err error
		switch key := Key(strings.ToUpper(strings.TrimSpace(name))); key {
		case KeyExposureTime:
			cs.ExposureTime, err = parseFloat(raw)
		case KeyPixelFormat:
			cs.PixelFormat = &raw
		case KeyOffsetX:
			cs.OffsetX, err = parseInt(raw)
		case KeyOffsetY:
			cs.OffsetY, err = parseInt(raw)
		case KeyWidth:
			cs.Width, err = parseInt(raw)
		case KeyHeight:
			cs.Height, err = parseInt(raw)
		case KeyGain:
			cs.Gain, err = parseFloat(raw)
		case KeyGainAuto:
			cs.GainAuto = &raw
		case KeyBias:
			cs.Bias, err = parseFloat(raw)
		case KeyBinningH:
			cs.BinningH, err = parseInt(raw)
		case KeyBinningV:
			cs.BinningV, err = parseInt(raw)
		case KeyBinningMode:
			cs.BinningMode = &raw
		case KeyFrameRate:
			cs.FrameRate, err = parseFloat(raw)
		case KeyAcquisitionMode:
			cs.AcquisitionMode = &raw
		case KeyReverseX:
			cs.ReverseX, err = parseBool(raw)
		case KeyReverseY:
			cs.ReverseY, err = parseBool(raw)
		case KeyPacketSize:
			cs.PacketSize, err = parseInt(raw)
		default:
			err = errors.New("unknown key")
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, raw, err))
		}
	}

	if len(errs) > 0 {
		return ConfigSet{}, fmt.Errorf("%w: %w", ErrInvalidArgument, errors.Join(errs...))
	}

	return cs, nil
}

// LoadConfigSet reads a ConfigSet from a YAML or JSON file.
func LoadConfigSet(path string) (ConfigSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConfigSet{}, fmt.Errorf("load config set: %w", err)
	}

	var cs ConfigSet
	if err := yaml.Unmarshal(data, &cs); err != nil {
		return ConfigSet{}, fmt.Errorf("load config set %s: %w", path, err)
	}

	return cs, nil
}

func parseFloat(s string) (*float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

func parseInt(s string) (*int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

func parseBool(s string) (*bool, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}

	return &v, nil
}
