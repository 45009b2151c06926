package genicam

import "strconv"

// Feature identifies a camera capability independently of the node name a particular
// device model publishes for it.
type Feature uint16

// Features consumed by the acquisition controller.
const (
	AcquisitionMode Feature = iota + 1
	OffsetX
	OffsetY
	Width
	Height
	WidthMax
	HeightMax
	SensorWidth
	SensorHeight
	BandwidthAssigned
	BandwidthReserve
	BinningHorizontal
	BinningHorizontalMode
	BinningVertical
	BinningVerticalMode
	BlackLevel
	DeviceUserID
	ExposureTime
	AcquisitionFrameRate
	AcquisitionFrameRateEnable
	ResultingFrameRate
	Gain
	GainAuto
	ReverseX
	ReverseY
	InterPacketDelay
	MaxNumBuffer
	PacketSize
	PayloadSize
	PixelFormat
	ReadoutTime
	TemperatureSelector
	Temperature
	TemperatureState
	ThroughputCurrent
	ThroughputMax
	TransmissionStartDelay
)

var featureNames = map[Feature]string{
	AcquisitionMode:            "AcquisitionMode",
	OffsetX:                    "OffsetX",
	OffsetY:                    "OffsetY",
	Width:                      "Width",
	Height:                     "Height",
	WidthMax:                   "WidthMax",
	HeightMax:                  "HeightMax",
	SensorWidth:                "SensorWidth",
	SensorHeight:               "SensorHeight",
	BandwidthAssigned:          "BandwidthAssigned",
	BandwidthReserve:           "BandwidthReserve",
	BinningHorizontal:          "BinningHorizontal",
	BinningHorizontalMode:      "BinningHorizontalMode",
	BinningVertical:            "BinningVertical",
	BinningVerticalMode:        "BinningVerticalMode",
	BlackLevel:                 "BlackLevel",
	DeviceUserID:               "DeviceUserID",
	ExposureTime:               "ExposureTime",
	AcquisitionFrameRate:       "AcquisitionFrameRate",
	AcquisitionFrameRateEnable: "AcquisitionFrameRateEnable",
	ResultingFrameRate:         "ResultingFrameRate",
	Gain:                       "Gain",
	GainAuto:                   "GainAuto",
	ReverseX:                   "ReverseX",
	ReverseY:                   "ReverseY",
	InterPacketDelay:           "InterPacketDelay",
	MaxNumBuffer:               "MaxNumBuffer",
	PacketSize:                 "PacketSize",
	PayloadSize:                "PayloadSize",
	PixelFormat:                "PixelFormat",
	ReadoutTime:                "ReadoutTime",
	TemperatureSelector:        "TemperatureSelector",
	Temperature:                "Temperature",
	TemperatureState:           "TemperatureState",
	ThroughputCurrent:          "ThroughputCurrent",
	ThroughputMax:              "ThroughputMax",
	TransmissionStartDelay:     "TransmissionStartDelay",
}

// String returns the logical feature name.
func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}

	return "Feature(" + strconv.Itoa(int(f)) + ")"
}

// Kind is the GenICam interface type of a node.
type Kind uint8

const (
	IntegerKind Kind = iota
	FloatKind
	EnumerationKind
	BooleanKind
	StringKind
)

func (k Kind) String() string {
	switch k {
	case IntegerKind:
		return "IInteger"
	case FloatKind:
		return "IFloat"
	case EnumerationKind:
		return "IEnumeration"
	case BooleanKind:
		return "IBoolean"
	case StringKind:
		return "IString"
	default:
		return "unknown"
	}
}

// Node describes how a device model publishes a feature.
type Node struct {
	Name string
	Kind Kind
}

// NodeNames maps features to the nodes of one naming convention.
type NodeNames map[Feature]Node

// Lookup returns the node published for f.
func (n NodeNames) Lookup(f Feature) (Node, bool) {
	node, ok := n[f]
	return node, ok
}

// Feature returns the feature published under the node name, if any.
func (n NodeNames) Feature(name string) (Feature, bool) {
	for f, node := range n {
		if node.Name == name {
			return f, true
		}
	}

	return 0, false
}

// With returns a copy of n with the given overrides applied.
func (n NodeNames) With(overrides NodeNames) NodeNames {
	out := make(NodeNames, len(n)+len(overrides))
	for f, node := range n {
		out[f] = node
	}
	for f, node := range overrides {
		out[f] = node
	}

	return out
}

// SFNC is the Standard Features Naming Convention table.
var SFNC = NodeNames{
	AcquisitionMode:            {"AcquisitionMode", EnumerationKind},
	OffsetX:                    {"OffsetX", IntegerKind},
	OffsetY:                    {"OffsetY", IntegerKind},
	Width:                      {"Width", IntegerKind},
	Height:                     {"Height", IntegerKind},
	WidthMax:                   {"WidthMax", IntegerKind},
	HeightMax:                  {"HeightMax", IntegerKind},
	SensorWidth:                {"SensorWidth", IntegerKind},
	SensorHeight:               {"SensorHeight", IntegerKind},
	BandwidthAssigned:          {"DeviceLinkThroughputLimit", IntegerKind},
	BandwidthReserve:           {"DeviceLinkBandwidthReserve", IntegerKind},
	BinningHorizontal:          {"BinningHorizontal", IntegerKind},
	BinningHorizontalMode:      {"BinningHorizontalMode", EnumerationKind},
	BinningVertical:            {"BinningVertical", IntegerKind},
	BinningVerticalMode:        {"BinningVerticalMode", EnumerationKind},
	BlackLevel:                 {"BlackLevel", FloatKind},
	DeviceUserID:               {"DeviceUserID", StringKind},
	ExposureTime:               {"ExposureTime", FloatKind},
	AcquisitionFrameRate:       {"AcquisitionFrameRate", FloatKind},
	AcquisitionFrameRateEnable: {"AcquisitionFrameRateEnable", BooleanKind},
	ResultingFrameRate:         {"ResultingFrameRate", FloatKind},
	Gain:                       {"Gain", FloatKind},
	GainAuto:                   {"GainAuto", EnumerationKind},
	ReverseX:                   {"ReverseX", BooleanKind},
	ReverseY:                   {"ReverseY", BooleanKind},
	InterPacketDelay:           {"GevSCPD", IntegerKind},
	MaxNumBuffer:               {"MaxNumBuffer", IntegerKind},
	PacketSize:                 {"GevSCPSPacketSize", IntegerKind},
	PayloadSize:                {"PayloadSize", IntegerKind},
	PixelFormat:                {"PixelFormat", EnumerationKind},
	ReadoutTime:                {"SensorReadoutTime", FloatKind},
	TemperatureSelector:        {"DeviceTemperatureSelector", EnumerationKind},
	Temperature:                {"DeviceTemperature", FloatKind},
	TemperatureState:           {"DeviceTemperatureStatus", EnumerationKind},
	ThroughputCurrent:          {"DeviceLinkCurrentThroughput", IntegerKind},
	ThroughputMax:              {"DeviceLinkSpeed", IntegerKind},
	TransmissionStartDelay:     {"GevSCFTD", IntegerKind},
}

// BaslerGigE is the legacy naming used by Basler ace GigE firmware,
// with raw integer gain and black level and absolute-valued timing nodes.
var BaslerGigE = SFNC.With(NodeNames{
	BandwidthAssigned:      {"GevSCBWA", IntegerKind},
	BandwidthReserve:       {"GevSCBWR", IntegerKind},
	BinningHorizontalMode:  {"BinningModeHorizontal", EnumerationKind},
	BinningVerticalMode:    {"BinningModeVertical", EnumerationKind},
	BlackLevel:             {"BlackLevelRaw", IntegerKind},
	ExposureTime:           {"ExposureTimeAbs", FloatKind},
	AcquisitionFrameRate:   {"AcquisitionFrameRateAbs", FloatKind},
	ResultingFrameRate:     {"ResultingFrameRateAbs", FloatKind},
	Gain:                   {"GainRaw", IntegerKind},
	ReadoutTime:            {"ReadoutTimeAbs", FloatKind},
	TemperatureSelector:    {"TemperatureSelector", EnumerationKind},
	Temperature:            {"TemperatureAbs", FloatKind},
	TemperatureState:       {"TemperatureState", EnumerationKind},
	ThroughputCurrent:      {"GevSCDCT", IntegerKind},
	ThroughputMax:          {"GevSCDMT", IntegerKind},
	TransmissionStartDelay: {"GevSCFTD", IntegerKind},
})
