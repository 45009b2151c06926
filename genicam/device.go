package genicam

import "time"

// NodeMap gives typed access to the nodes of an open device.
//
// Enumeration nodes are read and written through GetString and SetString using their symbolic entry names.
type NodeMap interface {
	GetInt(node string) (int64, error)
	SetInt(node string, value int64) error
	GetFloat(node string) (float64, error)
	SetFloat(node string, value float64) error
	GetString(node string) (string, error)
	SetString(node string, value string) error
	GetBool(node string) (bool, error)
	SetBool(node string, value bool) error
}

// DeviceInfo is the identification a transport layer reports for an enumerated device.
type DeviceInfo struct {
	SerialNumber    string
	ModelName       string
	VendorName      string
	UserDefinedName string
	DeviceClass     string
}

// GrabStrategy selects which completed buffers the stream keeps when the consumer falls behind.
type GrabStrategy uint8

const (
	// OneByOne queues every completed buffer in acquisition order, up to the buffer count.
	OneByOne GrabStrategy = iota
	// LatestImageOnly keeps only the most recently completed buffer.
	LatestImageOnly
)

func (s GrabStrategy) String() string {
	switch s {
	case OneByOne:
		return "OneByOne"
	case LatestImageOnly:
		return "LatestImageOnly"
	default:
		return "unknown"
	}
}

// GrabResult is one buffer retrieved from the stream.
//
// The pixel data returned by Buffer is owned by the stream and becomes invalid after Release.
// Every retrieved result must be released exactly once.
type GrabResult interface {
	Succeeded() bool
	ErrorCode() uint32
	ErrorDescription() string
	Buffer() []byte
	Width() int
	Height() int
	PixelFormat() string
	BlockID() uint64
	Timestamp() time.Time
	Release()
}

// Device is one physical camera as exposed by a transport layer.
type Device interface {
	Info() DeviceInfo

	// Open opens the control channel. Opening an already opened device is an error.
	Open() error
	// Close closes the control channel and stops any active stream.
	Close() error
	IsOpen() bool

	// NodeMap returns the node map of the device. Accesses fail with ErrNotOpen while closed.
	NodeMap() NodeMap

	// StartGrabbing starts the stream. maxImages limits the number of buffers produced; 0 means unlimited.
	StartGrabbing(strategy GrabStrategy, maxImages int) error
	StopGrabbing() error
	IsGrabbing() bool

	// RetrieveResult waits up to timeout for a completed buffer.
	// It returns ErrTimeout when nothing completed in time.
	RetrieveResult(timeout time.Duration) (GrabResult, error)
}

// Transport enumerates and instantiates devices.
type Transport interface {
	EnumerateDevices() ([]DeviceInfo, error)
	CreateDevice(info DeviceInfo) (Device, error)
}
