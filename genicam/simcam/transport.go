package simcam

import (
	"fmt"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sterex-dev/detector-interfaces/genicam"
)

// Transport is an in-memory transport layer serving simulated cameras.
type Transport struct {
	cams *xsync.MapOf[string, *Camera]

	mu      sync.Mutex
	order   []string
	enumErr error
}

var _ genicam.Transport = (*Transport)(nil)

// NewTransport creates a transport with the given cameras attached, in enumeration order.
func NewTransport(cams ...*Camera) *Transport {
	t := &Transport{cams: xsync.NewMapOf[string, *Camera]()}
	for _, cam := range cams {
		t.Attach(cam)
	}

	return t
}

// Attach plugs a camera into the transport. A camera with the same serial number is replaced.
func (t *Transport) Attach(cam *Camera) {
	serial := cam.Info().SerialNumber

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, loaded := t.cams.LoadAndStore(serial, cam); !loaded {
		t.order = append(t.order, serial)
	}
}

// Detach unplugs the camera with the given serial number.
func (t *Transport) Detach(serial string) {
	t.mu.Lock()
	cam, ok := t.cams.LoadAndDelete(serial)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == serial })
	t.mu.Unlock()

	if ok {
		cam.Unplug()
	}
}

// Camera returns the attached camera with the given serial number.
func (t *Transport) Camera(serial string) (*Camera, bool) {
	return t.cams.Load(serial)
}

// FailEnumeration makes EnumerateDevices fail with err. A nil err removes the fault.
func (t *Transport) FailEnumeration(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enumErr = err
}

// EnumerateDevices lists attached cameras in attach order.
func (t *Transport) EnumerateDevices() ([]genicam.DeviceInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enumErr != nil {
		return nil, t.enumErr
	}

	infos := make([]genicam.DeviceInfo, 0, len(t.order))
	for _, serial := range t.order {
		if cam, ok := t.cams.Load(serial); ok {
			infos = append(infos, cam.Info())
		}
	}

	return infos, nil
}

// CreateDevice returns the attached camera matching info.SerialNumber.
func (t *Transport) CreateDevice(info genicam.DeviceInfo) (genicam.Device, error) {
	cam, ok := t.cams.Load(info.SerialNumber)
	if !ok {
		return nil, fmt.Errorf("create device %s: %w", info.SerialNumber, genicam.ErrDeviceLost)
	}

	return cam, nil
}
