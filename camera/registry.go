package camera

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/logger"
)

// DeviceHandle is an opaque reference to one enumerated device.
//
// A handle is claimed by at most one Session at a time. It becomes invalid when the session
// holding it is closed or the device is lost; an invalid handle cannot be bound again.
type DeviceHandle struct {
	device   genicam.Device
	info     genicam.DeviceInfo
	registry *Registry
	valid    atomic.Bool
}

// Info returns the identification reported during enumeration.
func (h *DeviceHandle) Info() genicam.DeviceInfo { return h.info }

// Valid reports whether the handle can still be used.
func (h *DeviceHandle) Valid() bool { return h.valid.Load() }

func (h *DeviceHandle) invalidate() { h.valid.Store(false) }

// Registry enumerates devices through a transport layer and tracks which session holds each device.
type Registry struct {
	transport genicam.Transport
	logger    logger.Logger
	claims    *xsync.MapOf[string, *Session]
}

// NewRegistry creates a registry over transport. A nil logger selects the package default.
func NewRegistry(transport genicam.Transport, l logger.Logger) *Registry {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Registry{
		transport: transport,
		logger:    l,
		claims:    xsync.NewMapOf[string, *Session](),
	}
}

// Devices lists the devices currently visible to the transport.
func (r *Registry) Devices() ([]genicam.DeviceInfo, error) {
	infos, err := r.transport.EnumerateDevices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate devices: %w", ErrDeviceNotFound, err)
	}

	return infos, nil
}

// Find returns a handle to the first enumerated device when serial is nil, otherwise to the
// first device whose reported serial number parses to *serial.
//
// It fails with ErrDeviceNotFound when enumeration is empty or nothing matches.
func (r *Registry) Find(serial *uint64) (*DeviceHandle, error) {
	infos, err := r.Devices()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: no devices enumerated", ErrDeviceNotFound)
	}

	for _, info := range infos {
		if serial != nil && !serialMatches(info.SerialNumber, *serial) {
			continue
		}

		device, err := r.transport.CreateDevice(info)
		if err != nil {
			return nil, fmt.Errorf("%w: create device %s: %w", ErrDeviceNotFound, info.SerialNumber, err)
		}

		h := &DeviceHandle{device: device, info: info, registry: r}
		h.valid.Store(true)
		r.logger.Debug("device found", "serial", info.SerialNumber, "model", info.ModelName)

		return h, nil
	}

	return nil, fmt.Errorf("%w: serial number %d", ErrDeviceNotFound, *serial)
}

// FindFirst returns a handle to the first enumerated device.
func (r *Registry) FindFirst() (*DeviceHandle, error) {
	return r.Find(nil)
}

// FindBySerial returns a handle to the device with the given serial number.
func (r *Registry) FindBySerial(serial uint64) (*DeviceHandle, error) {
	return r.Find(&serial)
}

// Holder returns the session currently holding the device with the given serial number.
func (r *Registry) Holder(serial string) (*Session, bool) {
	return r.claims.Load(serial)
}

func (r *Registry) claim(h *DeviceHandle, s *Session) error {
	holder, loaded := r.claims.LoadOrStore(h.info.SerialNumber, s)
	if loaded && holder != s {
		return fmt.Errorf("%w: %s", ErrDeviceInUse, h.info.SerialNumber)
	}

	return nil
}

func (r *Registry) release(h *DeviceHandle, s *Session) {
	r.claims.Compute(h.info.SerialNumber, func(holder *Session, loaded bool) (*Session, bool) {
		// only the holder may release its claim
		return holder, !loaded || holder == s
	})
}

// serialMatches compares serial numbers numerically. Unparsable serials never match.
func serialMatches(reported string, want uint64) bool {
	sn, err := strconv.ParseUint(reported, 10, 64)
	return err == nil && sn == want
}
