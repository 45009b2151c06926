package camera

import (
	"errors"
	"testing"

	"github.com/sterex-dev/detector-interfaces/genicam"
	"github.com/sterex-dev/detector-interfaces/genicam/simcam"
	"github.com/sterex-dev/detector-interfaces/logger"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Find(t *testing.T) {
	transport := simcam.NewTransport(newBasler("0021000001"), newBasler("21000002"), newBasler("SN-X"))
	registry := NewRegistry(transport, logger.NewPermissiveMockLogger())

	t.Run("first", func(t *testing.T) {
		h, err := registry.FindFirst()
		require.NoError(t, err)
		require.Equal(t, "0021000001", h.Info().SerialNumber)
		require.True(t, h.Valid())
	})

	t.Run("numeric serial match", func(t *testing.T) {
		h, err := registry.FindBySerial(testSerial)
		require.NoError(t, err)
		require.Equal(t, "0021000001", h.Info().SerialNumber)

		h, err = registry.FindBySerial(21000002)
		require.NoError(t, err)
		require.Equal(t, "21000002", h.Info().SerialNumber)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := registry.FindBySerial(42)
		require.ErrorIs(t, err, ErrDeviceNotFound)
	})
}

func TestRegistry_FindEmpty(t *testing.T) {
	registry := NewRegistry(simcam.NewTransport(), nil)

	_, err := registry.Find(nil)
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestRegistry_EnumerationFailure(t *testing.T) {
	transport := simcam.NewTransport(newBasler("1"))
	busErr := errors.New("bus reset")
	transport.FailEnumeration(busErr)

	registry := NewRegistry(transport, nil)
	_, err := registry.FindFirst()
	require.ErrorIs(t, err, ErrDeviceNotFound)
	require.ErrorIs(t, err, busErr)
}

func TestRegistry_ExclusiveClaim(t *testing.T) {
	require := require.New(t)

	registry := NewRegistry(simcam.NewTransport(newBasler("7")), nil)
	cfg, err := NewConfig(WithLogger(logger.NewPermissiveMockLogger()))
	require.NoError(err)

	first := NewSession(cfg)
	second := NewSession(cfg)

	h1, err := registry.FindFirst()
	require.NoError(err)
	require.NoError(first.Bind(h1))
	require.NoError(first.Bind(h1))

	holder, ok := registry.Holder("7")
	require.True(ok)
	require.Same(first, holder)

	h2, err := registry.FindFirst()
	require.NoError(err)
	require.ErrorIs(second.Bind(h2), ErrDeviceInUse)

	// closing releases the claim and invalidates the handle
	require.NoError(first.Close())
	require.False(h1.Valid())
	require.ErrorIs(first.Bind(h1), ErrHandleInvalid)
	_, ok = registry.Holder("7")
	require.False(ok)

	require.NoError(second.Bind(h2))
	require.NoError(second.Close())
}

func TestRegistry_RebindKeepsClaim(t *testing.T) {
	require := require.New(t)

	registry := NewRegistry(simcam.NewTransport(newBasler("7")), nil)
	cfg, err := NewConfig(WithLogger(logger.NewPermissiveMockLogger()))
	require.NoError(err)

	first := NewSession(cfg)
	second := NewSession(cfg)
	t.Cleanup(func() {
		_ = first.Close()
		_ = second.Close()
	})

	old, err := registry.FindFirst()
	require.NoError(err)
	require.NoError(first.Bind(old))
	require.NoError(first.Connect())

	// a fresh handle to the same device replaces the old one
	fresh, err := registry.FindFirst()
	require.NoError(err)
	require.NoError(first.Bind(fresh))
	require.False(old.Valid())
	require.True(fresh.Valid())
	require.Same(fresh, first.Handle())

	holder, ok := registry.Holder("7")
	require.True(ok)
	require.Same(first, holder)

	other, err := registry.FindFirst()
	require.NoError(err)
	require.ErrorIs(second.Bind(other), ErrDeviceInUse)

	require.NoError(first.Close())
	require.NoError(second.Bind(other))
}

func TestSerialMatches(t *testing.T) {
	tests := []struct {
		reported string
		want     uint64
		match    bool
	}{
		{"21000001", 21000001, true},
		{"0021000001", 21000001, true},
		{"21000001", 21000002, false},
		{"acA-01", 1, false},
		{"", 0, false},
		{"-1", 0, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.match, serialMatches(tt.reported, tt.want), "serial %q", tt.reported)
	}
}

func TestModelFor(t *testing.T) {
	require.IsType(t, BaslerAce2040GM{}, ModelFor(genicam.DeviceInfo{ModelName: "acA2040-35gm"}))
	require.IsType(t, GenericSFNC{}, ModelFor(genicam.DeviceInfo{ModelName: "Blackfly S BFS-U3-51S5M"}))
}
