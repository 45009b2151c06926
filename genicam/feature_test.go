package genicam

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeNames(t *testing.T) {
	require := require.New(t)

	t.Run("tables cover every feature", func(t *testing.T) {
		for f := range featureNames {
			_, ok := SFNC.Lookup(f)
			require.True(ok, "SFNC missing %s", f)
			_, ok = BaslerGigE.Lookup(f)
			require.True(ok, "BaslerGigE missing %s", f)
		}
	})

	t.Run("legacy overrides", func(t *testing.T) {
		node, _ := BaslerGigE.Lookup(Gain)
		require.Equal(Node{"GainRaw", IntegerKind}, node)

		node, _ = BaslerGigE.Lookup(BinningHorizontalMode)
		require.Equal("BinningModeHorizontal", node.Name)

		// SFNC itself is untouched
		node, _ = SFNC.Lookup(Gain)
		require.Equal(Node{"Gain", FloatKind}, node)
	})

	t.Run("reverse lookup", func(t *testing.T) {
		f, ok := BaslerGigE.Feature("GevSCDCT")
		require.True(ok)
		require.Equal(ThroughputCurrent, f)

		_, ok = SFNC.Feature("NoSuchNode")
		require.False(ok)
	})

	t.Run("names", func(t *testing.T) {
		require.Equal("OffsetX", OffsetX.String())
		require.Equal("Feature(999)", Feature(999).String())
		require.Equal("LatestImageOnly", LatestImageOnly.String())
		require.Equal("IEnumeration", EnumerationKind.String())
	})
}

func TestNodeError(t *testing.T) {
	require := require.New(t)

	err := &NodeError{Node: "Width", Op: "set", Value: int64(5000), Err: ErrOutOfRange}
	require.EqualError(err, "set Width=5000: value out of range")
	require.True(errors.Is(err, ErrOutOfRange))

	err = &NodeError{Node: "GevSCDCT", Op: "get", Err: ErrDeviceLost}
	require.EqualError(err, "get GevSCDCT: device lost")
}
