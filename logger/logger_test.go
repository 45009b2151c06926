package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "debug", want: DebugLevel},
		{in: "", want: InfoLevel},
		{in: "INFO", want: InfoLevel},
		{in: " warning ", want: WarnLevel},
		{in: "error", want: ErrorLevel},
		{in: "fatal", want: FatalLevel},
		{in: "verbose", want: InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSlogLogger(t *testing.T) {
	require := require.New(t)
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)

	t.Run("level filtering", func(t *testing.T) {
		buf.Reset()
		l.Debug("hidden")
		require.Zero(buf.Len())

		l.Info("session opened", "serial", "21234567")
		line := strings.TrimSpace(buf.String())

		var rec map[string]any
		require.NoError(json.Unmarshal([]byte(line), &rec))
		require.Equal("session opened", rec["msg"])
		require.Equal("21234567", rec["serial"])
		require.Contains(rec, "ts")
	})

	t.Run("child shares level", func(t *testing.T) {
		buf.Reset()
		child := l.With("run_id", "abc")
		l.SetLevel(DebugLevel)
		require.Equal(DebugLevel, child.Level())

		child.Debug("attempt")
		require.Contains(buf.String(), `"run_id":"abc"`)

		l.SetLevel(ErrorLevel)
		buf.Reset()
		child.Warn("dropped")
		require.Zero(buf.Len())
		require.Equal(ErrorLevel, l.Level())
	})
}

func TestSetLogger(t *testing.T) {
	require := require.New(t)

	orig := GetLogger()
	defer SetLogger(orig)

	mockLogger := NewPermissiveMockLogger()
	SetLogger(mockLogger)
	SetLogger(nil)
	require.Same(mockLogger, GetLogger())

	Info("through default", "k", 1)
	mockLogger.AssertCalled(t, "Info", "through default", []any{"k", 1})
}
