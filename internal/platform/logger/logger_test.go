package logger

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/shelf/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Levels(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	testCases := []struct {
		name      string
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{name: "debug", level: "debug", debugSeen: true, infoSeen: true},
		{name: "info", level: "info", debugSeen: false, infoSeen: true},
		{name: "uppercase", level: "WARN", debugSeen: false, infoSeen: false},
		{name: "invalid falls back to info", level: "verbose", debugSeen: false, infoSeen: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := &TestLogBuffer{}
			l, err := setup(buf, config.ServerConfig{LogLevel: tc.level})
			require.NoError(t, err)
			require.NotNil(t, l)

			l.Debug("debug message")
			l.Info("info message")

			assert.Equal(t, tc.debugSeen, strings.Contains(buf.String(), "debug message"))
			assert.Equal(t, tc.infoSeen, strings.Contains(buf.String(), "info message"))
			assert.Same(t, l, slog.Default())
		})
	}
}

func TestSetup_WritesJSON(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	buf := &TestLogBuffer{}
	l, err := setup(buf, config.ServerConfig{LogLevel: "info"})
	require.NoError(t, err)

	l.Info("queue started", "pending", 3)

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "queue started", entries[0]["msg"])
	assert.Equal(t, float64(3), entries[0]["pending"])
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	buf, l := NewTestLogger(t)

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("scoped")
	AssertLogContains(t, buf, "scoped")

	assert.Same(t, slog.Default(), FromContext(context.Background()))
	//nolint:staticcheck // nil context is tolerated on purpose
	assert.Same(t, slog.Default(), FromContext(nil))
}
