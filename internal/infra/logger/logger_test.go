package logger

import (
	"testing"

	"github.com/petermyo/DecentralizeFileShare/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	l, err := New(config.LogConfig{Level: "warn", Encoding: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestInitReplacesGlobal(t *testing.T) {
	l, err := Init(config.LogConfig{Development: true, Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	assert.Same(t, l, L())
	assert.NoError(t, Sync())
}
