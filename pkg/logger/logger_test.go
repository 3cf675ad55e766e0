package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equity-screener/pkg/types"
)

// Test_New tests logger construction
func Test_New(t *testing.T) {
	dir := t.TempDir()
	l, err := New(types.LogConfig{Level: "DEBUG", FilePath: dir, MaxSize: 1})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l.Info("hello", zap.String("symbol", "TCS"))
	_ = l.Sync()

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"symbol":"TCS"`)

	_, err = New(types.LogConfig{Level: "verbose"})
	assert.Error(t, err)

	l, err = New(types.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
}

// Test_Init tests global logger replacement
func Test_Init(t *testing.T) {
	restore, err := Init(types.LogConfig{Level: "error"})
	require.NoError(t, err)
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))
	restore()
	assert.NotNil(t, zap.L())
}
