package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(LogOption{Format: "json", LogDir: dir, Level: "debug"}))

	Debugf("debug line %d", 1)
	Infof("info line %s", "x")
	Warnf("warn line")
	Errorf("error line: %v", os.ErrNotExist)
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "sender.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "info line x")
	assert.Contains(t, string(data), "debug line 1", "debug 级别应放行 debug 日志")
}

func TestInitLogger_LevelFilter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(LogOption{Format: "console", LogDir: dir, Level: "warn"}))

	Infof("should be filtered")
	Warnf("should appear")
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "sender.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should be filtered")
	assert.Contains(t, string(data), "should appear")
}
