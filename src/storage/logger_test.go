package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2016, 7, 11, 8, 30, 0, 0, time.UTC)
}

func TestLogFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)
	logger.now = fixedClock

	logger.Info("dataset loaded")
	logger.Error("report failed")

	assert.Equal(t,
		"[2016-07-11 08:30:00] INFO: dataset loaded\n[2016-07-11 08:30:00] ERROR: report failed\n",
		buf.String())
}

func TestSubscribe(t *testing.T) {
	logger := NewWriterLogger(&bytes.Buffer{})
	sub := logger.Subscribe()

	logger.Warning("late evening gap")

	select {
	case msg := <-sub:
		assert.Contains(t, msg, "WARNING: late evening gap")
	case <-time.After(time.Second):
		t.Fatal("no log entry delivered")
	}

	logger.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok)

	// 取消订阅后继续写日志不应阻塞或panic
	logger.Info("after unsubscribe")
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "app.log")

	logger, err := NewLogger(name)
	require.NoError(t, err)
	defer logger.Close()
	logger.now = fixedClock

	logger.Info(strings.Repeat("x", 64))
	require.NoError(t, logger.CheckRotate("16"))

	_, err = os.Stat(filepath.Join(dir, "app.20160711083000.log"))
	require.NoError(t, err)

	logger.Info("fresh")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fresh")
	assert.NotContains(t, string(data), "xxxx")
}

func TestRotateRenameFailureKeepsLogging(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "app.log")

	logger, err := NewLogger(name)
	require.NoError(t, err)
	defer logger.Close()
	logger.now = fixedClock

	// 归档名被非空目录占用，改名必然失败
	blocker := filepath.Join(dir, "app.20160711083000.log")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0755))

	logger.Info(strings.Repeat("x", 64))
	assert.Error(t, logger.CheckRotate("16"))

	logger.Info("still writing")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "xxxx")
	assert.Contains(t, string(data), "still writing")
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "app.log")

	logger, err := NewLogger(name)
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, os.Rename(name, name+".1"))
	require.NoError(t, logger.Reopen(""))
	logger.Info("reopened")

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reopened")
}

func TestEval(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), eval("10 * 1024 * 1024"))
	assert.Equal(t, int64(512), eval("512"))
	assert.Equal(t, int64(0), eval(""))
	assert.Equal(t, int64(0), eval("ten"))
}
