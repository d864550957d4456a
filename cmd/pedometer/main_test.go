package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/pedometer/background"
	"github.com/taigrr/pedometer/config"
	"github.com/taigrr/pedometer/notify"
	"github.com/taigrr/pedometer/sensor"
)

func TestPrintRegistrations(t *testing.T) {
	var buf bytes.Buffer
	printRegistrations(&buf, nil)
	assert.Equal(t, "no background tasks registered\n", buf.String())

	buf.Reset()
	printRegistrations(&buf, []background.Registration{{
		Name:         "step-count",
		Interval:     time.Minute,
		StartOnBoot:  true,
		RegisteredAt: time.Now(),
		Runs:         4,
		Failures:     1,
	}})
	out := buf.String()
	assert.Contains(t, out, "step-count")
	assert.Contains(t, out, "1m0s")
	assert.Contains(t, out, "start on boot  true")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "(1 failed)")
}

func TestNewSourceSimulator(t *testing.T) {
	cfg := &config.Config{
		Sensor:    config.SensorConfig{Source: "simulator", UpdateInterval: 50 * time.Millisecond},
		Simulator: config.SimulatorConfig{Cadence: time.Second},
	}
	src, err := newSource(cfg)
	require.NoError(t, err)
	sim, ok := src.(*sensor.Simulator)
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, sim.UpdateInterval())
}

func TestNewPresenter(t *testing.T) {
	p, term := newPresenter(config.NotificationsConfig{Enabled: false}, true)
	assert.Nil(t, p)
	assert.Nil(t, term)

	p, term = newPresenter(config.NotificationsConfig{Enabled: true, Backend: "terminal"}, false)
	require.NotNil(t, term)
	assert.Same(t, term, p)
	assert.Empty(t, statusLine(term)())

	p, term = newPresenter(config.NotificationsConfig{Enabled: true, Backend: "desktop"}, false)
	assert.IsType(t, &notify.Desktop{}, p)
	assert.Nil(t, term)
	assert.Nil(t, statusLine(term))
}

func TestSetupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "test").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"component":"test"`)
}

func TestLogOutputHeadlessDefaultsToStderr(t *testing.T) {
	w, closeFn, err := logOutput(config.LoggingConfig{}, true)
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.NotNil(t, w)

	t.Setenv("HOME", t.TempDir())
	_, closeFn, err = logOutput(config.LoggingConfig{}, false)
	require.NoError(t, err)
	assert.NoError(t, closeFn())
}

func TestTasksCommandsUseRegistry(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.db")
	cfgFile := filepath.Join(dir, "pedometer.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("background:\n  db_path: "+db+"\n"), 0o644))

	old := configPath
	configPath = cfgFile
	defer func() { configPath = old }()

	reg, err := background.OpenRegistry(db)
	require.NoError(t, err)
	_, err = reg.PutIfAbsent(context.Background(), background.Registration{Name: "step-count", Interval: time.Minute})
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	ctx := context.Background()
	var buf bytes.Buffer
	require.NoError(t, listTasks(ctx, &buf))
	assert.Contains(t, buf.String(), "step-count")

	buf.Reset()
	require.NoError(t, unregisterTask(ctx, &buf, "step-count"))
	assert.Contains(t, buf.String(), "unregistered step-count")
	assert.ErrorContains(t, unregisterTask(ctx, &buf, "step-count"), "not registered")

	buf.Reset()
	require.NoError(t, listTasks(ctx, &buf))
	assert.Equal(t, "no background tasks registered\n", buf.String())
}

func TestShippedPresentersGrantPermission(t *testing.T) {
	for _, backend := range []string{"terminal", "desktop"} {
		p, _ := newPresenter(config.NotificationsConfig{Enabled: true, Backend: backend, DesktopInterval: time.Second}, true)
		perm, err := p.RequestPermission(context.Background())
		require.NoError(t, err)
		assert.Equal(t, notify.PermissionGranted, perm, backend)
	}
}
