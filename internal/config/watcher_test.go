package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestWatcher_InitialLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	writeConfigFile(t, path, sampleConfig)

	w, err := NewWatcher(path, nil, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	cfg := w.LastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	writeConfigFile(t, path, sampleConfig)

	var reloads atomic.Int32
	w, err := NewWatcher(path, func(*GatewayConfig) {
		reloads.Add(1)
	}, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	updated := sampleConfig + "\n# touched\n"
	writeConfigFile(t, path, updated)

	assert.Eventually(t, func() bool {
		return reloads.Load() >= 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_InvalidReloadKeepsLastConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	writeConfigFile(t, path, sampleConfig)

	var reloads atomic.Int32
	w, err := NewWatcher(path, func(*GatewayConfig) {
		reloads.Add(1)
	}, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	// A config without services fails validation and must not replace
	// the last good one.
	writeConfigFile(t, path, "server:\n  port: 1234\n")

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), reloads.Load())

	cfg := w.LastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	require.Error(t, w.Start(context.Background()))
}
