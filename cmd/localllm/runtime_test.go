package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"localllm/internal/config"
	"localllm/internal/runtime"
	"localllm/internal/runtime/llamacpp"
	"localllm/internal/runtime/llamaserver"
)

func TestNewRuntimeSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.ModelsDir = ""
	rt, err := newRuntime(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, llamaserver.Name, rt.Name())

	cfg.Runtime = llamacpp.Name
	rt, err = newRuntime(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, llamacpp.Name, rt.Name())

	cfg.Runtime = "onnx"
	_, err = newRuntime(cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestNewRuntimeToleratesMissingModelsDir(t *testing.T) {
	cfg := config.Default()
	cfg.ModelsDir = t.TempDir() + "/missing"
	_, err := newRuntime(cfg, zerolog.Nop())
	require.NoError(t, err)
}

func TestNewClientForcesDevice(t *testing.T) {
	cfg := config.Default()
	cfg.ModelsDir = ""
	cfg.Device = "standard"
	rt, err := newRuntime(cfg, zerolog.Nop())
	require.NoError(t, err)
	c, err := newClient(cfg, rt, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, runtime.DeviceStandard, c.Device())
	require.Equal(t, cfg.Model, c.ModelID())

	cfg.Device = "tpu"
	_, err = newClient(cfg, rt, zerolog.Nop())
	require.Error(t, err)
}

func TestServeStopsWhenContextCanceled(t *testing.T) {
	_, url := fakeServer(t)
	root := newRootCmd()
	root.SetArgs(append([]string{"serve", "--addr", "127.0.0.1:0"}, attachArgs(url)...))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
