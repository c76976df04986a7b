package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"localllm/internal/config"
	"localllm/internal/generation"
	"localllm/internal/registry"
	"localllm/internal/runtime"
	"localllm/internal/runtime/llamacpp"
	"localllm/internal/runtime/llamaserver"
	"localllm/pkg/types"
)

// newRuntime builds the configured model runtime. A missing models
// directory is not fatal: identifiers may be paths, and an attached
// llama-server needs no registry.
func newRuntime(cfg config.Config, log zerolog.Logger) (runtime.Runtime, error) {
	var models []types.Model
	if cfg.ModelsDir != "" {
		ms, err := registry.LoadDir(cfg.ModelsDir)
		if err != nil {
			log.Warn().Str("event", "registry_scan").Str("dir", cfg.ModelsDir).Err(err).Msg("models directory not scanned")
		} else {
			models = ms
			log.Info().Str("event", "registry_scan").Str("dir", cfg.ModelsDir).Int("models", len(ms)).Msg("models discovered")
		}
	}

	switch cfg.Runtime {
	case llamacpp.Name:
		if !llamacpp.Built {
			log.Warn().Str("runtime", llamacpp.Name).Msg("built without the 'llama' tag; loads will fail")
		}
		return llamacpp.New(llamacpp.Config{
			ChatTemplate: cfg.ChatTemplate,
			CtxSize:      cfg.LlamaCtxSize,
			Threads:      cfg.LlamaThreads,
			GPULayers:    cfg.LlamaGPULayers,
		}, models, log), nil
	case llamaserver.Name, "":
		return llamaserver.New(llamaserver.Config{
			URL:          cfg.LlamaURL,
			Bin:          cfg.LlamaBin,
			Host:         cfg.LlamaHost,
			PortStart:    cfg.LlamaPortStart,
			PortEnd:      cfg.LlamaPortEnd,
			CtxSize:      cfg.LlamaCtxSize,
			Threads:      cfg.LlamaThreads,
			GPULayers:    cfg.LlamaGPULayers,
			ExtraArgs:    cfg.LlamaExtraArgs,
			ReadyTimeout: time.Duration(cfg.LlamaReadyTimeoutSec) * time.Second,
		}, models, log), nil
	default:
		return nil, fmt.Errorf("unknown runtime %q", cfg.Runtime)
	}
}

// newClient wraps rt in a generation client. "auto" leaves device
// detection to the client.
func newClient(cfg config.Config, rt runtime.Runtime, log zerolog.Logger) (*generation.Client, error) {
	opts := []generation.Option{generation.WithModelID(cfg.Model), generation.WithLogger(log)}
	if d := strings.ToLower(strings.TrimSpace(cfg.Device)); d != "" && d != "auto" {
		dev, err := runtime.ParseDevice(d)
		if err != nil {
			return nil, err
		}
		opts = append(opts, generation.WithDevice(dev))
	}
	return generation.New(rt, opts...), nil
}

// closeRuntime stops spawned servers, if the runtime owns any.
func closeRuntime(rt runtime.Runtime, log zerolog.Logger) {
	c, ok := rt.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn().Str("event", "runtime_close").Err(err).Msg("runtime close failed")
	}
}
