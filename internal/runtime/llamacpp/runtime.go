// Package llamacpp runs GGUF models in-process through the go-llama.cpp
// bindings. The bindings need CGO and libllama, so the real loader is only
// compiled with the 'llama' build tag; default builds get a loader that
// reports runtime.ErrDependencyUnavailable.
//
// go-llama.cpp exposes text-level prediction only. Prompt ids produced by
// Encode are remembered alongside their text, and generated pieces are given
// synthetic negative ids, so the token-level contract of runtime.Model holds.
package llamacpp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"localllm/internal/chattemplate"
	"localllm/internal/registry"
	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// Name is the runtime identifier.
const Name = "llama-cpp"

// Config controls model initialization.
type Config struct {
	// ChatTemplate names a built-in template (see chattemplate.Names).
	ChatTemplate string
	CtxSize      int
	Threads      int
	// GPULayers is offloaded on the accelerated device.
	GPULayers int
}

// Runtime implements runtime.Runtime and runtime.Lister.
type Runtime struct {
	cfg    Config
	models []types.Model
	log    zerolog.Logger
}

var (
	_ runtime.Runtime = (*Runtime)(nil)
	_ runtime.Lister  = (*Runtime)(nil)
)

func New(cfg Config, models []types.Model, log zerolog.Logger) *Runtime {
	if cfg.ChatTemplate == "" {
		cfg.ChatTemplate = chattemplate.Default
	}
	if cfg.CtxSize <= 0 {
		cfg.CtxSize = 4096
	}
	return &Runtime{
		cfg:    cfg,
		models: append([]types.Model(nil), models...),
		log:    log.With().Str("runtime", Name).Logger(),
	}
}

func (r *Runtime) Name() string { return Name }

func (r *Runtime) Models() []types.Model { return append([]types.Model(nil), r.models...) }

func (r *Runtime) Load(ctx context.Context, id string, dev runtime.Device) (runtime.Tokenizer, runtime.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	mdl, err := registry.Resolve(r.models, id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", runtime.ErrModelNotFound, id)
		}
		return nil, nil, err
	}
	return r.load(mdl, dev)
}
