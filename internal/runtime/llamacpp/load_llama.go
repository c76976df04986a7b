//go:build llama

package llamacpp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"localllm/internal/chattemplate"
	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// Built reports whether the CGO bindings are compiled in.
const Built = true

func (r *Runtime) load(mdl types.Model, dev runtime.Device) (runtime.Tokenizer, runtime.Model, error) {
	opts := []llama.ModelOption{llama.SetContext(r.cfg.CtxSize)}
	if dev == runtime.DeviceAccelerated {
		opts = append(opts, llama.SetGPULayers(r.cfg.GPULayers), llama.EnableF16Memory)
	}
	llm, err := llama.New(mdl.Path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", mdl.Path, err)
	}
	r.log.Info().Str("event", "model_load").Str("model", mdl.Path).Str("device", dev.String()).Msg("model loaded in-process")
	s := &session{
		llm:      llm,
		table:    newPieceTable(256, 1<<16),
		template: r.cfg.ChatTemplate,
		threads:  r.cfg.Threads,
	}
	return &tokenizer{s: s}, &model{s: s, dev: dev}, nil
}

// session is shared by a tokenizer/model pair. The bindings are not safe for
// concurrent use, so every call into llm holds mu.
type session struct {
	mu       sync.Mutex
	llm      *llama.LLama
	table    *pieceTable
	template string
	threads  int
}

type tokenizer struct{ s *session }

func (t *tokenizer) ApplyChatTemplate(ctx context.Context, msgs []types.Message, addGenerationPrompt bool) (string, error) {
	return chattemplate.Render(t.s.template, msgs, addGenerationPrompt)
}

func (t *tokenizer) Encode(ctx context.Context, text string) ([]int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.llm == nil {
		return nil, errClosed
	}
	_, raw, err := t.s.llm.TokenizeString(text)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(raw))
	for i, id := range raw {
		ids[i] = int(id)
	}
	t.s.table.rememberPrompt(ids, text)
	return ids, nil
}

func (t *tokenizer) Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error) {
	var skip []string
	if skipSpecial {
		skip = chattemplate.Markers(t.s.template)
	}
	return t.s.table.decode(ids, skip)
}

// EOSTokenID is unknown: the bindings do not expose the vocabulary.
func (t *tokenizer) EOSTokenID() int { return -1 }

var errClosed = errors.New("model closed")

type model struct {
	s   *session
	dev runtime.Device
}

func (m *model) Generate(ctx context.Context, input []int, p runtime.SamplingParams) ([]int, error) {
	prompt, ok := m.s.table.prompt(input)
	if !ok {
		return nil, errUnknownIDs
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.llm == nil {
		return nil, errClosed
	}

	var pieces []string
	m.s.llm.SetTokenCallback(func(tok string) bool {
		if ctx.Err() != nil {
			return false
		}
		pieces = append(pieces, tok)
		return len(pieces) < p.MaxNewTokens
	})
	opts := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxNewTokens)),
		llama.SetThreads(max(1, m.s.threads)),
		llama.SetTemperature(float32(p.Temperature)),
	}
	if !p.DoSample {
		opts = append(opts, llama.SetTemperature(0), llama.SetTopK(1))
	}
	if p.Seed != 0 {
		opts = append(opts, llama.SetSeed(p.Seed))
	}
	if _, err := m.s.llm.Predict(prompt, opts...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]int, 0, len(input)+len(pieces))
	out = append(out, input...)
	for _, piece := range pieces {
		out = append(out, m.s.table.assign(piece))
	}
	return out, nil
}

// To accepts only the device the model was loaded for; layers are placed
// at load time.
func (m *model) To(dev runtime.Device) error {
	if dev != m.dev {
		return runtime.ErrDeviceMismatch
	}
	return nil
}

func (m *model) Device() runtime.Device { return m.dev }

func (m *model) Close() error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.llm != nil {
		m.s.llm.Free()
		m.s.llm = nil
	}
	return nil
}
