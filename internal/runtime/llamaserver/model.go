package llamaserver

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"localllm/internal/runtime"
)

var errNoTokenIDs = errors.New("llama-server did not return token ids (return_tokens unsupported; upgrade llama.cpp)")

// model is a handle on one llama-server. A spawned server is owned by the
// handle and stopped on Close; an attached one is left running.
type model struct {
	c    *client
	r    *Runtime
	proc *process

	mu  sync.Mutex
	dev runtime.Device
}

// Generate posts the prompt as token ids and returns input followed by the
// generated ids. llama-server never pads a single sequence, so PadTokenID
// is not forwarded.
func (m *model) Generate(ctx context.Context, input []int, p runtime.SamplingParams) ([]int, error) {
	req := completionRequest{
		Prompt:       input,
		NPredict:     p.MaxNewTokens,
		Temperature:  p.Temperature,
		Seed:         p.Seed,
		CachePrompt:  true,
		ReturnTokens: true,
	}
	if !p.DoSample {
		req.Temperature = 0
		req.TopK = 1
	}
	var resp completionResponse
	if err := m.c.do(ctx, http.MethodPost, "/completion", req, &resp); err != nil {
		return nil, err
	}
	if resp.Tokens == nil && resp.TokensPredicted > 0 {
		return nil, errNoTokenIDs
	}
	out := make([]int, 0, len(input)+len(resp.Tokens))
	out = append(out, input...)
	return append(out, resp.Tokens...), nil
}

// To accepts the device the server was started for. An attached server's
// placement is outside our control, so any device is recorded as-is.
func (m *model) To(dev runtime.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc != nil && dev != m.dev {
		return runtime.ErrDeviceMismatch
	}
	m.dev = dev
	return nil
}

func (m *model) Device() runtime.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dev
}

func (m *model) Close() error {
	if m.proc == nil {
		return nil
	}
	return m.r.stop(m.proc.modelPath)
}
