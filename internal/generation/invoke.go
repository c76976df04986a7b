package generation

import (
	"context"
	"fmt"

	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// invoke encodes the templated prompt, runs the model and returns the ids
// generated after the prompt together with the prompt length. cfg must
// already carry defaults.
func invoke(ctx context.Context, tok runtime.Tokenizer, mdl runtime.Model, templated string, cfg types.GenerationConfig) ([]int, int, error) {
	ids, err := tok.Encode(ctx, templated)
	if err != nil {
		return nil, 0, &GenerationError{Stage: StageEncode, Err: err}
	}
	temp := cfg.TemperatureValue()
	params := runtime.SamplingParams{
		MaxNewTokens: cfg.MaxOutputTokensValue(),
		Temperature:  temp,
		DoSample:     temp > 0,
		PadTokenID:   tok.EOSTokenID(),
	}
	out, err := mdl.Generate(ctx, ids, params)
	if err != nil {
		return nil, 0, &GenerationError{Stage: StageGenerate, Err: err}
	}
	if len(out) < len(ids) {
		return nil, 0, &GenerationError{Stage: StageGenerate, Err: fmt.Errorf("runtime returned %d ids for a %d-id prompt", len(out), len(ids))}
	}
	for i, id := range ids {
		if out[i] != id {
			return nil, 0, &GenerationError{Stage: StageGenerate, Err: fmt.Errorf("runtime output diverges from prompt at position %d", i)}
		}
	}
	return out[len(ids):], len(ids), nil
}
