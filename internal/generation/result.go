package generation

import (
	"context"

	"localllm/internal/runtime"
	"localllm/pkg/types"
)

func buildResult(ctx context.Context, tok runtime.Tokenizer, generated []int, inputLen int) (types.GenerationResult, error) {
	text, err := tok.Decode(ctx, generated, true)
	if err != nil {
		return types.GenerationResult{}, &GenerationError{Stage: StageDecode, Err: err}
	}
	return types.NewGenerationResult(text, inputLen, len(generated)), nil
}
