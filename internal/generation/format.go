package generation

import (
	"context"

	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// Format renders raw as a single user turn in the model's chat template,
// followed by the assistant-turn prefix. It loads the model if needed.
func (c *Client) Format(ctx context.Context, raw string) (string, error) {
	if err := c.EnsureLoaded(ctx); err != nil {
		return "", err
	}
	tok, _ := c.handles()
	return formatPrompt(ctx, tok, raw)
}

func formatPrompt(ctx context.Context, tok runtime.Tokenizer, raw string) (string, error) {
	msgs := []types.Message{{Role: types.RoleUser, Content: raw}}
	s, err := tok.ApplyChatTemplate(ctx, msgs, true)
	if err != nil {
		return "", &GenerationError{Stage: StageTemplate, Err: err}
	}
	return s, nil
}
