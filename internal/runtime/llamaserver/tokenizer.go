package llamaserver

import (
	"context"
	"fmt"
	"net/http"

	"localllm/internal/chattemplate"
	"localllm/pkg/types"
)

// tokenizer drives the server's own vocabulary and chat template. Control
// tokens are the single-id encodings of the markers in the template, the
// bos/eos strings reported by /props and the default family's markers, which
// a model may emit even when its template never mentions them.
type tokenizer struct {
	c       *client
	eos     int
	special map[int]struct{}
}

func newTokenizer(ctx context.Context, c *client) (*tokenizer, error) {
	var props propsResponse
	if err := c.do(ctx, http.MethodGet, "/props", nil, &props); err != nil {
		return nil, fmt.Errorf("read props: %w", err)
	}
	t := &tokenizer{c: c, eos: -1, special: map[int]struct{}{}}
	candidates := append(chattemplate.ExtractMarkers(props.ChatTemplate), props.BOSToken, props.EOSToken)
	candidates = append(candidates, chattemplate.Markers(chattemplate.Default)...)
	seen := make(map[string]struct{}, len(candidates))
	for _, m := range candidates {
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		ids, err := t.Encode(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("tokenize marker %q: %w", m, err)
		}
		if len(ids) != 1 {
			continue
		}
		t.special[ids[0]] = struct{}{}
		if m == props.EOSToken {
			t.eos = ids[0]
		}
	}
	return t, nil
}

func (t *tokenizer) ApplyChatTemplate(ctx context.Context, msgs []types.Message, addGenerationPrompt bool) (string, error) {
	var resp applyTemplateResponse
	req := applyTemplateRequest{Messages: msgs, AddGenerationPrompt: addGenerationPrompt}
	if err := t.c.do(ctx, http.MethodPost, "/apply-template", req, &resp); err != nil {
		return "", err
	}
	return resp.Prompt, nil
}

// Encode tokenizes without adding BOS; rendered chat templates carry their
// own control tokens.
func (t *tokenizer) Encode(ctx context.Context, text string) ([]int, error) {
	var resp tokenizeResponse
	req := tokenizeRequest{Content: text, AddSpecial: false, ParseSpecial: true}
	if err := t.c.do(ctx, http.MethodPost, "/tokenize", req, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

func (t *tokenizer) Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error) {
	if skipSpecial {
		kept := make([]int, 0, len(ids))
		for _, id := range ids {
			if _, ok := t.special[id]; !ok {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	if len(ids) == 0 {
		return "", nil
	}
	var resp detokenizeResponse
	if err := t.c.do(ctx, http.MethodPost, "/detokenize", detokenizeRequest{Tokens: ids}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (t *tokenizer) EOSTokenID() int { return t.eos }
