//go:build !llama

package llamacpp

import (
	"fmt"

	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// Built reports whether the CGO bindings are compiled in.
const Built = false

func (r *Runtime) load(mdl types.Model, dev runtime.Device) (runtime.Tokenizer, runtime.Model, error) {
	return nil, nil, fmt.Errorf("%w: llama support not built (missing 'llama' build tag)", runtime.ErrDependencyUnavailable)
}
