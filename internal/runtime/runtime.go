// Package runtime defines the Model Runtime the generation adapter calls into:
// a tokenizer, a model handle bound to a compute device, and the loader that
// produces both. Concrete runtimes live in subpackages:
//
//   - llamaserver: spawns (or attaches to) a llama.cpp server and drives its
//     tokenize/detokenize/apply-template/completion endpoints. Default.
//   - llamacpp: in-process go-llama.cpp bindings. Enabled with `-tags=llama`;
//     a no-CGO stub is compiled otherwise.
//   - runtimetest: deterministic stub for tests.
package runtime

import (
	"context"

	"localllm/pkg/types"
)

// Runtime resolves a model identifier into an initialized tokenizer/model pair.
type Runtime interface {
	// Name identifies the runtime (e.g., "llama-server").
	Name() string
	// Load materializes the tokenizer and model for id on dev. Either both
	// handles are returned or an error; never one without the other.
	Load(ctx context.Context, id string, dev Device) (Tokenizer, Model, error)
}

// Lister is implemented by runtimes that know which models they can load.
type Lister interface {
	Models() []types.Model
}

// Tokenizer converts between text and token ids for one loaded model.
type Tokenizer interface {
	// ApplyChatTemplate renders messages into the model's prompt format. When
	// addGenerationPrompt is set the assistant-turn prefix is appended.
	ApplyChatTemplate(ctx context.Context, msgs []types.Message, addGenerationPrompt bool) (string, error)
	Encode(ctx context.Context, text string) ([]int, error)
	// Decode renders ids to text. With skipSpecial, control tokens are dropped.
	Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error)
	// EOSTokenID returns the end-of-sequence id, or -1 when unknown.
	EOSTokenID() int
}

// Model is a loaded model handle.
type Model interface {
	// Generate runs inference only (no parameter updates). The returned
	// sequence echoes input followed by the generated continuation.
	Generate(ctx context.Context, input []int, p SamplingParams) ([]int, error)
	// To places the model on dev.
	To(dev Device) error
	Device() Device
	Close() error
}

// SamplingParams are the runtime-level generation parameters.
type SamplingParams struct {
	MaxNewTokens int
	Temperature  float64
	// DoSample selects stochastic sampling; false means greedy decoding.
	DoSample bool
	// PadTokenID is the id used for padding; the adapter sets it to EOS.
	PadTokenID int
	// Seed for stochastic sampling; 0 lets the runtime choose.
	Seed int
}
