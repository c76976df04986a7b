// Package generation is the adapter that serves generate_content calls from a
// locally hosted causal language model.
//
// A Client resolves its configured model identifier through a
// runtime.Runtime on first use and keeps the resulting tokenizer and model
// handles for its lifetime. Each call runs the same pipeline:
//
//   - loader.go: EnsureLoaded, the one-time Unloaded -> Loaded transition.
//   - format.go: wraps raw text in a single user turn and applies the chat
//     template with the assistant prefix.
//   - invoke.go: encodes, runs the model and slices off the prompt echo.
//   - result.go: decodes the generated ids and fills usage counts.
//   - config.go: defaults and validation of GenerationConfig.
//   - errors.go: ModelLoadError, GenerationError, ValidationError.
//
// Calls are blocking and safe for concurrent use. Concurrent first calls
// serialize on the load lock; exactly one performs the load.
package generation
