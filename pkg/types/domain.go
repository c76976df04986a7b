package types

// Model represents a discoverable or loadable LLM model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: qwen2-0.5b-instruct-q4_k_m.gguf
	ID string `json:"id" example:"qwen2-0.5b-instruct-q4_k_m.gguf"`
	// Human-friendly name.
	// example: qwen2-0.5b-instruct-q4_k_m
	Name string `json:"name" example:"qwen2-0.5b-instruct-q4_k_m"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/qwen2-0.5b-instruct-q4_k_m.gguf
	Path string `json:"path" example:"/home/user/models/qwen2-0.5b-instruct-q4_k_m.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Optional family (e.g., qwen2, llama, mistral, phi).
	// example: qwen2
	Family string `json:"family,omitempty" example:"qwen2"`
}
