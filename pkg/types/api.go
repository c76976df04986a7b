package types

// GenerateRequest is the payload accepted by POST /v1/generate.
type GenerateRequest struct {
	// Accepted for compatibility with multi-model provider APIs; ignored.
	// example: gemini-1.5-flash
	Model string `json:"model,omitempty" example:"gemini-1.5-flash"`
	// Raw prompt text.
	// example: Write a haiku about the ocean.
	Contents string `json:"contents" example:"Write a haiku about the ocean."`
	// Optional generation options; unknown keys are ignored.
	Config GenerationConfig `json:"config"`
}

// GenerateResponse is returned by POST /v1/generate.
type GenerateResponse struct {
	// Unique response identifier.
	// example: 4b1c1f0e-5d2a-4a43-9d8e-0f5f0b7b9a10
	ID string `json:"id" example:"4b1c1f0e-5d2a-4a43-9d8e-0f5f0b7b9a10"`
	// Identifier of the locally loaded model that served the request.
	// example: Qwen/Qwen2-0.5B-Instruct
	ModelVersion string `json:"model_version" example:"Qwen/Qwen2-0.5B-Instruct"`
	// Generated text.
	// example: Waves fold into foam
	Text          string        `json:"text" example:"Waves fold into foam"`
	UsageMetadata UsageMetadata `json:"usage_metadata"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Configured model identifier.
	// example: Qwen/Qwen2-0.5B-Instruct
	ModelID string `json:"model_id" example:"Qwen/Qwen2-0.5B-Instruct"`
	// Lifecycle state: unloaded, loading or loaded.
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Compute device the model is bound to.
	// example: accelerated
	Device string `json:"device" example:"accelerated"`
	// Model runtime backing the adapter.
	// example: llama-server
	Runtime string `json:"runtime" example:"llama-server"`
	// Last load error observed (cleared on successful load).
	LastError string `json:"last_error,omitempty"`
	// Time the model finished loading (unix seconds, 0 when unloaded).
	// example: 1700000000
	LoadedAtUnix int64 `json:"loaded_at_unix" example:"1700000000"`
	// Uptime of the adapter in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of load attempts.
	// example: 1
	LoadsTotal uint64 `json:"loads_total" example:"1"`
	// Total number of successful generations.
	// example: 12
	GenerationsTotal uint64 `json:"generations_total" example:"12"`
}
