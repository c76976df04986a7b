package types

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat turn fed to a chat template.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Defaults for GenerationConfig fields left unset.
const (
	DefaultMaxOutputTokens = 512
	DefaultTemperature     = 1.0
)

// GenerationConfig carries the per-call generation options.
// A nil field means "use the default"; explicit values, zero included, are kept
// and validated as given.
type GenerationConfig struct {
	// Maximum number of new tokens to generate.
	// example: 128
	MaxOutputTokens *int `json:"max_output_tokens,omitempty" validate:"required,gt=0" example:"128"`
	// Sampling temperature. 0 selects greedy decoding.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" validate:"required,gte=0" example:"0.7"`
}

// WithDefaults returns a copy with missing fields replaced by their defaults.
func (c GenerationConfig) WithDefaults() GenerationConfig {
	if c.MaxOutputTokens == nil {
		n := DefaultMaxOutputTokens
		c.MaxOutputTokens = &n
	} else {
		n := *c.MaxOutputTokens
		c.MaxOutputTokens = &n
	}
	if c.Temperature == nil {
		t := DefaultTemperature
		c.Temperature = &t
	} else {
		t := *c.Temperature
		c.Temperature = &t
	}
	return c
}

// TemperatureValue returns the effective temperature.
func (c GenerationConfig) TemperatureValue() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// MaxOutputTokensValue returns the effective token budget.
func (c GenerationConfig) MaxOutputTokensValue() int {
	if c.MaxOutputTokens == nil {
		return DefaultMaxOutputTokens
	}
	return *c.MaxOutputTokens
}

// Int is a convenience for building a *int inline.
func Int(v int) *int { return &v }

// Float64 is a convenience for building a *float64 inline.
func Float64(v float64) *float64 { return &v }

// UsageMetadata reports token accounting for one generation.
type UsageMetadata struct {
	// example: 7
	PromptTokenCount int `json:"prompt_token_count" example:"7"`
	// example: 3
	CandidatesTokenCount int `json:"candidates_token_count" example:"3"`
	// Always PromptTokenCount + CandidatesTokenCount.
	// example: 10
	TotalTokenCount int `json:"total_token_count" example:"10"`
}

// GenerationResult is the value returned by a successful generation.
type GenerationResult struct {
	// Decoded text of the generated tokens, control tokens removed.
	// example: Hi there
	Text          string        `json:"text" example:"Hi there"`
	UsageMetadata UsageMetadata `json:"usage_metadata"`
}

// NewGenerationResult builds a result whose total is the exact sum of its parts.
func NewGenerationResult(text string, promptTokens, candidateTokens int) GenerationResult {
	return GenerationResult{
		Text: text,
		UsageMetadata: UsageMetadata{
			PromptTokenCount:     promptTokens,
			CandidatesTokenCount: candidateTokens,
			TotalTokenCount:      promptTokens + candidateTokens,
		},
	}
}
