package types

import (
	"encoding/json"
	"testing"
)

func TestWithDefaultsFillsMissing(t *testing.T) {
	c := GenerationConfig{}.WithDefaults()
	if c.MaxOutputTokens == nil || *c.MaxOutputTokens != DefaultMaxOutputTokens || c.Temperature == nil || *c.Temperature != DefaultTemperature {
		t.Fatalf("defaults not applied: %+v", c)
	}
}

func TestWithDefaultsKeepsExplicitZeros(t *testing.T) {
	orig := GenerationConfig{MaxOutputTokens: Int(0), Temperature: Float64(0)}
	c := orig.WithDefaults()
	if *c.MaxOutputTokens != 0 || *c.Temperature != 0 {
		t.Fatalf("explicit values overwritten: %+v", c)
	}
	*c.Temperature = 5
	*c.MaxOutputTokens = 9
	if *orig.Temperature != 0 || *orig.MaxOutputTokens != 0 {
		t.Fatalf("WithDefaults aliases the caller's config")
	}
}

func TestGenerationConfigIgnoresUnknownKeys(t *testing.T) {
	var c GenerationConfig
	if err := json.Unmarshal([]byte(`{"max_output_tokens":8,"top_p":0.5,"stop":["x"]}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.MaxOutputTokensValue() != 8 || c.Temperature != nil {
		t.Fatalf("decoded %+v", c)
	}
}

func TestNewGenerationResultTotals(t *testing.T) {
	r := NewGenerationResult("Hi there", 7, 3)
	if r.UsageMetadata.TotalTokenCount != 10 {
		t.Fatalf("total=%d", r.UsageMetadata.TotalTokenCount)
	}
	r = NewGenerationResult("", 5, 0)
	if r.Text != "" || r.UsageMetadata.TotalTokenCount != 5 {
		t.Fatalf("empty continuation: %+v", r)
	}
}

func TestMaxOutputTokensZeroIsNotMissing(t *testing.T) {
	var c GenerationConfig
	if err := json.Unmarshal([]byte(`{"max_output_tokens":0}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.MaxOutputTokens == nil || *c.MaxOutputTokens != 0 {
		t.Fatalf("explicit zero lost: %+v", c)
	}
	if got := c.WithDefaults().MaxOutputTokensValue(); got != 0 {
		t.Fatalf("explicit zero defaulted to %d", got)
	}
}
