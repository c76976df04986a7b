package generation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// DefaultModelID is the model served when none is configured: a small
// instruction-tuned model.
const DefaultModelID = "Qwen/Qwen2-0.5B-Instruct"

// State is the load state of a Client.
type State int32

const (
	StateUnloaded State = iota
	// StateLoading is reported while a load is in flight.
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// Option configures a Client.
type Option func(*Client)

// WithModelID sets the identifier resolved on first use.
func WithModelID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.modelID = id
		}
	}
}

// WithDevice forces the compute device instead of detecting one.
func WithDevice(d runtime.Device) Option {
	return func(c *Client) { c.forced = &d }
}

// WithDeviceDetector replaces runtime.DetectDevice.
func WithDeviceDetector(fn func() runtime.Device) Option {
	return func(c *Client) {
		if fn != nil {
			c.detect = fn
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client is the generation adapter. The zero value is not usable; call New.
type Client struct {
	rt      runtime.Runtime
	modelID string
	forced  *runtime.Device
	detect  func() runtime.Device
	dev     runtime.Device
	log     zerolog.Logger
	started time.Time

	// loadMu serializes the Unloaded -> Loaded transition.
	loadMu sync.Mutex

	mu       sync.RWMutex
	state    State
	tok      runtime.Tokenizer
	model    runtime.Model
	loadedAt time.Time
	lastErr  string

	loads       atomic.Uint64
	generations atomic.Uint64
}

// New returns an unloaded client backed by rt. The device is chosen here:
// the forced one if given, accelerated if detected, standard otherwise.
func New(rt runtime.Runtime, opts ...Option) *Client {
	c := &Client{
		rt:      rt,
		modelID: DefaultModelID,
		detect:  runtime.DetectDevice,
		log:     zerolog.Nop(),
		started: time.Now(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.forced != nil {
		c.dev = *c.forced
	} else {
		c.dev = c.detect()
	}
	c.log.Info().Str("event", "client_init").Str("model", c.modelID).
		Str("runtime", rt.Name()).Str("device", c.dev.String()).Msg("generation client ready")
	return c
}

// ModelID returns the configured model identifier.
func (c *Client) ModelID() string { return c.modelID }

// Device returns the compute device models are loaded onto.
func (c *Client) Device() runtime.Device { return c.dev }

// RuntimeName returns the name of the backing runtime.
func (c *Client) RuntimeName() string { return c.rt.Name() }

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ready reports whether the model is loaded.
func (c *Client) Ready() bool { return c.State() == StateLoaded }

func (c *Client) handles() (runtime.Tokenizer, runtime.Model) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tok, c.model
}

// GenerateContent runs one single-turn generation. model is accepted for
// compatibility with multi-model provider APIs and ignored; the client
// always serves its configured model.
func (c *Client) GenerateContent(ctx context.Context, model, contents string, cfg types.GenerationConfig) (types.GenerationResult, error) {
	cfg, err := resolveConfig(cfg)
	if err != nil {
		requestsTotal.WithLabelValues(outcomeInvalid).Inc()
		return types.GenerationResult{}, err
	}
	if err := c.EnsureLoaded(ctx); err != nil {
		requestsTotal.WithLabelValues(outcomeLoadError).Inc()
		return types.GenerationResult{}, err
	}
	tok, mdl := c.handles()

	start := time.Now()
	res, err := c.generate(ctx, tok, mdl, contents, cfg)
	if err != nil {
		requestsTotal.WithLabelValues(outcomeGenerError).Inc()
		c.log.Error().Str("event", "generate_error").Str("model", c.modelID).Err(err).Msg("generation failed")
		return types.GenerationResult{}, err
	}
	dur := time.Since(start)
	c.generations.Add(1)
	requestsTotal.WithLabelValues(outcomeOK).Inc()
	tokensTotal.WithLabelValues("prompt").Add(float64(res.UsageMetadata.PromptTokenCount))
	tokensTotal.WithLabelValues("candidates").Add(float64(res.UsageMetadata.CandidatesTokenCount))
	generateDuration.Observe(dur.Seconds())
	c.log.Debug().Str("event", "generate").Str("requested_model", model).
		Int("prompt_tokens", res.UsageMetadata.PromptTokenCount).
		Int("candidates_tokens", res.UsageMetadata.CandidatesTokenCount).
		Int("max_output_tokens", cfg.MaxOutputTokensValue()).
		Float64("temperature", cfg.TemperatureValue()).
		Dur("duration", dur).Msg("generation complete")
	return res, nil
}

// GenerateContentMap is GenerateContent with a loosely typed option map
// (keys max_output_tokens and temperature; others ignored).
func (c *Client) GenerateContentMap(ctx context.Context, model, contents string, cfg map[string]any) (types.GenerationResult, error) {
	gc, err := ConfigFromMap(cfg)
	if err != nil {
		requestsTotal.WithLabelValues(outcomeInvalid).Inc()
		return types.GenerationResult{}, err
	}
	return c.GenerateContent(ctx, model, contents, gc)
}

func (c *Client) generate(ctx context.Context, tok runtime.Tokenizer, mdl runtime.Model, contents string, cfg types.GenerationConfig) (types.GenerationResult, error) {
	prompt, err := formatPrompt(ctx, tok, contents)
	if err != nil {
		return types.GenerationResult{}, err
	}
	generated, inputLen, err := invoke(ctx, tok, mdl, prompt, cfg)
	if err != nil {
		return types.GenerationResult{}, err
	}
	return buildResult(ctx, tok, generated, inputLen)
}
