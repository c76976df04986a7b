// Package runtimetest provides a deterministic in-memory Model Runtime for
// tests: a piece-level tokenizer with ChatML control markers, a fixed greedy
// continuation, and counters for loads and generations.
package runtimetest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"localllm/internal/chattemplate"
	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// Special token ids. EOS is <|im_end|>, as in ChatML instruct models.
const (
	IMStartID   = 0
	IMEndID     = 1
	EndOfTextID = 2
	EOSID       = IMEndID
)

var markers = []string{"<|im_start|>", "<|im_end|>", "<|endoftext|>"}

// DefaultContinuation is appended by greedy decoding: two text pieces and a
// control marker, decoding to "Hi there".
var DefaultContinuation = []string{"Hi", " there", "<|im_end|>"}

// Runtime is a stub runtime. Exported fields configure behavior and must be
// set before the first Load.
type Runtime struct {
	// ModelID, when set, is the only identifier Load accepts.
	ModelID string
	// LoadErr is returned by Load while non-nil.
	LoadErr error
	// LoadDelay makes Load block, widening race windows in tests.
	LoadDelay time.Duration
	// GenerateErr is returned by Generate while non-nil.
	GenerateErr error
	// Encodings overrides Encode for exact texts.
	Encodings map[string][]int
	// Continuation replaces DefaultContinuation.
	Continuation []string
	// Truncate makes Generate return fewer ids than the input.
	Truncate bool
	// Corrupt makes Generate alter the last echoed prompt id.
	Corrupt bool
	// ToErr is returned by Model.To.
	ToErr error

	mu          sync.Mutex
	vocab       map[string]int
	pieces      []string
	loads       int
	generations int
	lastParams  runtime.SamplingParams
	lastInput   []int
	placements  []runtime.Device
	closed      int
}

// New returns a stub runtime with an empty vocabulary.
func New() *Runtime {
	r := &Runtime{vocab: map[string]int{}}
	for _, m := range markers {
		r.intern(m)
	}
	return r
}

func (r *Runtime) Name() string { return "stub" }

// Models reports a single entry for the accepted identifier.
func (r *Runtime) Models() []types.Model {
	id := r.ModelID
	if id == "" {
		id = "stub-model"
	}
	return []types.Model{{ID: id, Name: id}}
}

func (r *Runtime) Load(ctx context.Context, id string, dev runtime.Device) (runtime.Tokenizer, runtime.Model, error) {
	r.mu.Lock()
	r.loads++
	r.mu.Unlock()
	if r.LoadDelay > 0 {
		select {
		case <-time.After(r.LoadDelay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if r.LoadErr != nil {
		return nil, nil, r.LoadErr
	}
	if r.ModelID != "" && id != r.ModelID {
		return nil, nil, fmt.Errorf("%w: %s", runtime.ErrModelNotFound, id)
	}
	return &Tokenizer{r: r}, &Model{r: r, dev: dev}, nil
}

// LoadCount reports how many times Load was called.
func (r *Runtime) LoadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

// GenerateCount reports how many times Generate ran.
func (r *Runtime) GenerateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations
}

// LastParams returns the sampling parameters of the most recent Generate.
func (r *Runtime) LastParams() runtime.SamplingParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastParams
}

// LastInput returns the input ids of the most recent Generate.
func (r *Runtime) LastInput() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.lastInput...)
}

// Placements lists devices passed to Model.To, in order.
func (r *Runtime) Placements() []runtime.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runtime.Device(nil), r.placements...)
}

// Closed reports how many model handles were closed.
func (r *Runtime) Closed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Markers returns the control markers the stub tokenizer treats as special.
func Markers() []string { return append([]string(nil), markers...) }

func (r *Runtime) intern(piece string) int {
	if id, ok := r.vocab[piece]; ok {
		return id
	}
	id := len(r.pieces)
	r.vocab[piece] = id
	r.pieces = append(r.pieces, piece)
	return id
}

// Tokenizer is the stub tokenizer; ids are stable per Runtime.
type Tokenizer struct{ r *Runtime }

func (t *Tokenizer) ApplyChatTemplate(ctx context.Context, msgs []types.Message, addGenerationPrompt bool) (string, error) {
	return chattemplate.Render("chatml", msgs, addGenerationPrompt)
}

// Encode splits text into control markers and whitespace-prefixed words.
func (t *Tokenizer) Encode(ctx context.Context, text string) ([]int, error) {
	if ids, ok := t.r.Encodings[text]; ok {
		return append([]int(nil), ids...), nil
	}
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	var ids []int
	for _, p := range SplitPieces(text, markers) {
		ids = append(ids, t.r.intern(p))
	}
	return ids, nil
}

func (t *Tokenizer) Decode(ctx context.Context, ids []int, skipSpecial bool) (string, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	var b strings.Builder
	for _, id := range ids {
		if id < 0 || id >= len(t.r.pieces) {
			return "", fmt.Errorf("unknown token id %d", id)
		}
		if skipSpecial && id < len(markers) {
			continue
		}
		b.WriteString(t.r.pieces[id])
	}
	return b.String(), nil
}

func (t *Tokenizer) EOSTokenID() int { return EOSID }

// SplitPieces splits s into control markers and whitespace-prefixed words.
// Concatenating the pieces yields s.
func SplitPieces(s string, markers []string) []string {
	var out []string
	for len(s) > 0 {
		if m := markerPrefix(s, markers); m != "" {
			out = append(out, m)
			s = s[len(m):]
			continue
		}
		i := 0
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		for i < len(s) && !isSpace(s[i]) && markerPrefix(s[i:], markers) == "" {
			i++
		}
		if i == 0 {
			i = 1
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	return out
}

func markerPrefix(s string, markers []string) string {
	for _, m := range markers {
		if strings.HasPrefix(s, m) {
			return m
		}
	}
	return ""
}

func isSpace(c byte) bool { return c == ' ' || c == '\n' || c == '\t' || c == '\r' }

// Model is the stub model handle.
type Model struct {
	r      *Runtime
	dev    runtime.Device
	closed bool
}

// ErrClosed is returned by Generate after Close.
var ErrClosed = errors.New("model closed")

// Generate echoes input and appends the continuation. Greedy decoding is
// deterministic; sampling shuffles the continuation's text pieces.
func (m *Model) Generate(ctx context.Context, input []int, p runtime.SamplingParams) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.r.GenerateErr != nil {
		return nil, m.r.GenerateErr
	}
	cont := m.r.Continuation
	if cont == nil {
		cont = DefaultContinuation
	}
	cont = append([]string(nil), cont...)
	if p.DoSample && len(cont) > 1 {
		seed := int64(p.Seed)
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(cont)-1, func(i, j int) { cont[i], cont[j] = cont[j], cont[i] })
	}
	if p.MaxNewTokens >= 0 && len(cont) > p.MaxNewTokens {
		cont = cont[:p.MaxNewTokens]
	}

	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.r.generations++
	m.r.lastParams = p
	m.r.lastInput = append([]int(nil), input...)
	if m.r.Truncate {
		if len(input) == 0 {
			return nil, nil
		}
		return append([]int(nil), input[:len(input)-1]...), nil
	}
	out := append([]int(nil), input...)
	if m.r.Corrupt && len(out) > 0 {
		out[len(out)-1]++
	}
	for _, piece := range cont {
		out = append(out, m.r.intern(piece))
	}
	return out, nil
}

func (m *Model) To(dev runtime.Device) error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	m.r.placements = append(m.r.placements, dev)
	if m.r.ToErr != nil {
		return m.r.ToErr
	}
	m.dev = dev
	return nil
}

func (m *Model) Device() runtime.Device { return m.dev }

func (m *Model) Close() error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.r.closed++
	}
	return nil
}
