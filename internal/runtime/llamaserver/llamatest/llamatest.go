// Package llamatest is an in-memory stand-in for llama.cpp's llama-server.
// It implements the subset of endpoints the llamaserver runtime drives
// (/health, /props, /tokenize, /detokenize, /apply-template, /completion)
// over a piece-level vocabulary with Qwen-style ChatML control tokens.
package llamatest

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"localllm/internal/chattemplate"
	"localllm/internal/runtime/runtimetest"
	"localllm/pkg/types"
)

// Control token ids, matching the Qwen2 vocabulary.
const (
	EndOfTextID = 151643
	IMStartID   = 151644
	IMEndID     = 151645
)

const firstPieceID = 1000

// ChatTemplate is the Jinja source reported by /props.
const ChatTemplate = "{% for message in messages %}{{'<|im_start|>' + message['role'] + '\n' + message['content'] + '<|im_end|>' + '\n'}}{% endfor %}{% if add_generation_prompt %}{{ '<|im_start|>assistant\n' }}{% endif %}"

var specials = map[string]int{
	"<|endoftext|>": EndOfTextID,
	"<|im_start|>":  IMStartID,
	"<|im_end|>":    IMEndID,
}

// CompletionRequest is the decoded body of a /completion call.
type CompletionRequest struct {
	Prompt       []int   `json:"-"`
	NPredict     int     `json:"n_predict"`
	Temperature  float64 `json:"temperature"`
	TopK         int     `json:"top_k"`
	Seed         int     `json:"seed"`
	CachePrompt  bool    `json:"cache_prompt"`
	ReturnTokens bool    `json:"return_tokens"`
	Stream       bool    `json:"stream"`
}

// Server is a fake llama-server. Exported fields must be set before the
// handler serves its first request.
type Server struct {
	// Continuation is generated after every prompt; defaults to
	// runtimetest.DefaultContinuation.
	Continuation []string
	// LoadingChecks makes the first N /health calls report 503.
	LoadingChecks int
	// FailCompletion makes /completion answer 500.
	FailCompletion bool
	// OmitTokens drops the token ids from /completion, like servers
	// that predate return_tokens.
	OmitTokens bool

	mu          sync.Mutex
	vocab       map[string]int
	pieces      map[int]string
	next        int
	health      int
	completions []CompletionRequest
	mux         *http.ServeMux
}

// New returns a fake server with an empty vocabulary.
func New() *Server {
	s := &Server{vocab: map[string]int{}, pieces: map[int]string{}, next: firstPieceID}
	for p, id := range specials {
		s.vocab[p] = id
		s.pieces[id] = p
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /props", s.handleProps)
	mux.HandleFunc("POST /tokenize", s.handleTokenize)
	mux.HandleFunc("POST /detokenize", s.handleDetokenize)
	mux.HandleFunc("POST /apply-template", s.handleApplyTemplate)
	mux.HandleFunc("POST /completion", s.handleCompletion)
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// HealthChecks reports how many /health calls were served.
func (s *Server) HealthChecks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// Completions returns the /completion requests received so far.
func (s *Server) Completions() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompletionRequest(nil), s.completions...)
}

// Tokenize encodes text with the server's vocabulary, as /tokenize would.
func (s *Server) Tokenize(text string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenizeLocked(text)
}

func (s *Server) tokenizeLocked(text string) []int {
	ids := []int{}
	for _, p := range runtimetest.SplitPieces(text, runtimetest.Markers()) {
		ids = append(ids, s.internLocked(p))
	}
	return ids
}

func (s *Server) internLocked(piece string) int {
	if id, ok := s.vocab[piece]; ok {
		return id
	}
	id := s.next
	s.next++
	s.vocab[piece] = id
	s.pieces[id] = piece
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.health++
	loading := s.health <= s.LoadingChecks
	s.mu.Unlock()
	if loading {
		writeError(w, http.StatusServiceUnavailable, "Loading model")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chat_template": ChatTemplate,
		"bos_token":     "",
		"eos_token":     "<|im_end|>",
		"total_slots":   1,
	})
}

func (s *Server) handleTokenize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": s.Tokenize(req.Content)})
}

func (s *Server) handleDetokenize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tokens []int `json:"tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for _, id := range req.Tokens {
		p, ok := s.pieces[id]
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid token id")
			return
		}
		b.WriteString(p)
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": b.String()})
}

func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []types.Message `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prompt, err := chattemplate.Render("chatml", req.Messages, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompletionRequest
		Prompt json.RawMessage `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := body.CompletionRequest
	if err := json.Unmarshal(body.Prompt, &req.Prompt); err != nil {
		var text string
		if err := json.Unmarshal(body.Prompt, &text); err != nil {
			writeError(w, http.StatusBadRequest, "prompt must be a string or token array")
			return
		}
		req.Prompt = s.Tokenize(text)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, req)
	if s.FailCompletion {
		writeError(w, http.StatusInternalServerError, "completion failed")
		return
	}

	cont := s.Continuation
	if cont == nil {
		cont = runtimetest.DefaultContinuation
	}
	cont = append([]string(nil), cont...)
	if req.Temperature > 0 && req.TopK != 1 && len(cont) > 1 {
		rng := rand.New(rand.NewSource(int64(req.Seed)))
		rng.Shuffle(len(cont)-1, func(i, j int) { cont[i], cont[j] = cont[j], cont[i] })
	}
	stopType := "eos"
	if req.NPredict >= 0 && len(cont) > req.NPredict {
		cont = cont[:req.NPredict]
		stopType = "limit"
	}
	var content strings.Builder
	tokens := []int{}
	for _, p := range cont {
		id := s.internLocked(p)
		tokens = append(tokens, id)
		if _, special := specials[p]; !special {
			content.WriteString(p)
		}
	}
	resp := map[string]any{
		"content":          content.String(),
		"tokens_evaluated": len(req.Prompt),
		"tokens_predicted": len(tokens),
		"stop":             true,
		"stop_type":        stopType,
	}
	if req.ReturnTokens && !s.OmitTokens {
		resp["tokens"] = tokens
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": map[string]any{"code": code, "message": msg}})
}
