package e2e

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"

	"localllm/internal/chattemplate"
	"localllm/internal/runtime/llamaserver/llamatest"
	"localllm/pkg/types"
)

func TestGenerateLoadsLazilyAndReportsUsage(t *testing.T) {
	s := newStack(t, llamatest.New())

	resp, _ := httpGet(t, s.api.URL+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz before first call = %d", resp.StatusCode)
	}
	if s.fake.HealthChecks() != 0 {
		t.Fatalf("runtime touched before first generate")
	}

	code, out, _ := generate(t, s, types.GenerateRequest{
		Model:    "gemini-1.5-flash",
		Contents: "Hello",
		Config:   types.GenerationConfig{MaxOutputTokens: types.Int(16), Temperature: types.Float64(0)},
	})
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	prompt, _ := chattemplate.Render("chatml", []types.Message{{Role: types.RoleUser, Content: "Hello"}}, true)
	u := out.UsageMetadata
	if out.Text != "Hi there" {
		t.Fatalf("text=%q", out.Text)
	}
	if u.PromptTokenCount != len(s.fake.Tokenize(prompt)) || u.CandidatesTokenCount != 3 {
		t.Fatalf("usage=%+v", u)
	}
	if u.TotalTokenCount != u.PromptTokenCount+u.CandidatesTokenCount {
		t.Fatalf("total mismatch: %+v", u)
	}
	if out.ModelVersion != s.client.ModelID() {
		t.Fatalf("model_version=%q", out.ModelVersion)
	}

	resp, _ = httpGet(t, s.api.URL+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz after load = %d", resp.StatusCode)
	}
	resp, body := httpGet(t, s.api.URL+"/status")
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %v", resp.StatusCode, err)
	}
	if st.State != "loaded" || st.Runtime != "llama-server" || st.Device != "standard" || st.GenerationsTotal != 1 {
		t.Fatalf("status=%+v", st)
	}
}

func TestDefaultsReachTheRuntime(t *testing.T) {
	s := newStack(t, llamatest.New())
	if code, _, _ := generate(t, s, types.GenerateRequest{Contents: "Hello"}); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	reqs := s.fake.Completions()
	if len(reqs) != 1 {
		t.Fatalf("completions=%d", len(reqs))
	}
	if reqs[0].NPredict != types.DefaultMaxOutputTokens || reqs[0].Temperature != types.DefaultTemperature {
		t.Fatalf("completion request=%+v", reqs[0])
	}
}

func TestConcurrentFirstCallsLoadOnce(t *testing.T) {
	s := newStack(t, llamatest.New())
	const n = 8
	body := []byte(`{"contents":"Hello","config":{"temperature":0}}`)
	var wg sync.WaitGroup
	codes := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Post(s.api.URL+"/v1/generate", "application/json", bytes.NewReader(body))
			if err != nil {
				errs[i] = err
				return
			}
			codes[i] = resp.StatusCode
			_ = resp.Body.Close()
		}(i)
	}
	wg.Wait()
	for i, c := range codes {
		if errs[i] != nil || c != http.StatusOK {
			t.Fatalf("request %d status=%d err=%v", i, c, errs[i])
		}
	}
	if st := s.client.Status(); st.LoadsTotal != 1 || st.GenerationsTotal != n {
		t.Fatalf("loads=%d generations=%d", st.LoadsTotal, st.GenerationsTotal)
	}
}

func TestInvalidConfigIsRejectedBeforeLoad(t *testing.T) {
	s := newStack(t, llamatest.New())
	code, _, e := generate(t, s, types.GenerateRequest{Contents: "x", Config: types.GenerationConfig{MaxOutputTokens: types.Int(-3)}})
	if code != http.StatusBadRequest || e.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%+v", code, e)
	}
	if s.fake.HealthChecks() != 0 || s.client.Ready() {
		t.Fatalf("invalid config triggered a load")
	}
}

func TestExplicitZeroTokenBudgetIsRejected(t *testing.T) {
	s := newStack(t, llamatest.New())
	resp, body := httpPostJSON(t, s.api.URL+"/v1/generate", map[string]any{
		"contents": "x",
		"config":   map[string]any{"max_output_tokens": 0},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "max_output_tokens") {
		t.Fatalf("error does not name the field: %s", body)
	}
	if len(s.fake.Completions()) != 0 || s.client.Ready() {
		t.Fatalf("zero budget reached the runtime")
	}
}

func TestRuntimeFailureMapsTo500AndModelStaysLoaded(t *testing.T) {
	fake := llamatest.New()
	fake.FailCompletion = true
	s := newStack(t, fake)
	code, _, e := generate(t, s, types.GenerateRequest{Contents: "Hello"})
	if code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%+v", code, e)
	}
	if !s.client.Ready() {
		t.Fatalf("generation failure unloaded the model")
	}
}

func TestUnreachableRuntimeMapsTo503ThenRetries(t *testing.T) {
	// Reserve a port with nothing listening behind it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	s := newStackForURL(t, nil, "http://"+addr)
	code, _, e := generate(t, s, types.GenerateRequest{Contents: "Hello"})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%+v", code, e)
	}
	if s.client.Ready() {
		t.Fatalf("client reports ready after failed load")
	}
	st := s.client.Status()
	if st.State != "unloaded" || st.LastError == "" {
		t.Fatalf("status after failed load=%+v", st)
	}
	if code, _, _ := generate(t, s, types.GenerateRequest{Contents: "Hello"}); code != http.StatusServiceUnavailable {
		t.Fatalf("retry status=%d", code)
	}
	if got := s.client.Status().LoadsTotal; got != 2 {
		t.Fatalf("loads=%d, want a retry per call", got)
	}
}
