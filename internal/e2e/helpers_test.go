package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"localllm/internal/generation"
	"localllm/internal/httpapi"
	"localllm/internal/runtime"
	"localllm/internal/runtime/llamaserver"
	"localllm/internal/runtime/llamaserver/llamatest"
	"localllm/pkg/types"
)

type stack struct {
	fake   *llamatest.Server
	client *generation.Client
	api    *httptest.Server
}

// newStack wires the HTTP API to a generation client whose llama-server
// runtime is attached to an in-memory fake.
func newStack(t *testing.T, fake *llamatest.Server) *stack {
	t.Helper()
	llama := httptest.NewServer(fake)
	t.Cleanup(llama.Close)
	return newStackForURL(t, fake, llama.URL)
}

func newStackForURL(t *testing.T, fake *llamatest.Server, url string) *stack {
	t.Helper()
	rt := llamaserver.New(llamaserver.Config{URL: url, ReadyTimeout: 2 * time.Second}, nil, zerolog.Nop())
	client := generation.New(rt, generation.WithDevice(runtime.DeviceStandard))
	api := httptest.NewServer(httpapi.NewMux(client))
	t.Cleanup(api.Close)
	return &stack{fake: fake, client: client, api: api}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func generate(t *testing.T, s *stack, req types.GenerateRequest) (int, types.GenerateResponse, types.ErrorResponse) {
	t.Helper()
	resp, body := httpPostJSON(t, s.api.URL+"/v1/generate", req)
	var ok types.GenerateResponse
	var bad types.ErrorResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, &ok); err != nil {
			t.Fatalf("decode response: %v: %s", err, body)
		}
	} else if err := json.Unmarshal(body, &bad); err != nil {
		t.Fatalf("decode error: %v: %s", err, body)
	}
	return resp.StatusCode, ok, bad
}
