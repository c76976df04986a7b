package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"localllm/internal/chattemplate"
	"localllm/internal/runtime/llamaserver/llamatest"
	"localllm/pkg/types"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func fakeServer(t *testing.T) (*llamatest.Server, string) {
	t.Helper()
	fake := llamatest.New()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)
	return fake, ts.URL
}

func attachArgs(url string, extra ...string) []string {
	args := []string{"--log-level", "off", "--llama-url", url, "--models-dir", "", "--device", "standard"}
	return append(args, extra...)
}

func TestGenerateCommandPrintsText(t *testing.T) {
	_, url := fakeServer(t)
	out, err := run(t, "", append([]string{"generate"}, attachArgs(url, "--temperature", "0", "Hello")...)...)
	require.NoError(t, err)
	require.Equal(t, "Hi there\n", out)
}

func TestGenerateCommandJSONReportsUsage(t *testing.T) {
	fake, url := fakeServer(t)
	out, err := run(t, "Hello\n", append([]string{"generate", "--json"}, attachArgs(url, "--temperature", "0", "--max-output-tokens", "8")...)...)
	require.NoError(t, err)

	var resp types.GenerateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	prompt, err := chattemplate.Render("chatml", []types.Message{{Role: types.RoleUser, Content: "Hello"}}, true)
	require.NoError(t, err)
	u := resp.UsageMetadata
	require.Equal(t, "Hi there", resp.Text)
	require.Equal(t, len(fake.Tokenize(prompt)), u.PromptTokenCount)
	require.Equal(t, 3, u.CandidatesTokenCount)
	require.Equal(t, u.PromptTokenCount+u.CandidatesTokenCount, u.TotalTokenCount)
	require.NotEmpty(t, resp.ID)

	reqs := fake.Completions()
	require.Len(t, reqs, 1)
	require.Equal(t, 8, reqs[0].NPredict)
	require.Zero(t, reqs[0].Temperature)
}

func TestGenerateCommandRejectsNegativeTemperature(t *testing.T) {
	fake, url := fakeServer(t)
	_, err := run(t, "", append([]string{"generate"}, attachArgs(url, "--temperature", "-1", "Hello")...)...)
	require.Error(t, err)
	require.Contains(t, err.Error(), "temperature")
	require.Zero(t, fake.HealthChecks(), "validation must fail before the model is loaded")
}

func TestGenerateCommandRejectsZeroMaxOutputTokens(t *testing.T) {
	fake, url := fakeServer(t)
	_, err := run(t, "", append([]string{"generate"}, attachArgs(url, "--max-output-tokens", "0", "Hello")...)...)
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_output_tokens")
	require.Zero(t, fake.HealthChecks())
	require.Empty(t, fake.Completions())
}
