package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"localllm/internal/config"
)

func resolveWith(t *testing.T, configPath string, args ...string) (config.Config, error) {
	t.Helper()
	o := &options{configPath: configPath, flags: config.Default()}
	cmd := newGenerateCmd(o)
	require.NoError(t, cmd.ParseFlags(args))
	return o.resolve(cmd)
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestResolvePrecedence(t *testing.T) {
	path := writeConfig(t, "localllm.yaml", "model: file-model\nllama_ctx_size: 2048\ndevice: standard\n")

	cfg, err := resolveWith(t, path)
	require.NoError(t, err)
	require.Equal(t, "file-model", cfg.Model)
	require.Equal(t, 2048, cfg.LlamaCtxSize)
	require.Equal(t, config.Default().Addr, cfg.Addr)

	t.Setenv("LOCALLLM_MODEL", "env-model")
	cfg, err = resolveWith(t, path)
	require.NoError(t, err)
	require.Equal(t, "env-model", cfg.Model)

	cfg, err = resolveWith(t, path, "--model", "flag-model")
	require.NoError(t, err)
	require.Equal(t, "flag-model", cfg.Model)
	require.Equal(t, "standard", cfg.Device, "unset flags must not override the file")
}

func TestResolveTOML(t *testing.T) {
	path := writeConfig(t, "localllm.toml", "model = \"toml-model\"\nruntime = \"llama-cpp\"\n")
	cfg, err := resolveWith(t, path)
	require.NoError(t, err)
	require.Equal(t, "toml-model", cfg.Model)
	require.Equal(t, "llama-cpp", cfg.Runtime)
}

func TestResolveRejectsInvalid(t *testing.T) {
	_, err := resolveWith(t, "", "--device", "tpu")
	require.Error(t, err)

	_, err = resolveWith(t, "", "--runtime", "llama-cpp", "--llama-url", "http://127.0.0.1:1")
	require.Error(t, err)
}

func TestResolveMissingConfigFile(t *testing.T) {
	_, err := resolveWith(t, filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestRootHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "generate", "models"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, c.Name())
	}
}
