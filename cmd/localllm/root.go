package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"localllm/internal/config"
	"localllm/internal/logging"
)

// options holds flag-bound values. Only flags the user set are applied,
// on top of defaults, the config file and the environment.
type options struct {
	configPath string
	flags      config.Config
}

// flagFields copies a flag-bound value into the resolved config.
var flagFields = map[string]func(dst *config.Config, src config.Config){
	"log-level":        func(d *config.Config, s config.Config) { d.LogLevel = s.LogLevel },
	"log-format":       func(d *config.Config, s config.Config) { d.LogFormat = s.LogFormat },
	"models-dir":       func(d *config.Config, s config.Config) { d.ModelsDir = s.ModelsDir },
	"model":            func(d *config.Config, s config.Config) { d.Model = s.Model },
	"device":           func(d *config.Config, s config.Config) { d.Device = s.Device },
	"runtime":          func(d *config.Config, s config.Config) { d.Runtime = s.Runtime },
	"chat-template":    func(d *config.Config, s config.Config) { d.ChatTemplate = s.ChatTemplate },
	"llama-bin":        func(d *config.Config, s config.Config) { d.LlamaBin = s.LlamaBin },
	"llama-url":        func(d *config.Config, s config.Config) { d.LlamaURL = s.LlamaURL },
	"llama-ctx-size":   func(d *config.Config, s config.Config) { d.LlamaCtxSize = s.LlamaCtxSize },
	"llama-threads":    func(d *config.Config, s config.Config) { d.LlamaThreads = s.LlamaThreads },
	"llama-gpu-layers": func(d *config.Config, s config.Config) { d.LlamaGPULayers = s.LlamaGPULayers },
	"llama-extra-args": func(d *config.Config, s config.Config) { d.LlamaExtraArgs = s.LlamaExtraArgs },
	"llama-ready-timeout-sec": func(d *config.Config, s config.Config) {
		d.LlamaReadyTimeoutSec = s.LlamaReadyTimeoutSec
	},
	"addr":             func(d *config.Config, s config.Config) { d.Addr = s.Addr },
	"preload":          func(d *config.Config, s config.Config) { d.Preload = s.Preload },
	"max-body-bytes":   func(d *config.Config, s config.Config) { d.MaxBodyBytes = s.MaxBodyBytes },
	"generate-timeout": func(d *config.Config, s config.Config) { d.GenerateTimeoutSec = s.GenerateTimeoutSec },
	"rate-limit-rps":   func(d *config.Config, s config.Config) { d.RateLimitRPS = s.RateLimitRPS },
	"rate-limit-burst": func(d *config.Config, s config.Config) { d.RateLimitBurst = s.RateLimitBurst },
	"cors":             func(d *config.Config, s config.Config) { d.CORSEnabled = s.CORSEnabled },
	"cors-origins":     func(d *config.Config, s config.Config) { d.CORSOrigins = s.CORSOrigins },
}

func newRootCmd() *cobra.Command {
	o := &options{flags: config.Default()}
	root := &cobra.Command{
		Use:           "localllm",
		Short:         "Local causal language model with a generate_content API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&o.flags.LogLevel, "log-level", o.flags.LogLevel, "Log level: debug|info|warn|error|off")
	pf.StringVar(&o.flags.LogFormat, "log-format", o.flags.LogFormat, "Log format: console|json")

	root.AddCommand(newServeCmd(o), newGenerateCmd(o), newModelsCmd(o))
	return root
}

// addModelFlags registers the flags that select and load the model.
func addModelFlags(cmd *cobra.Command, o *options) {
	fs := cmd.Flags()
	d := config.Default()
	fs.StringVar(&o.flags.ModelsDir, "models-dir", d.ModelsDir, "Directory to scan for *.gguf model files")
	fs.StringVar(&o.flags.Model, "model", d.Model, "Model identifier loaded on first use (hub id, file name, stem or path)")
	fs.StringVar(&o.flags.Device, "device", d.Device, "Compute device: auto|accelerated|standard")
	fs.StringVar(&o.flags.Runtime, "runtime", d.Runtime, "Model runtime: llama-server|llama-cpp")
	fs.StringVar(&o.flags.ChatTemplate, "chat-template", d.ChatTemplate, "Built-in chat template for the llama-cpp runtime")
	fs.StringVar(&o.flags.LlamaBin, "llama-bin", d.LlamaBin, "Path to llama-server (discovered on PATH when empty)")
	fs.StringVar(&o.flags.LlamaURL, "llama-url", d.LlamaURL, "Attach to a running llama-server instead of spawning one")
	fs.IntVar(&o.flags.LlamaCtxSize, "llama-ctx-size", d.LlamaCtxSize, "Context size passed to llama.cpp")
	fs.IntVar(&o.flags.LlamaThreads, "llama-threads", d.LlamaThreads, "CPU threads for llama.cpp (0 = its default)")
	fs.IntVar(&o.flags.LlamaGPULayers, "llama-gpu-layers", d.LlamaGPULayers, "Layers offloaded on the accelerated device")
	fs.IntVar(&o.flags.LlamaReadyTimeoutSec, "llama-ready-timeout-sec", d.LlamaReadyTimeoutSec, "Seconds to wait for llama-server readiness")
	fs.StringSliceVar(&o.flags.LlamaExtraArgs, "llama-extra-args", d.LlamaExtraArgs, "Extra llama-server arguments")
}

// resolve builds the effective config: defaults < file < env < flags.
func (o *options) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		if err := config.LoadInto(o.configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	fs := cmd.Flags()
	for name, apply := range flagFields {
		if f := fs.Lookup(name); f != nil && f.Changed {
			apply(&cfg, o.flags)
		}
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat, w)
}
