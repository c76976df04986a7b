package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Precedence is Default() < config file < environment < CLI flags.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr" env:"LOCALLLM_ADDR" validate:"required"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir" env:"LOCALLLM_MODELS_DIR"`
	// Model is the identifier resolved on first generation.
	Model   string `json:"model" yaml:"model" toml:"model" env:"LOCALLLM_MODEL" validate:"required"`
	Device  string `json:"device" yaml:"device" toml:"device" env:"LOCALLLM_DEVICE" validate:"oneof=auto accelerated standard gpu cpu"`
	Runtime string `json:"runtime" yaml:"runtime" toml:"runtime" env:"LOCALLLM_RUNTIME" validate:"oneof=llama-server llama-cpp"`
	// ChatTemplate names the built-in template used by the in-process runtime.
	ChatTemplate string `json:"chat_template" yaml:"chat_template" toml:"chat_template" env:"LOCALLLM_CHAT_TEMPLATE"`
	// Preload loads the model at startup instead of on first request.
	Preload bool `json:"preload" yaml:"preload" toml:"preload" env:"LOCALLLM_PRELOAD"`

	// llama.cpp configuration
	LlamaBin             string   `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin" env:"LOCALLLM_LLAMA_BIN"`
	LlamaURL             string   `json:"llama_url" yaml:"llama_url" toml:"llama_url" env:"LOCALLLM_LLAMA_URL" validate:"omitempty,url"`
	LlamaHost            string   `json:"llama_host" yaml:"llama_host" toml:"llama_host" env:"LOCALLLM_LLAMA_HOST"`
	LlamaPortStart       int      `json:"llama_port_start" yaml:"llama_port_start" toml:"llama_port_start" env:"LOCALLLM_LLAMA_PORT_START" validate:"gte=0,lte=65535"`
	LlamaPortEnd         int      `json:"llama_port_end" yaml:"llama_port_end" toml:"llama_port_end" env:"LOCALLLM_LLAMA_PORT_END" validate:"gte=0,lte=65535"`
	LlamaCtxSize         int      `json:"llama_ctx_size" yaml:"llama_ctx_size" toml:"llama_ctx_size" env:"LOCALLLM_LLAMA_CTX_SIZE" validate:"gte=0"`
	LlamaThreads         int      `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads" env:"LOCALLLM_LLAMA_THREADS" validate:"gte=0"`
	LlamaGPULayers       int      `json:"llama_gpu_layers" yaml:"llama_gpu_layers" toml:"llama_gpu_layers" env:"LOCALLLM_LLAMA_GPU_LAYERS" validate:"gte=0"`
	LlamaReadyTimeoutSec int      `json:"llama_ready_timeout_sec" yaml:"llama_ready_timeout_sec" toml:"llama_ready_timeout_sec" env:"LOCALLLM_LLAMA_READY_TIMEOUT_SEC" validate:"gte=0"`
	LlamaExtraArgs       []string `json:"llama_extra_args" yaml:"llama_extra_args" toml:"llama_extra_args" env:"LOCALLLM_LLAMA_EXTRA_ARGS" envSeparator:" "`

	// HTTP layer
	MaxBodyBytes       int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" env:"LOCALLLM_MAX_BODY_BYTES" validate:"gte=0"`
	GenerateTimeoutSec int      `json:"generate_timeout_sec" yaml:"generate_timeout_sec" toml:"generate_timeout_sec" env:"LOCALLLM_GENERATE_TIMEOUT_SEC" validate:"gte=0"`
	RateLimitRPS       float64  `json:"rate_limit_rps" yaml:"rate_limit_rps" toml:"rate_limit_rps" env:"LOCALLLM_RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst     int      `json:"rate_limit_burst" yaml:"rate_limit_burst" toml:"rate_limit_burst" env:"LOCALLLM_RATE_LIMIT_BURST" validate:"gte=0"`
	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled" env:"LOCALLLM_CORS_ENABLED"`
	CORSOrigins        []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"LOCALLLM_CORS_ORIGINS" envSeparator:","`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" env:"LOCALLLM_LOG_LEVEL" validate:"oneof=debug info warn error off"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format" env:"LOCALLLM_LOG_FORMAT" validate:"oneof=console json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		ModelsDir:            "~/models/llm",
		Model:                "Qwen/Qwen2-0.5B-Instruct",
		Device:               "auto",
		Runtime:              "llama-server",
		LlamaHost:            "127.0.0.1",
		LlamaCtxSize:         4096,
		LlamaGPULayers:       999,
		LlamaReadyTimeoutSec: 60,
		MaxBodyBytes:         1 << 20,
		RateLimitBurst:       1,
		LogLevel:             "info",
		LogFormat:            "console",
	}
}

// Load reads a configuration file based on its extension on top of Default().
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if err := LoadInto(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadInto decodes the file at path onto cfg; keys absent from the file keep
// their current values.
func LoadInto(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	return nil
}

// ApplyEnv overlays LOCALLLM_* environment variables onto cfg. Unset variables
// leave fields untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	return nil
}

// validate is the shared validator instance used across the package.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.LlamaPortStart > 0 && cfg.LlamaPortEnd < cfg.LlamaPortStart {
		return fmt.Errorf("invalid config: llama_port_end (%d) < llama_port_start (%d)", cfg.LlamaPortEnd, cfg.LlamaPortStart)
	}
	if cfg.LlamaURL != "" && cfg.Runtime != "llama-server" {
		return fmt.Errorf("invalid config: llama_url requires runtime llama-server")
	}
	return nil
}
