// Package llamaserver runs models through llama.cpp's llama-server. The
// runtime either spawns one server per model file or attaches to a server
// that is already running, and drives its tokenize, detokenize,
// apply-template and completion endpoints so that prompts and outputs are
// exchanged as token ids.
package llamaserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"localllm/internal/registry"
	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// Name is the runtime identifier.
const Name = "llama-server"

// Config controls how servers are found or started.
type Config struct {
	// URL attaches to a running server instead of spawning one.
	URL string
	// Bin is the llama-server executable; discovered when empty.
	Bin       string
	Host      string
	PortStart int
	PortEnd   int
	CtxSize   int
	Threads   int
	// GPULayers is passed as -ngl on the accelerated device.
	GPULayers int
	ExtraArgs []string
	// ReadyTimeout bounds the wait for /health after start.
	ReadyTimeout time.Duration
	// StopGrace is how long Stop waits after SIGTERM before killing.
	StopGrace time.Duration
}

// Runtime implements runtime.Runtime and runtime.Lister.
type Runtime struct {
	cfg    Config
	models []types.Model
	log    zerolog.Logger
	http   *http.Client

	mu    sync.Mutex
	procs map[string]*process
}

var (
	_ runtime.Runtime = (*Runtime)(nil)
	_ runtime.Lister  = (*Runtime)(nil)
)

// New returns a runtime serving models. models may be empty in attach mode.
func New(cfg Config, models []types.Model, log zerolog.Logger) *Runtime {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 60 * time.Second
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 2 * time.Second
	}
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	return &Runtime{
		cfg:    cfg,
		models: append([]types.Model(nil), models...),
		log:    log.With().Str("runtime", Name).Logger(),
		// Timeout=0: every call carries a context deadline instead.
		http:  &http.Client{Timeout: 0},
		procs: make(map[string]*process),
	}
}

func (r *Runtime) Name() string { return Name }

func (r *Runtime) Models() []types.Model { return append([]types.Model(nil), r.models...) }

// Load resolves id, ensures a server is ready for it and reads the server's
// tokenizer metadata. In attach mode id is not resolved; the attached
// server decides which model it serves.
func (r *Runtime) Load(ctx context.Context, id string, dev runtime.Device) (runtime.Tokenizer, runtime.Model, error) {
	var (
		c    *client
		proc *process
	)
	if r.cfg.URL != "" {
		c = &client{base: r.cfg.URL, http: r.http}
		if err := c.waitReady(ctx, r.cfg.ReadyTimeout, nil); err != nil {
			return nil, nil, fmt.Errorf("attach %s: %w", r.cfg.URL, err)
		}
		r.log.Info().Str("event", "attach").Str("url", r.cfg.URL).Str("model", id).Msg("attached to llama-server")
	} else {
		mdl, err := registry.Resolve(r.models, id)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: %s", runtime.ErrModelNotFound, id)
			}
			return nil, nil, err
		}
		proc, err = r.ensureProcess(ctx, mdl.Path, dev)
		if err != nil {
			return nil, nil, err
		}
		c = &client{base: proc.baseURL, http: r.http}
	}

	tok, err := newTokenizer(ctx, c)
	if err != nil {
		if proc != nil {
			_ = r.stop(proc.modelPath)
		}
		return nil, nil, err
	}
	return tok, &model{c: c, r: r, proc: proc, dev: dev}, nil
}

// ensureProcess returns the healthy server for modelPath, starting one when
// none is running.
func (r *Runtime) ensureProcess(ctx context.Context, modelPath string, dev runtime.Device) (*process, error) {
	r.mu.Lock()
	p := r.procs[modelPath]
	r.mu.Unlock()
	if p != nil {
		c := &client{base: p.baseURL, http: r.http}
		if p.exitErr() == nil && c.healthy(ctx, time.Second) {
			return p, nil
		}
		_ = r.stop(modelPath)
	}

	bin := strings.TrimSpace(r.cfg.Bin)
	if bin == "" {
		bin = discoverBin()
	}
	if bin == "" {
		return nil, fmt.Errorf("%w: llama-server not found: set --llama-bin or install llama.cpp", runtime.ErrDependencyUnavailable)
	}
	if fi, err := os.Stat(bin); err != nil || fi.IsDir() {
		return nil, fmt.Errorf("%w: llama-server not found or not a file: %s", runtime.ErrDependencyUnavailable, bin)
	}

	host := r.cfg.Host
	var (
		port int
		err  error
	)
	if r.cfg.PortStart > 0 && r.cfg.PortEnd >= r.cfg.PortStart {
		port, err = pickPortInRange(host, r.cfg.PortStart, r.cfg.PortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(bin, r.cfg.args(modelPath, host, port, dev)...)
	cmd.Dir = filepath.Dir(modelPath)
	tail := newTailBuffer(stderrTail)
	cmd.Stderr = tail
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	p = &process{
		cmd:       cmd,
		modelPath: modelPath,
		baseURL:   fmt.Sprintf("http://%s:%d", host, port),
		port:      port,
		pid:       cmd.Process.Pid,
		stderr:    tail,
		done:      make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	r.log.Info().Str("event", "spawn_start").Str("model", modelPath).Int("pid", p.pid).
		Str("host", host).Int("port", port).Str("device", dev.String()).Msg("llama-server started")

	r.mu.Lock()
	r.procs[modelPath] = p
	r.mu.Unlock()

	c := &client{base: p.baseURL, http: r.http}
	if err := c.waitReady(ctx, r.cfg.ReadyTimeout, p.done); err != nil {
		if errors.Is(err, errExited) {
			r.forget(modelPath, p)
			r.log.Error().Str("event", "spawn_exit").Str("model", modelPath).Int("pid", p.pid).Err(p.waitErr).Msg("llama-server exited before ready")
			if p.waitErr != nil {
				return nil, fmt.Errorf("llama-server exited early: %v; stderr tail: %s", p.waitErr, tail.String())
			}
			return nil, fmt.Errorf("llama-server exited before ready: %s", p.baseURL)
		}
		r.log.Error().Str("event", "spawn_timeout").Str("model", modelPath).Int("pid", p.pid).Err(err).Msg("llama-server not ready")
		_ = r.stop(modelPath)
		return nil, err
	}
	r.log.Info().Str("event", "spawn_ready").Str("model", modelPath).Int("pid", p.pid).Str("url", p.baseURL).Msg("llama-server ready")
	return p, nil
}

func (r *Runtime) forget(modelPath string, p *process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.procs[modelPath] == p {
		delete(r.procs, modelPath)
	}
}

// stop terminates the server spawned for modelPath, if any.
func (r *Runtime) stop(modelPath string) error {
	r.mu.Lock()
	p := r.procs[modelPath]
	delete(r.procs, modelPath)
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	p.terminate(r.cfg.StopGrace)
	r.log.Info().Str("event", "spawn_stop").Str("model", modelPath).Int("pid", p.pid).Msg("llama-server stopped")
	return nil
}

// Close stops every spawned server. Best effort.
func (r *Runtime) Close() error {
	r.mu.Lock()
	paths := make([]string, 0, len(r.procs))
	for k := range r.procs {
		paths = append(paths, k)
	}
	r.mu.Unlock()
	for _, p := range paths {
		_ = r.stop(p)
	}
	return nil
}

// running reports the number of spawned servers.
func (r *Runtime) running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}
