package llamaserver

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"localllm/internal/common/fsutil"
	"localllm/internal/runtime"
)

const stderrTail = 4096

// process is a spawned llama-server.
type process struct {
	cmd       *exec.Cmd
	modelPath string
	baseURL   string
	port      int
	pid       int
	stderr    *tailBuffer

	done    chan struct{}
	waitErr error
}

func (p *process) exitErr() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// terminate sends SIGTERM and kills after grace.
func (p *process) terminate(grace time.Duration) {
	if p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}

// args builds the llama-server command line. The accelerated device
// offloads GPULayers layers; standard keeps every layer on the CPU.
func (c Config) args(modelPath, host string, port int, dev runtime.Device) []string {
	args := []string{
		"-m", modelPath,
		"--host", host,
		"--port", strconv.Itoa(port),
	}
	if c.CtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(c.CtxSize))
	}
	ngl := 0
	if dev == runtime.DeviceAccelerated {
		ngl = c.GPULayers
	}
	args = append(args, "-ngl", strconv.Itoa(ngl))
	if c.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(c.Threads))
	}
	return append(args, c.ExtraArgs...)
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// discoverBin locates a llama.cpp server binary in common install paths,
// then on PATH.
func discoverBin() string {
	candidates := []string{
		"~/apps/llama.cpp/build/bin/llama-server",
		"~/llama.cpp/build/bin/llama-server",
		"/usr/local/bin/llama-server",
		"/opt/homebrew/bin/llama-server",
	}
	for _, c := range candidates {
		p, err := fsutil.ExpandHome(c)
		if err != nil {
			continue
		}
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	if p, err := exec.LookPath("llama-server"); err == nil {
		return filepath.Clean(p)
	}
	return ""
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
