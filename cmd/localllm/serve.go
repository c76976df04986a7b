package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"localllm/internal/config"
	"localllm/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the HTTP API",
		Example: "  localllm serve --models-dir ~/models/llm --model Qwen/Qwen2-0.5B-Instruct",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cmd, cfg)
		},
	}
	d := o.flags
	fs := cmd.Flags()
	fs.StringVar(&o.flags.Addr, "addr", d.Addr, "HTTP listen address, e.g. :8080")
	fs.BoolVar(&o.flags.Preload, "preload", d.Preload, "Load the model at startup instead of on first request")
	fs.Int64Var(&o.flags.MaxBodyBytes, "max-body-bytes", d.MaxBodyBytes, "Maximum request body size")
	fs.IntVar(&o.flags.GenerateTimeoutSec, "generate-timeout", d.GenerateTimeoutSec, "Per-request generate timeout in seconds (0 disables)")
	fs.Float64Var(&o.flags.RateLimitRPS, "rate-limit-rps", d.RateLimitRPS, "Generate requests admitted per second (0 disables)")
	fs.IntVar(&o.flags.RateLimitBurst, "rate-limit-burst", d.RateLimitBurst, "Rate limiter burst")
	fs.BoolVar(&o.flags.CORSEnabled, "cors", d.CORSEnabled, "Enable CORS")
	fs.StringSliceVar(&o.flags.CORSOrigins, "cors-origins", d.CORSOrigins, "Allowed CORS origins")
	addModelFlags(cmd, o)
	return cmd
}

func serve(parent context.Context, cmd *cobra.Command, cfg config.Config) error {
	log := newLogger(cfg, cmd.ErrOrStderr())
	rt, err := newRuntime(cfg, log)
	if err != nil {
		return err
	}
	defer closeRuntime(rt, log)
	client, err := newClient(cfg, rt, log)
	if err != nil {
		return err
	}

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetGenerateTimeoutSeconds(int64(cfg.GenerateTimeoutSec))
	httpapi.SetRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(client),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("event", "listen").Str("addr", ln.Addr().String()).Str("model", client.ModelID()).
		Str("runtime", client.RuntimeName()).Str("device", client.Device().String()).Msg("localllm listening")

	if cfg.Preload {
		go func() {
			if err := client.EnsureLoaded(ctx); err != nil {
				log.Warn().Str("event", "preload").Err(err).Msg("preload failed; retrying on first request")
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Str("event", "shutdown").Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Str("event", "shutdown").Err(err).Msg("graceful shutdown error")
	}
	return nil
}
