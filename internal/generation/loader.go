package generation

import (
	"context"
	"errors"
	"time"

	"localllm/internal/runtime"
)

var errIncompleteHandles = errors.New("runtime returned no tokenizer or model")

// EnsureLoaded loads the tokenizer and model if they are not loaded yet.
// It is idempotent once loaded. A failed load is returned as a
// *ModelLoadError and leaves the client unloaded, so a later call retries.
func (c *Client) EnsureLoaded(ctx context.Context) error {
	if c.State() == StateLoaded {
		return nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.State() == StateLoaded {
		return nil
	}

	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()
	c.loads.Add(1)
	start := time.Now()
	c.log.Info().Str("event", "load_start").Str("model", c.modelID).Str("device", c.dev.String()).Msg("loading model")

	tok, mdl, err := c.rt.Load(ctx, c.modelID, c.dev)
	if err == nil && (tok == nil || mdl == nil) {
		err = errIncompleteHandles
	}
	// Accelerated loads are placed by the runtime; standard ones are moved
	// explicitly.
	if err == nil && c.dev == runtime.DeviceStandard {
		if terr := mdl.To(runtime.DeviceStandard); terr != nil {
			_ = mdl.Close()
			err = terr
		}
	}
	if err != nil {
		loadsTotal.WithLabelValues("error").Inc()
		c.mu.Lock()
		c.state = StateUnloaded
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.log.Error().Str("event", "load_error").Str("model", c.modelID).Err(err).Msg("model load failed")
		return &ModelLoadError{ModelID: c.modelID, Err: err}
	}

	c.mu.Lock()
	c.tok, c.model = tok, mdl
	c.state = StateLoaded
	c.loadedAt = time.Now()
	c.lastErr = ""
	c.mu.Unlock()
	loadsTotal.WithLabelValues("ok").Inc()
	loadDuration.Observe(time.Since(start).Seconds())
	c.log.Info().Str("event", "load_done").Str("model", c.modelID).
		Str("device", mdl.Device().String()).Dur("duration", time.Since(start)).Msg("model loaded")
	return nil
}
