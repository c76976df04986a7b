package generation

import (
	"time"

	"localllm/internal/runtime"
	"localllm/pkg/types"
)

// Status reports the client's load state and counters.
func (c *Client) Status() types.StatusResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	s := types.StatusResponse{
		ModelID:          c.modelID,
		State:            c.state.String(),
		Device:           c.dev.String(),
		Runtime:          c.rt.Name(),
		LastError:        c.lastErr,
		UptimeSeconds:    int64(now.Sub(c.started).Seconds()),
		ServerTimeUnix:   now.Unix(),
		LoadsTotal:       c.loads.Load(),
		GenerationsTotal: c.generations.Load(),
	}
	if c.state == StateLoaded {
		s.LoadedAtUnix = c.loadedAt.Unix()
	}
	return s
}

// ListModels returns the models the runtime can serve, or just the
// configured identifier when the runtime does not enumerate them.
func (c *Client) ListModels() []types.Model {
	if l, ok := c.rt.(runtime.Lister); ok {
		if ms := l.Models(); len(ms) > 0 {
			return ms
		}
	}
	return []types.Model{{ID: c.modelID, Name: c.modelID}}
}
