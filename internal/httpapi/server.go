package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localllm/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	GenerateContent(ctx context.Context, model, contents string, cfg types.GenerationConfig) (types.GenerationResult, error)
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	ModelID() string
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Get("/models", modelsHandler(svc))
	r.Get("/status", statusHandler(svc))
	r.With(rateLimit).Post("/v1/generate", generateHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// modelsHandler godoc
// @Summary      List models
// @Description  Models the configured runtime can serve.
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func modelsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	}
}

// statusHandler godoc
// @Summary      Adapter status
// @Description  Load state, device and counters of the generation adapter.
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// generateHandler godoc
// @Summary      Generate content
// @Description  Runs one single-turn generation against the local model. The model is loaded on first use.
// @Tags         generate
// @Accept       json
// @Produce      json
// @Param        request  body      types.GenerateRequest  true  "Generation request"
// @Success      200      {object}  types.GenerateResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Failure      504      {object}  types.ErrorResponse
// @Router       /v1/generate [post]
func generateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Oversized bodies surface here too; keep the message generic.
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelInfo {
			ev := zlog.Info().Str("event", "generate_start").Str("path", r.URL.Path).
				Str("requested_model", req.Model).Int("contents_len", len(req.Contents))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				ev = ev.Str("request_id", rid)
			}
			ev.Msg("generate start")
		}

		// Shutdown cancels in-flight work as well as client disconnects.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if generateTimeout > 0 {
			var tc context.CancelFunc
			ctx, tc = context.WithTimeout(ctx, time.Duration(generateTimeout)*time.Second)
			defer tc()
		}

		res, err := svc.GenerateContent(ctx, req.Model, req.Contents, req.Config)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			status := statusForError(err)
			if serverBaseCtx.Err() != nil {
				status = http.StatusServiceUnavailable
			}
			writeJSONError(w, status, err.Error())
			if lvl >= LevelError {
				ev := zlog.Error().Str("event", "generate_end").Int("status", status).Dur("dur", time.Since(start))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					ev = ev.Str("request_id", rid)
				}
				ev.Err(err).Msg("generate failed")
			}
			return
		}

		writeJSON(w, http.StatusOK, types.GenerateResponse{
			ID:            uuid.NewString(),
			ModelVersion:  svc.ModelID(),
			Text:          res.Text,
			UsageMetadata: res.UsageMetadata,
		})
		if lvl >= LevelInfo {
			ev := zlog.Info().Str("event", "generate_end").Int("status", http.StatusOK).
				Int("total_tokens", res.UsageMetadata.TotalTokenCount).Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				ev = ev.Str("request_id", rid)
			}
			ev.Msg("generate end")
		}
		if lvl >= LevelDebug {
			zlog.Debug().Str("event", "generate_text").Str("text", res.Text).Msg("generated")
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
