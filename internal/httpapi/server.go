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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/client"
	"inferd/pkg/types"
)

// Service is the subset of the client contract the HTTP layer depends on.
type Service interface {
	IsReady() bool
	Variant() client.Variant
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error)
	GenerateBatch(ctx context.Context, reqs []types.GenerateRequest) []client.Result
	Stats() types.ClientStats
}

// batchRequest is the payload for POST /v1/batch.
type batchRequest struct {
	Requests []types.GenerateRequest `json:"requests"`
}

// NewMux builds the router over a connected client. model labels the status
// report; it is the configured model identity.
func NewMux(svc Service, model string) http.Handler {
	startTime := time.Now()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSON[types.GenerateRequest](w, r)
		if !ok {
			return
		}
		if len(req.Messages) == 0 {
			writeJSONError(w, http.StatusBadRequest, "messages is required")
			return
		}
		start := time.Now()
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Generate(joinedCtx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeTypedError(w, err)
			logEvent().Int("status", statusForError(err)).Dur("dur", time.Since(start)).Err(err).Msg("generate end")
			return
		}
		writeJSON(w, resp)
		logEvent().Int("status", 200).Dur("dur", time.Since(start)).Msg("generate end")
	})

	r.Post("/v1/batch", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeJSON[batchRequest](w, r)
		if !ok {
			return
		}
		if len(req.Requests) == 0 {
			writeJSONError(w, http.StatusBadRequest, "requests is required")
			return
		}
		start := time.Now()
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		results := svc.GenerateBatch(joinedCtx, req.Requests)
		out := types.BatchResponse{Results: make([]types.BatchSlot, len(results))}
		for i := range results {
			slot := types.BatchSlot{Index: i}
			if results[i].Err != nil {
				slot.Error = results[i].Err.Error()
				out.Failed++
			} else {
				resp := results[i].Response
				slot.Response = &resp
				out.Succeeded++
			}
			out.Results[i] = slot
		}
		writeJSON(w, out)
		logEvent().Int("status", 200).
			Int("succeeded", out.Succeeded).
			Int("failed", out.Failed).
			Dur("dur", time.Since(start)).
			Msg("batch end")
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		state := "unavailable"
		if svc.IsReady() {
			state = "ready"
		}
		resp := types.StatusResponse{
			State:          state,
			Variant:        string(svc.Variant()),
			Model:          model,
			UptimeSeconds:  int64(time.Since(startTime).Seconds()),
			ServerTimeUnix: time.Now().Unix(),
			Stats:          svc.Stats(),
		}
		if gr, ok := svc.(client.GPUReporter); ok {
			if st, has := gr.GPUStatus(); has {
				resp.GPU = &st
			}
		}
		writeJSON(w, resp)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSON enforces content type and body limits before decoding.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return v, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return v, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
