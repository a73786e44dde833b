// Package ops serves health checks and pprof on a separate port from the
// dashboard.
package ops

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// Config holds the ops router settings
type Config struct {
	Version      string
	Profiling    bool
	CheckTimeout time.Duration
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
	Time    time.Time         `json:"time"`
}

// NewRouter builds the ops router. /healthz runs every check and answers
// 503 if any fails.
func NewRouter(cfg Config, checks map[string]CheckFunc) http.Handler {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 5 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), cfg.CheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Version: cfg.Version, Time: time.Now().UTC()}
		status := http.StatusOK

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				log.Printf("[Health] %s check failed: %v", name, err)
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("[Health] encode failed: %v", err)
		}
	})

	if cfg.Profiling {
		r.Mount("/debug", middleware.Profiler())
	}

	return r
}
