package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig holds what NewRouter wires together.
type RouterConfig struct {
	Webhook *WebhookHandler
	Health  *HealthHandler
	Jobs    *JobsHandler
	// Secret guards the webhook and the jobs endpoints.
	Secret string
	Log    zerolog.Logger
}

// NewRouter builds the HTTP handler of the bot server.
func NewRouter(cfg RouterConfig) http.Handler {
	protect := middleware.SecretToken(cfg.Secret)

	mux := http.NewServeMux()

	mux.Handle("/webhook", protect(cfg.Webhook))

	mux.Handle("/api/jobs", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		cfg.Jobs.ListJobs(w, r)
	})))

	mux.Handle("/api/jobs/", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		cfg.Jobs.GetJob(w, r, jobID)
	})))

	mux.Handle("/health", cfg.Health)

	return middleware.Recovery(cfg.Log)(
		middleware.RequestID(
			middleware.Logger(cfg.Log)(mux),
		),
	)
}
