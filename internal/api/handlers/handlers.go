package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/telegram"
)

// maxUpdateSize bounds a webhook body. Updates are small JSON documents.
const maxUpdateSize = 1 << 20

// WebhookHandler receives Telegram updates and queues them.
type WebhookHandler struct {
	publisher jobs.Publisher
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(publisher jobs.Publisher) *WebhookHandler {
	return &WebhookHandler{publisher: publisher}
}

// ServeHTTP handles POST /webhook. It answers as soon as the update is
// queued; processing happens on the worker.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	raw, err := telegram.DecodeUpdate(http.MaxBytesReader(w, r.Body, maxUpdateSize))
	if err != nil {
		log.Warn().Err(err).Msg("Invalid update body")
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update, ok := telegram.ConvertUpdate(raw)
	if !ok {
		log.Debug().Int("update_id", raw.UpdateID).Msg("Ignoring unsupported update")
		w.WriteHeader(http.StatusOK)
		return
	}

	job := &jobs.UpdateJob{Update: update}
	if err := h.publisher.PublishUpdate(ctx, job); err != nil {
		log.Error().Err(err).Int("update_id", update.ID).Msg("Failed to enqueue update")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue update")
		return
	}

	log.Debug().
		Str("job_id", job.JobID).
		Int("update_id", update.ID).
		Int64("chat_id", update.ChatID()).
		Msg("Update enqueued")
	w.WriteHeader(http.StatusOK)
}

// QueueLength reports how many updates wait for the worker.
type QueueLength interface {
	Len() int
}

// HealthHandler reports liveness and queue depth.
type HealthHandler struct {
	queue QueueLength
	now   func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(queue QueueLength) *HealthHandler {
	return &HealthHandler{queue: queue, now: time.Now}
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"queued": h.queue.Len(),
		"time":   h.now().Format(time.RFC3339),
	})
}

// JobsHandler exposes recent update jobs.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		lg := logger.FromContext(ctx)
		lg.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	status, err := jobs.ParseJobStatus(query.Get("status"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := jobs.JobFilter{Status: status}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		lg := logger.FromContext(ctx)
		lg.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
