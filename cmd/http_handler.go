package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/go-github/v68/github"
	"github.com/google/uuid"

	"reviewflow/internal/bootstrap/logging"
	"reviewflow/internal/domain/review"
	"reviewflow/internal/errs"
	"reviewflow/internal/usecase/ingest"
)

const (
	signatureHeader = "X-Hub-Signature-256"

	// GitHub caps webhook payloads at 25 MB.
	maxWebhookBodyBytes = 25 << 20
)

type reviewService interface {
	Ingest(context.Context, ingest.Delivery) (ingest.Outcome, error)
	ListTaskLogs(context.Context, int) ([]review.TaskLogEntry, error)
	ListRecentReviews(context.Context, int) ([]review.ReviewResult, error)
}

type httpHandlerConfig struct {
	WebhookPath string
}

type httpHandler struct {
	svc reviewService
}

type statusResponse struct {
	Status string `json:"status"`
}

type receiptResponse struct {
	Received bool             `json:"received"`
	Status   string           `json:"status"`
	TaskID   uint64           `json:"taskId,omitempty"`
	Job      *review.WorkItem `json:"job,omitempty"`
}

type logsResponse struct {
	Logs []review.TaskLogEntry `json:"logs"`
}

type reviewsResponse struct {
	Reviews []review.ReviewResult `json:"reviews"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newHTTPHandler(svc reviewService, cfg httpHandlerConfig) http.Handler {
	h := &httpHandler{svc: svc}

	webhookPath := strings.TrimSpace(cfg.WebhookPath)
	if webhookPath == "" {
		webhookPath = "/github/webhook"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", h.handleHealth)
	r.Post(webhookPath, h.handleWebhook)
	r.Get("/logs", h.handleLogs)
	r.Get("/reviews", h.handleReviews)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := logging.WithAttrs(
			r.Context(),
			slog.String("component", "http"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.Info(
			ctx,
			"http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(started)),
		)
	})
}

func (h *httpHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *httpHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	deliveryID := strings.TrimSpace(github.DeliveryID(r))
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	eventType := strings.TrimSpace(github.WebHookType(r))
	ctx := logging.WithAttrs(
		r.Context(),
		slog.String("delivery_id", deliveryID),
		slog.String("event", eventType),
	)

	out, err := h.svc.Ingest(ctx, ingest.Delivery{
		Body:       payload,
		Signature:  r.Header.Get(signatureHeader),
		EventType:  eventType,
		DeliveryID: deliveryID,
	})
	if err != nil {
		status, message := classifyIngestError(err)
		if status >= http.StatusInternalServerError {
			logging.Error(ctx, "webhook ingestion failed", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
		}
		writeError(w, status, message)
		return
	}

	switch out.Status {
	case ingest.OutcomePong:
		writeJSON(w, http.StatusOK, statusResponse{Status: "pong"})
	case ingest.OutcomeIgnored:
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "ignored"})
	case ingest.OutcomeClosed:
		writeJSON(w, http.StatusOK, receiptResponse{Received: true, Status: string(out.Status), TaskID: out.TaskID})
	case ingest.OutcomeQueued:
		writeJSON(w, http.StatusOK, receiptResponse{Received: true, Status: string(out.Status), Job: out.Job})
	default:
		logging.Error(ctx, "unknown ingest outcome", slog.String("status", string(out.Status)))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// classifyIngestError maps the ingest error taxonomy onto a status code and
// a client-safe message. Server faults never echo internal detail.
func classifyIngestError(err error) (int, string) {
	switch {
	case errors.Is(err, review.ErrAuthentication):
		return http.StatusUnauthorized, "invalid signature"
	case errors.Is(err, review.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, review.ErrPersistence):
		return http.StatusInternalServerError, "failed to persist review task"
	case errors.Is(err, review.ErrPublish):
		return http.StatusInternalServerError, "failed to enqueue review job"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *httpHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.ListTaskLogs(r.Context(), parseLimit(r))
	if err != nil {
		logging.Error(r.Context(), "list task logs failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	if logs == nil {
		logs = []review.TaskLogEntry{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Logs: logs})
}

func (h *httpHandler) handleReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.svc.ListRecentReviews(r.Context(), parseLimit(r))
	if err != nil {
		logging.Error(r.Context(), "list reviews failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	if reviews == nil {
		reviews = []review.ReviewResult{}
	}
	writeJSON(w, http.StatusOK, reviewsResponse{Reviews: reviews})
}

// parseLimit returns 0 for a missing or unparsable limit; the service
// substitutes its default.
func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	if err != nil {
		return 0
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
