package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcliao/checkpoint-tracker/internal/ingest"
	"github.com/rcliao/checkpoint-tracker/internal/interview"
	"github.com/rcliao/checkpoint-tracker/internal/metrics"
	"github.com/rcliao/checkpoint-tracker/internal/session"
)

type handlers struct {
	sessions Sessions
	ingester Ingester
	limiter  *clientLimiter
	logger   *slog.Logger
}

// ingestResponse is the body of every ingest reply.
type ingestResponse struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

// ErrorResponse is the body of a failed session request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type startRequest struct {
	Topic    string `json:"topic"`
	Category string `json:"category"`
}

type endRequest struct {
	SessionID string `json:"session_id"`
}

// handleIngest handles POST /api/ingest.
func (h *handlers) handleIngest(c *gin.Context) {
	if !h.limiter.Allow(c.ClientIP()) {
		metrics.IngestRateLimited.Inc()
		c.JSON(http.StatusTooManyRequests, ingestResponse{Errors: []string{"rate limit exceeded"}})
		return
	}

	var req ingest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.IngestTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		c.JSON(http.StatusBadRequest, ingestResponse{Errors: []string{"malformed JSON: " + err.Error()}})
		return
	}

	res, err := h.ingester.Ingest(c.Request.Context(), &req)
	var (
		verr *ingest.ValidationError
		rej  *ingest.RejectionError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ingestResponse{Errors: verr.Problems})
	case errors.As(err, &rej):
		c.JSON(http.StatusUnprocessableEntity, ingestResponse{Errors: []string{rej.Error()}})
	case err != nil:
		h.log(c).Error("ingest failed", "error", err)
		c.JSON(http.StatusInternalServerError, ingestResponse{Errors: []string{err.Error()}})
	case !res.OK:
		c.JSON(http.StatusMultiStatus, ingestResponse{Errors: res.Errors})
	default:
		c.JSON(http.StatusOK, ingestResponse{OK: true, Errors: []string{}})
	}
}

// handleStart handles POST /api/sessions.
func (h *handlers) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.sessions.StartSession(c.Request.Context(), req.Topic, req.Category)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleEvent handles POST /api/sessions/events.
func (h *handlers) handleEvent(c *gin.Context) {
	var ev interview.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.sessions.RecordEvent(c.Request.Context(), ev)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleContext handles GET /api/sessions/context.
func (h *handlers) handleContext(c *gin.Context) {
	res, err := h.sessions.GetContext(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleEnd handles POST /api/sessions/end. The body is optional.
func (h *handlers) handleEnd(c *gin.Context) {
	var req endRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	res, err := h.sessions.EndSession(c.Request.Context(), req.SessionID)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleHealth handles GET /api/health.
func (h *handlers) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		h.fail(c, http.StatusNotFound, "no_session", err)
	case errors.Is(err, session.ErrSessionCompleted):
		h.fail(c, http.StatusConflict, "session_completed", err)
	case errors.Is(err, interview.ErrUnknownKind):
		h.fail(c, http.StatusBadRequest, "unknown_kind", err)
	case errors.Is(err, interview.ErrInvalidEvent):
		h.fail(c, http.StatusBadRequest, "invalid_event", err)
	default:
		h.log(c).Error("session request failed", "path", c.FullPath(), "error", err)
		h.fail(c, http.StatusInternalServerError, "internal", err)
	}
}

func (h *handlers) fail(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: c.GetString(requestIDKey),
	})
}

func (h *handlers) log(c *gin.Context) *slog.Logger {
	return h.logger.With("request_id", c.GetString(requestIDKey))
}
