package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vawtech/presence/pkg/logging"
)

// ErrorResponse represents an error response to be sent to the client
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"trace_id,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Type    string                 `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Handler handles errors and writes appropriate HTTP responses
type Handler struct {
	logErrors bool
}

// NewHandler creates a new error handler
func NewHandler(logErrors bool) *Handler {
	return &Handler{logErrors: logErrors}
}

// Handle handles an error and writes the response
func (h *Handler) Handle(w http.ResponseWriter, err error, traceID string) {
	w.Header().Set("Content-Type", "application/json")

	appErr, ok := err.(*AppError)
	if !ok {
		// Wrap unknown errors as internal errors
		appErr = InternalErrorf("INTERNAL_ERROR", "An unexpected error occurred").Wrap(err)
	}

	if h.logErrors {
		logging.Error("request failed",
			zap.String("trace_id", traceID),
			zap.String("type", string(appErr.Type)),
			zap.String("code", appErr.Code),
			zap.Error(appErr.Err),
		)
	}

	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		TraceID: traceID,
		Error: ErrorDetail{
			Type:    string(appErr.Type),
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// HandlePanic handles a recovered panic and writes an error response
func (h *Handler) HandlePanic(w http.ResponseWriter, recovered interface{}, traceID string) {
	if h.logErrors {
		logging.Error("panic recovered",
			zap.String("trace_id", traceID),
			zap.Any("value", recovered),
		)
	}
	h.Handle(w, InternalErrorf("PANIC", "An unexpected error occurred"), traceID)
}
