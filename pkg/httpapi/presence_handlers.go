package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/vawtech/presence/pkg/errors"
	"github.com/vawtech/presence/pkg/httputil"
	"github.com/vawtech/presence/pkg/models"
	"github.com/vawtech/presence/pkg/services"
)

// PresenceHandlers handles presence-related HTTP requests
type PresenceHandlers struct {
	service      services.PresenceService
	errHandler   *apperrors.Handler
	breakDefault time.Duration
}

// NewPresenceHandlers creates new presence handlers
func NewPresenceHandlers(service services.PresenceService, errHandler *apperrors.Handler, breakDefault time.Duration) *PresenceHandlers {
	return &PresenceHandlers{
		service:      service,
		errHandler:   errHandler,
		breakDefault: breakDefault,
	}
}

// authorizeActor rejects callers acting on another user without supervisory
// privilege. With authentication disabled every caller is allowed.
func (ph *PresenceHandlers) authorizeActor(w http.ResponseWriter, r *http.Request, userID string) bool {
	claims := ClaimsFromRequest(r)
	if claims == nil || claims.IsSupervisor() || claims.UserID == userID {
		return true
	}

	ph.errHandler.Handle(w,
		apperrors.AuthorizationErrorf("NOT_RECORD_OWNER", "cannot modify another user's presence"),
		httputil.GetTraceID(r))
	return false
}

// GetPresence handles GET /api/presence/{userID}
func (ph *PresenceHandlers) GetPresence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		ph.errHandler.Handle(w, apperrors.ValidationErrorf("MISSING_USER_ID", "user ID is required"), httputil.GetTraceID(r))
		return
	}

	record, err := ph.service.GetStatus(r.Context(), userID)
	if err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// UpdateStatus handles POST /api/presence/{userID}/status
func (ph *PresenceHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Status models.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ph.errHandler.Handle(w, apperrors.ValidationErrorf("INVALID_JSON", "invalid request body"), httputil.GetTraceID(r))
		return
	}

	if !ph.authorizeActor(w, r, userID) {
		return
	}

	if err := ph.service.SetStatus(r.Context(), userID, req.Status); err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	record, err := ph.service.GetStatus(r.Context(), userID)
	if err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// Reactivate handles POST /api/presence/{userID}/reactivate.
// A wrong code is an expected outcome, not an error: the response is
// 200 with reactivated=false.
func (ph *PresenceHandlers) Reactivate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ph.errHandler.Handle(w, apperrors.ValidationErrorf("INVALID_JSON", "invalid request body"), httputil.GetTraceID(r))
		return
	}

	if !ph.authorizeActor(w, r, userID) {
		return
	}

	ok, err := ph.service.RequestReactivation(r.Context(), userID, req.Code)
	if err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reactivated": ok,
	})
}

// Lock handles POST /api/presence/{userID}/lock (supervisor only)
func (ph *PresenceHandlers) Lock(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Status models.Status `json:"status"`
		Code   string        `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ph.errHandler.Handle(w, apperrors.ValidationErrorf("INVALID_JSON", "invalid request body"), httputil.GetTraceID(r))
		return
	}

	if err := ph.service.Lock(r.Context(), userID, req.Status, req.Code); err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	record, err := ph.service.GetStatus(r.Context(), userID)
	if err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// StartBreak handles POST /api/presence/{userID}/break
func (ph *PresenceHandlers) StartBreak(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		DurationSeconds int `json:"duration_seconds"`
	}
	if r.Body != nil {
		// Body is optional; an empty one falls back to the configured default
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if !ph.authorizeActor(w, r, userID) {
		return
	}

	duration := ph.breakDefault
	if req.DurationSeconds > 0 {
		duration = time.Duration(req.DurationSeconds) * time.Second
	}

	session, err := ph.service.StartBreak(r.Context(), userID, duration)
	if err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":           userID,
		"remaining_seconds": session.Remaining(),
		"resume_status":     session.ResumeStatus(),
	})
}

// EndBreak handles DELETE /api/presence/{userID}/break
func (ph *PresenceHandlers) EndBreak(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if !ph.authorizeActor(w, r, userID) {
		return
	}

	if err := ph.service.EndBreak(r.Context(), userID); err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetActivity handles GET /api/presence/{userID}/activity
func (ph *PresenceHandlers) GetActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	entries, total, err := ph.service.GetActivity(r.Context(), userID, limit, offset)
	if err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// ListOnline handles GET /api/presence/online
func (ph *PresenceHandlers) ListOnline(w http.ResponseWriter, r *http.Request) {
	users, err := ph.service.GetOnlineUsers(r.Context())
	if err != nil {
		ph.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": len(users),
	})
}

// RegisterPresenceRoutes registers all presence routes
func RegisterPresenceRoutes(r chi.Router, handlers *PresenceHandlers, errHandler *apperrors.Handler) {
	r.Get("/online", handlers.ListOnline)
	r.Get("/{userID}", handlers.GetPresence)
	r.Post("/{userID}/status", handlers.UpdateStatus)
	r.Post("/{userID}/reactivate", handlers.Reactivate)
	r.Post("/{userID}/break", handlers.StartBreak)
	r.Delete("/{userID}/break", handlers.EndBreak)
	r.Get("/{userID}/activity", handlers.GetActivity)
	r.With(RequireSupervisor(errHandler)).Post("/{userID}/lock", handlers.Lock)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
