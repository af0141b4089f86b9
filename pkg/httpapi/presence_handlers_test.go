package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vawtech/presence/pkg/auth"
	apperrors "github.com/vawtech/presence/pkg/errors"
	"github.com/vawtech/presence/pkg/models"
	"github.com/vawtech/presence/pkg/services"
)

// stubService is a canned PresenceService for handler tests
type stubService struct {
	records      map[string]*models.PresenceRecord
	reactivated  bool
	lockCalls    []lockCall
	statusCalls  []statusCall
	onlineUsers  []string
	activityLog  []models.ActivityLogEntry
	returnErr    error
	breakSession *services.BreakSession
}

type lockCall struct {
	userID string
	status models.Status
	code   string
}

type statusCall struct {
	userID string
	status models.Status
}

func newStubService() *stubService {
	return &stubService{records: make(map[string]*models.PresenceRecord)}
}

func (s *stubService) GetStatus(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	if s.returnErr != nil {
		return nil, s.returnErr
	}
	if record, ok := s.records[userID]; ok {
		return record, nil
	}
	return models.DefaultPresence(userID), nil
}

func (s *stubService) SetStatus(ctx context.Context, userID string, status models.Status) error {
	if s.returnErr != nil {
		return s.returnErr
	}
	if !status.Valid() {
		return apperrors.ValidationErrorf("INVALID_STATUS", "unrecognized status %q", status)
	}
	s.statusCalls = append(s.statusCalls, statusCall{userID, status})
	s.records[userID] = &models.PresenceRecord{UserID: userID, Status: status}
	return nil
}

func (s *stubService) Lock(ctx context.Context, userID string, status models.Status, code string) error {
	if s.returnErr != nil {
		return s.returnErr
	}
	s.lockCalls = append(s.lockCalls, lockCall{userID, status, code})
	s.records[userID] = &models.PresenceRecord{UserID: userID, Status: status, ReactivationCode: &code}
	return nil
}

func (s *stubService) RequestReactivation(ctx context.Context, userID, code string) (bool, error) {
	if s.returnErr != nil {
		return false, s.returnErr
	}
	return s.reactivated, nil
}

func (s *stubService) StartBreak(ctx context.Context, userID string, duration time.Duration) (*services.BreakSession, error) {
	if s.returnErr != nil {
		return nil, s.returnErr
	}
	return s.breakSession, nil
}

func (s *stubService) EndBreak(ctx context.Context, userID string) error {
	return s.returnErr
}

func (s *stubService) GetOnlineUsers(ctx context.Context) ([]string, error) {
	if s.returnErr != nil {
		return nil, s.returnErr
	}
	return s.onlineUsers, nil
}

func (s *stubService) GetActivity(ctx context.Context, userID string, limit, offset int) ([]models.ActivityLogEntry, int64, error) {
	if s.returnErr != nil {
		return nil, 0, s.returnErr
	}
	return s.activityLog, int64(len(s.activityLog)), nil
}

func (s *stubService) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, s.returnErr
}

func newTestRouter(svc services.PresenceService, tokens *auth.TokenManager) chi.Router {
	errHandler := apperrors.NewHandler(false)
	handlers := NewPresenceHandlers(svc, errHandler, 5*time.Minute)

	r := chi.NewRouter()
	r.Use(TraceIDMiddleware)
	r.Route("/api/presence", func(api chi.Router) {
		api.Use(AuthMiddleware(tokens, errHandler))
		RegisterPresenceRoutes(api, handlers, errHandler)
	})
	return r
}

func TestGetPresenceEndpoint(t *testing.T) {
	svc := newStubService()
	svc.records["user-1"] = &models.PresenceRecord{UserID: "user-1", Status: models.StatusAFK}
	router := newTestRouter(svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presence/user-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var record models.PresenceRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, models.StatusAFK, record.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestGetPresenceUnknownUserDefaultsOnline(t *testing.T) {
	router := newTestRouter(newStubService(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presence/nobody", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var record models.PresenceRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, models.StatusOnline, record.Status)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(svc, nil)

	body := bytes.NewBufferString(`{"status":"resting"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/presence/user-1/status", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.statusCalls, 1)
	assert.Equal(t, models.StatusResting, svc.statusCalls[0].status)
}

func TestUpdateStatusRejectsBadJSON(t *testing.T) {
	router := newTestRouter(newStubService(), nil)

	body := bytes.NewBufferString(`{not json`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/presence/user-1/status", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	router := newTestRouter(newStubService(), nil)

	body := bytes.NewBufferString(`{"status":"napping"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/presence/user-1/status", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "INVALID_STATUS", envelope.Error.Code)
}

func TestReactivateEndpointWrongCode(t *testing.T) {
	svc := newStubService()
	svc.reactivated = false
	router := newTestRouter(svc, nil)

	body := bytes.NewBufferString(`{"code":"1111"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/presence/user-1/reactivate", body))

	// A wrong code is a 200 with reactivated=false, not an error status
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp["reactivated"])
}

func TestReactivateEndpointCorrectCode(t *testing.T) {
	svc := newStubService()
	svc.reactivated = true
	router := newTestRouter(svc, nil)

	body := bytes.NewBufferString(`{"code":"4821"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/presence/user-1/reactivate", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["reactivated"])
}

func TestListOnlineEndpoint(t *testing.T) {
	svc := newStubService()
	svc.onlineUsers = []string{"a", "b"}
	router := newTestRouter(svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presence/online", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Users []string `json:"users"`
		Total int      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"a", "b"}, resp.Users)
	assert.Equal(t, 2, resp.Total)
}

func TestGetActivityEndpoint(t *testing.T) {
	svc := newStubService()
	svc.activityLog = []models.ActivityLogEntry{
		{UserID: "user-1", ActivityType: "online"},
		{UserID: "user-1", ActivityType: "resting"},
	}
	router := newTestRouter(svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presence/user-1/activity?limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []models.ActivityLogEntry `json:"entries"`
		Total   int64                     `json:"total"`
		Limit   int                       `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 2)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, 10, resp.Limit)
}

func TestStoreFailureSurfacesAsBadGateway(t *testing.T) {
	svc := newStubService()
	svc.returnErr = apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to read presence")
	router := newTestRouter(svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presence/user-1", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAuthRequiredWhenTokensConfigured(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour, "presence-engine")
	router := newTestRouter(newStubService(), tokens)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/presence/user-1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := tokens.Generate("user-1", auth.RoleStaff)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/presence/user-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaffCannotModifyOtherUsers(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour, "presence-engine")
	svc := newStubService()
	router := newTestRouter(svc, tokens)

	token, err := tokens.Generate("user-1", auth.RoleStaff)
	require.NoError(t, err)

	body := bytes.NewBufferString(`{"status":"afk"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/presence/user-2/status", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.statusCalls)
}

func TestLockRequiresSupervisor(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour, "presence-engine")
	svc := newStubService()
	router := newTestRouter(svc, tokens)

	staffToken, err := tokens.Generate("user-1", auth.RoleStaff)
	require.NoError(t, err)

	body := bytes.NewBufferString(`{"status":"resting","code":"4821"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/presence/user-1/lock", body)
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.lockCalls)

	bossToken, err := tokens.Generate("boss", auth.RoleSupervisor)
	require.NoError(t, err)

	body = bytes.NewBufferString(`{"status":"resting","code":"4821"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/presence/user-1/lock", body)
	req.Header.Set("Authorization", "Bearer "+bossToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.lockCalls, 1)
	assert.Equal(t, lockCall{"user-1", models.StatusResting, "4821"}, svc.lockCalls[0])
}
