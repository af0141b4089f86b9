package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vawtech/presence/pkg/cache"
	apperrors "github.com/vawtech/presence/pkg/errors"
	"github.com/vawtech/presence/pkg/events"
	"github.com/vawtech/presence/pkg/feed"
	"github.com/vawtech/presence/pkg/logging"
	"github.com/vawtech/presence/pkg/metrics"
	"github.com/vawtech/presence/pkg/models"
	"github.com/vawtech/presence/pkg/repository"
)

const presenceCacheTTL = 30 * time.Second

// PresenceService validates and applies presence status transitions
type PresenceService interface {
	// GetStatus retrieves a user's presence; users without a stored record
	// are reported with the default online status
	GetStatus(ctx context.Context, userID string) (*models.PresenceRecord, error)

	// SetStatus applies a manual status transition. Any pending reactivation
	// code and any tracked break session are discarded.
	SetStatus(ctx context.Context, userID string, status models.Status) error

	// Lock places a user into a supervisor-enforced state with a
	// reactivation code the user must submit to return online
	Lock(ctx context.Context, userID string, status models.Status, code string) error

	// RequestReactivation checks a submitted code against the pending one.
	// A mismatch or absent code returns (false, nil): the expected outcome
	// for a wrong code, distinct from a connectivity failure.
	RequestReactivation(ctx context.Context, userID, code string) (bool, error)

	// StartBreak transitions the user to coffee_break and starts a countdown
	// that reverts to the pre-break status on expiry
	StartBreak(ctx context.Context, userID string, duration time.Duration) (*BreakSession, error)

	// EndBreak cancels an active break early and restores the pre-break status
	EndBreak(ctx context.Context, userID string) error

	// GetOnlineUsers retrieves all user IDs currently online
	GetOnlineUsers(ctx context.Context) ([]string, error)

	// GetActivity retrieves a user's audit trail, newest first
	GetActivity(ctx context.Context, userID string, limit, offset int) ([]models.ActivityLogEntry, int64, error)

	// SweepStale marks users offline whose last activity is older than the
	// given duration; returns the number of users swept
	SweepStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// PresenceServiceImpl implements PresenceService
type PresenceServiceImpl struct {
	repo         repository.PresenceRepository
	activityRepo repository.ActivityRepository
	feed         *feed.Feed
	cache        *cache.LocalCache
	dispatcher   events.Dispatcher
	metrics      *metrics.Metrics

	breakTick time.Duration

	mu     sync.Mutex
	breaks map[string]*BreakSession
}

// NewPresenceService creates a presence service without cache or realtime push
func NewPresenceService(presenceRepo repository.PresenceRepository, activityRepo repository.ActivityRepository) *PresenceServiceImpl {
	return &PresenceServiceImpl{
		repo:         presenceRepo,
		activityRepo: activityRepo,
		breakTick:    time.Second,
		breaks:       make(map[string]*BreakSession),
	}
}

// NewPresenceServiceFull creates a presence service with caching, the
// in-process feed, websocket dispatch and metrics wired in
func NewPresenceServiceFull(
	presenceRepo repository.PresenceRepository,
	activityRepo repository.ActivityRepository,
	presenceFeed *feed.Feed,
	localCache *cache.LocalCache,
	dispatcher events.Dispatcher,
	m *metrics.Metrics,
) *PresenceServiceImpl {
	return &PresenceServiceImpl{
		repo:         presenceRepo,
		activityRepo: activityRepo,
		feed:         presenceFeed,
		cache:        localCache,
		dispatcher:   dispatcher,
		metrics:      m,
		breakTick:    time.Second,
		breaks:       make(map[string]*BreakSession),
	}
}

func cacheKey(userID string) string {
	return "presence:" + userID
}

// GetStatus retrieves a user's presence
func (s *PresenceServiceImpl) GetStatus(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey(userID)); ok {
			if record, ok := cached.(*models.PresenceRecord); ok {
				return record, nil
			}
		}
	}

	record, err := s.repo.GetPresence(ctx, userID)
	if err != nil {
		return nil, apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to read presence").Wrap(err)
	}
	if record == nil {
		// No stored row yet: assume the default, don't fail
		record = models.DefaultPresence(userID)
	}

	if s.cache != nil {
		s.cache.Set(cacheKey(userID), record, presenceCacheTTL)
	}
	return record, nil
}

// SetStatus applies a manual status transition
func (s *PresenceServiceImpl) SetStatus(ctx context.Context, userID string, status models.Status) error {
	if !status.Valid() {
		return apperrors.ValidationErrorf("INVALID_STATUS", "unrecognized status %q", status)
	}

	record, err := s.repo.GetPresence(ctx, userID)
	if err != nil {
		return apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to read presence").Wrap(err)
	}
	if record == nil {
		record = models.DefaultPresence(userID)
	}

	record.Status = status
	record.ReactivationCode = nil

	if err := s.repo.SavePresence(ctx, record); err != nil {
		return apperrors.ExternalServiceErrorf("STORE_WRITE_FAILED", "failed to write presence").Wrap(err)
	}

	// Switching away from a break always clears the countdown; switching
	// into one gets a fresh session from StartBreak.
	s.discardBreak(userID)

	s.appendActivity(ctx, userID, string(status), nil)
	s.invalidate(userID)

	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(status)).Inc()
	}

	s.publish(*record, events.EventPresenceUpdated)
	return nil
}

// Lock places a user into a supervisor-enforced state with a reactivation code
func (s *PresenceServiceImpl) Lock(ctx context.Context, userID string, status models.Status, code string) error {
	if !status.Lockable() {
		return apperrors.ValidationErrorf("STATUS_NOT_LOCKABLE", "status %q cannot carry a reactivation code", status)
	}
	if !isNumericCode(code) {
		return apperrors.ValidationErrorf("MALFORMED_CODE", "reactivation code must be numeric")
	}

	record, err := s.repo.GetPresence(ctx, userID)
	if err != nil {
		return apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to read presence").Wrap(err)
	}
	if record == nil {
		record = models.DefaultPresence(userID)
	}

	record.Status = status
	record.ReactivationCode = &code

	if err := s.repo.SavePresence(ctx, record); err != nil {
		return apperrors.ExternalServiceErrorf("STORE_WRITE_FAILED", "failed to write presence").Wrap(err)
	}

	s.discardBreak(userID)

	s.appendActivity(ctx, userID, string(status), models.JSONMap{"locked": true})
	s.invalidate(userID)

	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(status)).Inc()
	}

	s.publish(*record, events.EventPresenceLocked)
	return nil
}

// RequestReactivation checks a submitted code against the pending one
func (s *PresenceServiceImpl) RequestReactivation(ctx context.Context, userID, code string) (bool, error) {
	record, err := s.repo.GetPresence(ctx, userID)
	if err != nil {
		return false, apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to read presence").Wrap(err)
	}

	if record == nil || record.ReactivationCode == nil || *record.ReactivationCode != code {
		if s.metrics != nil {
			s.metrics.ReactivationAttempts.WithLabelValues("rejected").Inc()
		}
		return false, nil
	}

	if err := s.SetStatus(ctx, userID, models.StatusOnline); err != nil {
		return false, err
	}

	// Second write: confirmed human activity. Clearing the code again is
	// idempotent with SetStatus.
	if err := s.repo.TouchActivity(ctx, userID); err != nil {
		return false, apperrors.ExternalServiceErrorf("STORE_WRITE_FAILED", "failed to stamp activity").Wrap(err)
	}
	s.invalidate(userID)

	s.appendActivity(ctx, userID, models.ActivityReactivate, models.JSONMap{"code": code})

	if s.metrics != nil {
		s.metrics.ReactivationAttempts.WithLabelValues("accepted").Inc()
	}

	if updated, err := s.repo.GetPresence(ctx, userID); err == nil && updated != nil {
		s.publish(*updated, events.EventReactivation)
	}
	return true, nil
}

// StartBreak transitions the user to coffee_break and starts the countdown
func (s *PresenceServiceImpl) StartBreak(ctx context.Context, userID string, duration time.Duration) (*BreakSession, error) {
	if duration <= 0 {
		return nil, apperrors.ValidationErrorf("INVALID_DURATION", "break duration must be positive")
	}

	record, err := s.repo.GetPresence(ctx, userID)
	if err != nil {
		return nil, apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to read presence").Wrap(err)
	}

	resume := models.StatusOnline
	if record != nil {
		if record.ReactivationCode != nil {
			// A locked user exits through reactivation, not a coffee break
			return nil, apperrors.ConflictErrorf("PRESENCE_LOCKED", "a reactivation code is pending")
		}
		if record.Status == models.StatusCoffeeBreak {
			return nil, apperrors.ConflictErrorf("BREAK_ACTIVE", "a break is already running")
		}
		resume = record.Status
	}

	if err := s.SetStatus(ctx, userID, models.StatusCoffeeBreak); err != nil {
		return nil, err
	}

	session := newBreakSession(userID, resume, duration, s.breakTick, func() {
		s.handleBreakExpiry(userID, resume)
	})

	s.mu.Lock()
	s.breaks[userID] = session
	s.mu.Unlock()

	s.dispatch(events.Event{
		Type:    events.EventBreakStarted,
		Channel: events.PresenceChannel(userID),
		UserID:  userID,
		Data: map[string]interface{}{
			"user_id":           userID,
			"remaining_seconds": session.Remaining(),
			"resume_status":     resume,
		},
	})
	return session, nil
}

// EndBreak cancels an active break early and restores the pre-break status
func (s *PresenceServiceImpl) EndBreak(ctx context.Context, userID string) error {
	s.mu.Lock()
	session, ok := s.breaks[userID]
	s.mu.Unlock()

	if !ok {
		return apperrors.NotFoundErrorf("NO_ACTIVE_BREAK", "no break session for user %s", userID)
	}

	session.Stop()

	resume := session.ResumeStatus()
	if err := s.SetStatus(ctx, userID, resume); err != nil {
		return err
	}

	s.dispatch(events.Event{
		Type:    events.EventBreakEnded,
		Channel: events.PresenceChannel(userID),
		UserID:  userID,
		Data: map[string]interface{}{
			"user_id": userID,
			"status":  resume,
			"expired": false,
		},
	})
	return nil
}

// handleBreakExpiry fires from the countdown goroutine when a break runs out
func (s *PresenceServiceImpl) handleBreakExpiry(userID string, resume models.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.SetStatus(ctx, userID, resume); err != nil {
		logging.Warn("failed to restore status after break",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	s.dispatch(events.Event{
		Type:    events.EventBreakEnded,
		Channel: events.PresenceChannel(userID),
		UserID:  userID,
		Data: map[string]interface{}{
			"user_id": userID,
			"status":  resume,
			"expired": true,
		},
	})
}

// GetOnlineUsers retrieves all user IDs currently online
func (s *PresenceServiceImpl) GetOnlineUsers(ctx context.Context) ([]string, error) {
	users, err := s.repo.GetOnlineUsers(ctx)
	if err != nil {
		return nil, apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to list online users").Wrap(err)
	}
	return users, nil
}

// GetActivity retrieves a user's audit trail, newest first
func (s *PresenceServiceImpl) GetActivity(ctx context.Context, userID string, limit, offset int) ([]models.ActivityLogEntry, int64, error) {
	entries, err := s.activityRepo.GetUserActivity(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to read activity log").Wrap(err)
	}

	count, err := s.activityRepo.GetUserActivityCount(ctx, userID)
	if err != nil {
		return nil, 0, apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to count activity log").Wrap(err)
	}
	return entries, count, nil
}

// SweepStale marks users offline whose last activity is too old
func (s *PresenceServiceImpl) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	staleUsers, err := s.repo.GetStale(ctx, olderThan)
	if err != nil {
		return 0, apperrors.ExternalServiceErrorf("STORE_READ_FAILED", "failed to list stale users").Wrap(err)
	}

	count := 0
	for _, userID := range staleUsers {
		if err := s.SetStatus(ctx, userID, models.StatusOffline); err != nil {
			logging.Warn("failed to sweep stale user",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

// RunStaleSweeper runs SweepStale on an interval until ctx is cancelled
func (s *PresenceServiceImpl) RunStaleSweeper(ctx context.Context, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.SweepStale(ctx, olderThan)
			if err != nil {
				logging.Warn("stale sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				logging.Info("swept stale presences", zap.Int("count", swept))
			}
		}
	}
}

// appendActivity writes one audit row. The log is advisory: a failure here
// never rolls back the presence write it follows.
func (s *PresenceServiceImpl) appendActivity(ctx context.Context, userID, activityType string, metadata models.JSONMap) {
	entry := &models.ActivityLogEntry{
		UserID:       userID,
		ActivityType: activityType,
		Metadata:     metadata,
		Timestamp:    time.Now(),
	}
	if err := s.activityRepo.Append(ctx, entry); err != nil {
		logging.Warn("failed to append activity log entry",
			zap.String("user_id", userID),
			zap.String("activity_type", activityType),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.ActivityLogFailures.Inc()
		}
	}
}

func (s *PresenceServiceImpl) discardBreak(userID string) {
	s.mu.Lock()
	session, ok := s.breaks[userID]
	if ok {
		delete(s.breaks, userID)
	}
	s.mu.Unlock()

	if ok {
		session.Stop()
	}
}

func (s *PresenceServiceImpl) invalidate(userID string) {
	if s.cache != nil {
		s.cache.Delete(cacheKey(userID))
	}
}

func (s *PresenceServiceImpl) publish(record models.PresenceRecord, eventType string) {
	if s.feed != nil {
		s.feed.Publish(record)
	}

	s.dispatch(events.Event{
		Type:    eventType,
		Channel: events.PresenceChannel(record.UserID),
		UserID:  record.UserID,
		Data:    record,
	})
}

func (s *PresenceServiceImpl) dispatch(event events.Event) {
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(event)
	}
}

func isNumericCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
