package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vawtech/presence/pkg/models"
)

// presenceRepositoryImpl implements PresenceRepository
type presenceRepositoryImpl struct {
	db *gorm.DB
}

// NewPresenceRepository creates a new presence repository
func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &presenceRepositoryImpl{db: db}
}

// GetPresence retrieves a user's current presence record
func (r *presenceRepositoryImpl) GetPresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	var record models.PresenceRecord
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}

// SavePresence creates or updates a user's presence record
func (r *presenceRepositoryImpl) SavePresence(ctx context.Context, record *models.PresenceRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.LastActivityAt.IsZero() {
		record.LastActivityAt = time.Now()
	}
	record.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).Save(record)
	return result.Error
}

// TouchActivity updates a user's last_activity_at timestamp
func (r *presenceRepositoryImpl) TouchActivity(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&models.PresenceRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"last_activity_at": time.Now(),
			"updated_at":       time.Now(),
		}).Error
}

// GetByStatus retrieves all user IDs with a specific status
func (r *presenceRepositoryImpl) GetByStatus(ctx context.Context, status models.Status) ([]string, error) {
	var userIDs []string
	result := r.db.WithContext(ctx).
		Model(&models.PresenceRecord{}).
		Where("status = ?", status).
		Pluck("user_id", &userIDs)
	return userIDs, result.Error
}

// GetOnlineUsers retrieves all user IDs with status online
func (r *presenceRepositoryImpl) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return r.GetByStatus(ctx, models.StatusOnline)
}

// GetStale retrieves user IDs whose last activity is older than the given duration
func (r *presenceRepositoryImpl) GetStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	var userIDs []string
	staleBefore := time.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Model(&models.PresenceRecord{}).
		Where("last_activity_at < ? AND status != ?", staleBefore, models.StatusOffline).
		Pluck("user_id", &userIDs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get stale presences: %w", result.Error)
	}
	return userIDs, nil
}
