package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vawtech/presence/pkg/models"
)

// activityRepositoryImpl implements ActivityRepository
type activityRepositoryImpl struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepositoryImpl{db: db}
}

// Append writes one immutable log entry
func (r *activityRepositoryImpl) Append(ctx context.Context, entry *models.ActivityLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	result := r.db.WithContext(ctx).Create(entry)
	return result.Error
}

// GetUserActivity retrieves entries for a user, newest first
func (r *activityRepositoryImpl) GetUserActivity(ctx context.Context, userID string, limit, offset int) ([]models.ActivityLogEntry, error) {
	var entries []models.ActivityLogEntry
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries)
	return entries, result.Error
}

// GetUserActivityCount returns the total count of entries for a user
func (r *activityRepositoryImpl) GetUserActivityCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.ActivityLogEntry{}).
		Where("user_id = ?", userID).
		Count(&count)
	return count, result.Error
}

// GetRecent retrieves the most recent entries system-wide
func (r *activityRepositoryImpl) GetRecent(ctx context.Context, limit int) ([]models.ActivityLogEntry, error) {
	var entries []models.ActivityLogEntry
	result := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries)
	return entries, result.Error
}
