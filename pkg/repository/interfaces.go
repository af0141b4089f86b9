package repository

import (
	"context"
	"time"

	"github.com/vawtech/presence/pkg/models"
)

// PresenceRepository defines the interface for presence data access.
// A missing record is reported as (nil, nil); callers assume the default
// status for users without a stored row.
type PresenceRepository interface {
	// GetPresence retrieves a user's current presence record
	GetPresence(ctx context.Context, userID string) (*models.PresenceRecord, error)

	// SavePresence creates or updates a user's presence record
	SavePresence(ctx context.Context, record *models.PresenceRecord) error

	// TouchActivity updates a user's last_activity_at timestamp
	TouchActivity(ctx context.Context, userID string) error

	// GetByStatus retrieves all user IDs with a specific status
	GetByStatus(ctx context.Context, status models.Status) ([]string, error)

	// GetOnlineUsers retrieves all user IDs with status online
	GetOnlineUsers(ctx context.Context) ([]string, error)

	// GetStale retrieves user IDs whose last activity is older than the
	// given duration and who are not already offline
	GetStale(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// ActivityRepository defines the interface for the append-only activity log.
// Entries are never mutated or deleted; the log is an audit trail.
type ActivityRepository interface {
	// Append writes one immutable log entry
	Append(ctx context.Context, entry *models.ActivityLogEntry) error

	// GetUserActivity retrieves entries for a user, newest first
	GetUserActivity(ctx context.Context, userID string, limit, offset int) ([]models.ActivityLogEntry, error)

	// GetUserActivityCount returns the total count of entries for a user
	GetUserActivityCount(ctx context.Context, userID string) (int64, error)

	// GetRecent retrieves the most recent entries system-wide
	GetRecent(ctx context.Context, limit int) ([]models.ActivityLogEntry, error)
}
