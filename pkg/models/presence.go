package models

import "time"

// Status represents a user's presence status
type Status string

const (
	StatusOnline      Status = "online"
	StatusCoffeeBreak Status = "coffee_break"
	StatusAFK         Status = "afk"
	StatusResting     Status = "resting"
	StatusSleeping    Status = "sleeping"
	StatusOffline     Status = "offline"
)

// AllStatuses lists every recognized status value
var AllStatuses = []Status{
	StatusOnline,
	StatusCoffeeBreak,
	StatusAFK,
	StatusResting,
	StatusSleeping,
	StatusOffline,
}

// Valid reports whether s is a recognized status value
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusCoffeeBreak, StatusAFK, StatusResting, StatusSleeping, StatusOffline:
		return true
	}
	return false
}

// Lockable reports whether s may carry a reactivation code.
// Only supervisor-enforced states require a challenge to exit.
func (s Status) Lockable() bool {
	return s == StatusResting || s == StatusSleeping
}

// DisplayName returns the human-readable label for a status
func (s Status) DisplayName() string {
	switch s {
	case StatusOnline:
		return "Online"
	case StatusCoffeeBreak:
		return "Coffee Break"
	case StatusAFK:
		return "AFK"
	case StatusResting:
		return "Resting"
	case StatusSleeping:
		return "Sleeping"
	case StatusOffline:
		return "Offline"
	}
	return "Unknown"
}

// PresenceRecord represents a user's current presence. One row per user.
// ReactivationCode is non-nil only while a supervisor lock is pending;
// any manual status update clears it.
type PresenceRecord struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	UserID           string    `json:"user_id" gorm:"uniqueIndex;not null"`
	Status           Status    `json:"status" gorm:"not null"`
	ReactivationCode *string   `json:"reactivation_code,omitempty"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName overrides the gorm table name
func (PresenceRecord) TableName() string {
	return "presence"
}

// DefaultPresence returns the record assumed for a user with no stored row yet
func DefaultPresence(userID string) *PresenceRecord {
	now := time.Now()
	return &PresenceRecord{
		UserID:         userID,
		Status:         StatusOnline,
		LastActivityAt: now,
		UpdatedAt:      now,
	}
}
