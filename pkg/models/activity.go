package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ActivityReactivate is the activity type recorded for a successful
// reactivation; every other entry uses the lower-cased status name.
const ActivityReactivate = "reactivate"

// JSONMap stores free-form key/value metadata as a JSON column
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	return json.Unmarshal(data, m)
}

// ActivityLogEntry represents one row of the append-only audit trail.
// Rows are never mutated or deleted after being written.
type ActivityLogEntry struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"index;not null"`
	ActivityType string    `json:"activity_type" gorm:"not null"`
	Metadata     JSONMap   `json:"metadata,omitempty" gorm:"type:json"`
	Timestamp    time.Time `json:"timestamp" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName overrides the gorm table name
func (ActivityLogEntry) TableName() string {
	return "activity_log"
}
