package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vawtech/presence/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.PresenceRecord{}, &models.ActivityLogEntry{}))
	return db
}

func TestGetPresenceMissingRecord(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))

	record, err := repo.GetPresence(context.Background(), "nobody")
	require.NoError(t, err, "a missing record is not an error")
	assert.Nil(t, record)
}

func TestSaveAndGetPresence(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()

	code := "4821"
	record := &models.PresenceRecord{
		UserID:           "user-1",
		Status:           models.StatusResting,
		ReactivationCode: &code,
	}
	require.NoError(t, repo.SavePresence(ctx, record))
	assert.NotEmpty(t, record.ID, "an ID is assigned on first save")

	loaded, err := repo.GetPresence(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.StatusResting, loaded.Status)
	require.NotNil(t, loaded.ReactivationCode)
	assert.Equal(t, "4821", *loaded.ReactivationCode)
	assert.False(t, loaded.LastActivityAt.IsZero())
}

func TestSavePresenceOverwrites(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()

	record := &models.PresenceRecord{UserID: "user-1", Status: models.StatusOnline}
	require.NoError(t, repo.SavePresence(ctx, record))

	record.Status = models.StatusAFK
	require.NoError(t, repo.SavePresence(ctx, record))

	loaded, err := repo.GetPresence(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAFK, loaded.Status)

	var count int64
	require.NoError(t, repo.(*presenceRepositoryImpl).db.
		Model(&models.PresenceRecord{}).
		Where("user_id = ?", "user-1").
		Count(&count).Error)
	assert.Equal(t, int64(1), count, "one row per user")
}

func TestTouchActivity(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()

	record := &models.PresenceRecord{
		UserID:         "user-1",
		Status:         models.StatusOnline,
		LastActivityAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.SavePresence(ctx, record))

	require.NoError(t, repo.TouchActivity(ctx, "user-1"))

	loaded, err := repo.GetPresence(ctx, "user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), loaded.LastActivityAt, 5*time.Second)
}

func TestGetOnlineUsers(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SavePresence(ctx, &models.PresenceRecord{UserID: "a", Status: models.StatusOnline}))
	require.NoError(t, repo.SavePresence(ctx, &models.PresenceRecord{UserID: "b", Status: models.StatusSleeping}))
	require.NoError(t, repo.SavePresence(ctx, &models.PresenceRecord{UserID: "c", Status: models.StatusOnline}))

	users, err := repo.GetOnlineUsers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, users)
}

func TestGetStaleSkipsOfflineUsers(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	require.NoError(t, repo.SavePresence(ctx, &models.PresenceRecord{
		UserID: "stale", Status: models.StatusOnline, LastActivityAt: old,
	}))
	require.NoError(t, repo.SavePresence(ctx, &models.PresenceRecord{
		UserID: "already-offline", Status: models.StatusOffline, LastActivityAt: old,
	}))
	require.NoError(t, repo.SavePresence(ctx, &models.PresenceRecord{
		UserID: "fresh", Status: models.StatusOnline,
	}))

	users, err := repo.GetStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, users)
}

func TestActivityAppendAndRead(t *testing.T) {
	repo := NewActivityRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i, activityType := range []string{"online", "resting", models.ActivityReactivate} {
		entry := &models.ActivityLogEntry{
			UserID:       "user-1",
			ActivityType: activityType,
			Timestamp:    base.Add(time.Duration(i) * time.Second),
		}
		if activityType == models.ActivityReactivate {
			entry.Metadata = models.JSONMap{"code": "4821"}
		}
		require.NoError(t, repo.Append(ctx, entry))
	}

	entries, err := repo.GetUserActivity(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first
	assert.Equal(t, models.ActivityReactivate, entries[0].ActivityType)
	assert.Equal(t, "4821", entries[0].Metadata["code"])
	assert.Equal(t, "resting", entries[1].ActivityType)
	assert.Equal(t, "online", entries[2].ActivityType)

	count, err := repo.GetUserActivityCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestActivityPagination(t *testing.T) {
	repo := NewActivityRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, &models.ActivityLogEntry{
			UserID:       "user-1",
			ActivityType: "online",
			Timestamp:    base.Add(time.Duration(i) * time.Second),
		}))
	}

	page, err := repo.GetUserActivity(ctx, "user-1", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	tail, err := repo.GetUserActivity(ctx, "user-1", 10, 4)
	require.NoError(t, err)
	assert.Len(t, tail, 1)
}

func TestGetRecentSpansUsers(t *testing.T) {
	repo := NewActivityRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	require.NoError(t, repo.Append(ctx, &models.ActivityLogEntry{
		UserID: "a", ActivityType: "online", Timestamp: base,
	}))
	require.NoError(t, repo.Append(ctx, &models.ActivityLogEntry{
		UserID: "b", ActivityType: "afk", Timestamp: base.Add(time.Second),
	}))

	entries, err := repo.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].UserID)
}
