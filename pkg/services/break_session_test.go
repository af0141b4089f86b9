package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vawtech/presence/pkg/models"
)

func TestBreakSessionCountsDownAndExpires(t *testing.T) {
	expired := make(chan struct{})
	session := newBreakSession("user-1", models.StatusOnline, 3*time.Second, time.Millisecond, func() {
		close(expired)
	})

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("countdown never expired")
	}

	assert.Equal(t, 0, session.Remaining())
	assert.False(t, session.Active())
}

func TestBreakSessionSimulatesLongBreak(t *testing.T) {
	// A full five-minute break at a millisecond tick
	expired := make(chan struct{})
	session := newBreakSession("user-1", models.StatusAFK, 300*time.Second, time.Millisecond, func() {
		close(expired)
	})

	require.Equal(t, "user-1", session.UserID())
	require.Equal(t, models.StatusAFK, session.ResumeStatus())

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("countdown never expired")
	}

	assert.Equal(t, 0, session.Remaining())
}

func TestBreakSessionStopSuppressesExpiry(t *testing.T) {
	var fired atomic.Bool
	session := newBreakSession("user-1", models.StatusOnline, time.Hour, time.Millisecond, func() {
		fired.Store(true)
	})

	session.Stop()
	assert.False(t, session.Active())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired.Load(), "onExpire must not fire after Stop")
}

func TestBreakSessionStopIsIdempotent(t *testing.T) {
	session := newBreakSession("user-1", models.StatusOnline, time.Hour, time.Millisecond, nil)

	session.Stop()
	session.Stop()
	session.Stop()

	assert.False(t, session.Active())
}

func TestBreakSessionExpiresExactlyOnce(t *testing.T) {
	var count atomic.Int32
	newBreakSession("user-1", models.StatusOnline, 2*time.Second, time.Millisecond, func() {
		count.Add(1)
	})

	assert.Eventually(t, func() bool {
		return count.Load() == 1
	}, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
}
