package services

import (
	"sync"
	"time"

	"github.com/vawtech/presence/pkg/models"
)

// BreakSession is the ephemeral countdown tracking an active coffee break.
// It lives only in this process; the persisted record just says
// coffee_break. The countdown is a cancellable ticker: ending a break early
// or tearing the owner down must call Stop, or the goroutine leaks.
type BreakSession struct {
	userID string
	resume models.Status

	stateMu   sync.Mutex
	remaining int
	active    bool

	done     chan struct{}
	stopOnce sync.Once
	onExpire func()
}

// newBreakSession starts a countdown of duration, ticking at tick.
// The tick normally equals one second; tests shrink it to simulate long
// breaks quickly. onExpire fires once if the countdown reaches zero without
// Stop being called.
func newBreakSession(userID string, resume models.Status, duration, tick time.Duration, onExpire func()) *BreakSession {
	b := &BreakSession{
		userID:    userID,
		resume:    resume,
		remaining: int(duration / time.Second),
		active:    true,
		done:      make(chan struct{}),
		onExpire:  onExpire,
	}
	go b.run(tick)
	return b
}

func (b *BreakSession) run(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return

		case <-ticker.C:
			b.stateMu.Lock()
			if b.remaining > 0 {
				b.remaining--
			}
			expired := b.remaining == 0
			if expired {
				b.active = false
			}
			b.stateMu.Unlock()

			if expired {
				b.stopOnce.Do(func() { close(b.done) })
				if b.onExpire != nil {
					b.onExpire()
				}
				return
			}
		}
	}
}

// UserID returns the user taking the break
func (b *BreakSession) UserID() string {
	return b.userID
}

// ResumeStatus returns the status restored when the break ends
func (b *BreakSession) ResumeStatus() models.Status {
	return b.resume
}

// Remaining returns the seconds left on the countdown
func (b *BreakSession) Remaining() int {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.remaining
}

// Active reports whether the countdown is still running
func (b *BreakSession) Active() bool {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.active
}

// Stop cancels the countdown without firing onExpire. Safe to call
// multiple times.
func (b *BreakSession) Stop() {
	b.stateMu.Lock()
	b.active = false
	b.stateMu.Unlock()

	b.stopOnce.Do(func() { close(b.done) })
}
