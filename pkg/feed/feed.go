// Package feed maintains live per-user mirrors of presence records for
// in-process consumers. Each subscriber receives the full record on every
// committed change; deliveries replace the mirror wholesale, never merge.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/vawtech/presence/pkg/models"
	"github.com/vawtech/presence/pkg/repository"
)

// UpdateFunc receives the full updated record on each committed change
type UpdateFunc func(record models.PresenceRecord)

// Feed fans presence changes out to any number of subscribers per user
type Feed struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64
	repo   repository.PresenceRepository
}

// New creates a feed backed by the given presence repository
func New(repo repository.PresenceRepository) *Feed {
	return &Feed{
		subs: make(map[string]map[uint64]*Subscription),
		repo: repo,
	}
}

// Subscribe registers a listener for one user's presence record. The current
// record is fetched once and delivered before any change notifications, since
// registration alone does not replay pre-existing state. Users without a
// stored record are seeded with the default online record.
//
// The returned subscription must be closed when the consumer is torn down.
// If the seed read fails no subscription is registered; the caller decides
// whether to retry.
func (f *Feed) Subscribe(ctx context.Context, userID string, fn UpdateFunc) (*Subscription, error) {
	record, err := f.repo.GetPresence(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed subscription for user %s: %w", userID, err)
	}
	if record == nil {
		record = models.DefaultPresence(userID)
	}

	f.mu.Lock()
	f.nextID++
	sub := &Subscription{
		id:     f.nextID,
		userID: userID,
		fn:     fn,
		feed:   f,
	}
	if f.subs[userID] == nil {
		f.subs[userID] = make(map[uint64]*Subscription)
	}
	f.subs[userID][sub.id] = sub
	f.mu.Unlock()

	sub.deliver(*record)
	return sub, nil
}

// Publish delivers a committed record to every subscriber of its user.
// Deliveries run synchronously in the caller's goroutine, so per-user
// ordering matches commit order for a single writer.
func (f *Feed) Publish(record models.PresenceRecord) {
	f.mu.RLock()
	subs := make([]*Subscription, 0, len(f.subs[record.UserID]))
	for _, sub := range f.subs[record.UserID] {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(record)
	}
}

// SubscriberCount returns the number of active subscriptions for a user
func (f *Feed) SubscriberCount(userID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[userID])
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userSubs, ok := f.subs[sub.userID]; ok {
		delete(userSubs, sub.id)
		if len(userSubs) == 0 {
			delete(f.subs, sub.userID)
		}
	}
}

// Subscription is a handle for one registered listener
type Subscription struct {
	id     uint64
	userID string
	fn     UpdateFunc
	feed   *Feed

	mu     sync.Mutex // serializes deliveries against Close
	closed bool
}

// UserID returns the user this subscription mirrors
func (s *Subscription) UserID() string {
	return s.userID
}

func (s *Subscription) deliver(record models.PresenceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.fn(record)
}

// Close detaches the listener. Safe to call multiple times. Once Close
// returns, no further callbacks fire: an in-flight delivery blocks Close
// until it completes. Must not be called from inside the update callback.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.feed.remove(s)
}
