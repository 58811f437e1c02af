package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/taskflow/backend/domain"
)

const (
	DefaultRecentTTL  = 15 * time.Minute
	defaultRecentSize = 4096
)

// Recent remembers documents the use cases read or wrote lately. While the
// store is unreachable a write can still be authorized against the last
// known copy and diverted to the offline buffer.
type Recent[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	now   func() time.Time
	items map[string]recentEntry[T]
}

type recentEntry[T any] struct {
	value  T
	stored time.Time
}

func NewRecent[T any](ttl time.Duration) *Recent[T] {
	if ttl <= 0 {
		ttl = DefaultRecentTTL
	}
	return &Recent[T]{
		ttl:   ttl,
		max:   defaultRecentSize,
		now:   time.Now,
		items: make(map[string]recentEntry[T]),
	}
}

// Load returns fetch's result and remembers it. When fetch fails with an
// outage the remembered copy is returned instead, if it is fresh. Domain
// errors such as not-found or forbidden drop the remembered copy.
func (r *Recent[T]) Load(key string, fetch func() (T, error)) (T, error) {
	value, err := fetch()
	if r == nil {
		return value, err
	}
	switch {
	case err == nil:
		r.Put(key, value)
		return value, nil
	case IsOutage(err):
		if cached, ok := r.Get(key); ok {
			return cached, nil
		}
	default:
		r.Forget(key)
	}
	return value, err
}

func (r *Recent[T]) Put(key string, value T) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) >= r.max {
		r.evictLocked()
	}
	r.items[key] = recentEntry[T]{value: value, stored: r.now()}
}

func (r *Recent[T]) Get(key string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.items[key]
	if !ok {
		return zero, false
	}
	if r.now().Sub(entry.stored) > r.ttl {
		delete(r.items, key)
		return zero, false
	}
	return entry.value, true
}

func (r *Recent[T]) Forget(key string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, key)
}

// evictLocked drops expired entries, then the oldest one if still full.
func (r *Recent[T]) evictLocked() {
	now := r.now()
	var oldestKey string
	var oldest time.Time
	for key, entry := range r.items {
		if now.Sub(entry.stored) > r.ttl {
			delete(r.items, key)
			continue
		}
		if oldestKey == "" || entry.stored.Before(oldest) {
			oldestKey, oldest = key, entry.stored
		}
	}
	if len(r.items) >= r.max && oldestKey != "" {
		delete(r.items, oldestKey)
	}
}

type cachedAccess struct {
	next   ProjectAccess
	recent *Recent[domain.Project]
}

// CacheAccess remembers successful project authorizations so they survive a
// storage outage for DefaultRecentTTL.
func CacheAccess(next ProjectAccess) ProjectAccess {
	if next == nil {
		return nil
	}
	if _, ok := next.(*cachedAccess); ok {
		return next
	}
	return &cachedAccess{next: next, recent: NewRecent[domain.Project](DefaultRecentTTL)}
}

func (c *cachedAccess) AuthorizeProject(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	project, err := c.recent.Load(AccessKey(userID, projectID), func() (domain.Project, error) {
		p, err := c.next.AuthorizeProject(ctx, userID, projectID)
		if err != nil {
			return domain.Project{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// AccessKey keys a user's access to a document.
func AccessKey(userID, documentID string) string {
	return userID + "/" + documentID
}
