// Package reconcile keeps an in-memory list in step with realtime document
// events. Events are applied in arrival order and the last write wins; there
// is no version check and no backfill of missed events.
package reconcile

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
)

type Action string

const (
	None   Action = ""
	Create Action = "create"
	Update Action = "update"
	Delete Action = "delete"
)

// ActionOf picks the action from event names, preferring create, then
// update, then delete when several are present.
func ActionOf(events []string) Action {
	for _, action := range []Action{Create, Update, Delete} {
		suffix := "." + string(action)
		for _, name := range events {
			if strings.HasSuffix(name, suffix) {
				return action
			}
		}
	}
	return None
}

type Option[T any] func(*List[T])

// WithScope discards events whose document fails keep.
func WithScope[T any](keep func(T) bool) Option[T] {
	return func(l *List[T]) { l.keep = keep }
}

// Prepend inserts created documents at the front, as newest-first lists do.
func Prepend[T any]() Option[T] {
	return func(l *List[T]) { l.prepend = true }
}

// List is a concurrency-safe ordered collection keyed by id.
type List[T any] struct {
	mu      sync.RWMutex
	items   []T
	key     func(T) string
	keep    func(T) bool
	prepend bool
}

func New[T any](key func(T) string, opts ...Option[T]) *List[T] {
	l := &List[T]{key: key}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reset replaces the contents, typically with a freshly fetched page.
func (l *List[T]) Reset(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = slices.Clone(items)
}

// Apply reconciles one document change and reports whether the list changed.
func (l *List[T]) Apply(action Action, doc T) bool {
	if l.keep != nil && !l.keep(doc) {
		return false
	}
	id := l.key(doc)

	l.mu.Lock()
	defer l.mu.Unlock()
	idx := slices.IndexFunc(l.items, func(item T) bool { return l.key(item) == id })

	switch action {
	case Create:
		if idx >= 0 {
			return false
		}
		if l.prepend {
			l.items = slices.Insert(l.items, 0, doc)
		} else {
			l.items = append(l.items, doc)
		}
		return true
	case Update:
		if idx < 0 {
			return false
		}
		l.items[idx] = doc
		return true
	case Delete:
		if idx < 0 {
			return false
		}
		l.items = slices.Delete(l.items, idx, idx+1)
		return true
	default:
		return false
	}
}

// ApplyEvent decodes payload as T and applies the action named by events.
func (l *List[T]) ApplyEvent(events []string, payload []byte) (bool, error) {
	action := ActionOf(events)
	if action == None {
		return false, nil
	}
	var doc T
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false, err
	}
	return l.Apply(action, doc), nil
}

// Get returns the document with id.
func (l *List[T]) Get(id string) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if l.key(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Items returns a snapshot copy.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
