package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskflow/backend/domain"
)

var errRefused = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

func TestRecentFallsBackOnOutage(t *testing.T) {
	r := NewRecent[string](time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if got, err := r.Load("k", func() (string, error) { return "v1", nil }); err != nil || got != "v1" {
		t.Fatalf("load = %q, %v", got, err)
	}
	got, err := r.Load("k", func() (string, error) { return "", errRefused })
	if err != nil || got != "v1" {
		t.Fatalf("outage load = %q, %v; want remembered copy", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := r.Load("k", func() (string, error) { return "", errRefused }); !errors.Is(err, errRefused) {
		t.Fatalf("expired copy served: %v", err)
	}
}

func TestRecentForgetsOnDomainError(t *testing.T) {
	r := NewRecent[string](time.Minute)
	r.Put("k", "v1")
	if _, err := r.Load("k", func() (string, error) { return "", domain.ErrForbidden }); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := r.Get("k"); ok {
		t.Error("forbidden answer should drop the remembered copy")
	}
}

func TestRecentEvictsOldest(t *testing.T) {
	r := NewRecent[int](time.Hour)
	r.max = 2
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"a", "b", "c"} {
		r.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		r.Put(key, i)
	}
	if _, ok := r.Get("a"); ok {
		t.Error("oldest entry should be evicted")
	}
	if v, ok := r.Get("c"); !ok || v != 2 {
		t.Errorf("c = %d, %v", v, ok)
	}
}

func TestCacheAccess(t *testing.T) {
	var fail error
	calls := 0
	access := CacheAccess(accessFunc(func(_ context.Context, userID, projectID string) (*domain.Project, error) {
		calls++
		if fail != nil {
			return nil, fail
		}
		return &domain.Project{ID: projectID, CreatedBy: userID}, nil
	}))
	ctx := context.Background()

	if _, err := access.AuthorizeProject(ctx, "alice", "p1"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	fail = errRefused
	p, err := access.AuthorizeProject(ctx, "alice", "p1")
	if err != nil || p.ID != "p1" {
		t.Fatalf("outage authorize = %+v, %v", p, err)
	}
	if _, err := access.AuthorizeProject(ctx, "bob", "p1"); !errors.Is(err, errRefused) {
		t.Errorf("bob was never authorized, err = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, the store must be asked every time", calls)
	}
	if CacheAccess(access) != access {
		t.Error("wrapping twice should return the same cache")
	}
}

type accessFunc func(ctx context.Context, userID, projectID string) (*domain.Project, error)

func (f accessFunc) AuthorizeProject(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	return f(ctx, userID, projectID)
}
