package redis

import (
	"testing"

	"github.com/taskflow/backend/internal/config"
)

func TestOptions(t *testing.T) {
	opts, err := options(config.RedisConfig{URL: "redis://cache:6380/2", Password: "s3cret"}, "taskflow")
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 {
		t.Errorf("addr/db = %s/%d", opts.Addr, opts.DB)
	}
	if opts.Password != "s3cret" {
		t.Errorf("password not applied")
	}
	if opts.ClientName != "taskflow" {
		t.Errorf("client name = %q", opts.ClientName)
	}
}

func TestOptionsOverrideDB(t *testing.T) {
	opts, err := options(config.RedisConfig{URL: "redis://localhost:6379/1", DB: 4}, "worker")
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.DB != 4 {
		t.Errorf("db = %d, want 4", opts.DB)
	}
}

func TestOptionsRejectsBadURL(t *testing.T) {
	if _, err := options(config.RedisConfig{URL: "http://localhost"}, "x"); err == nil {
		t.Error("expected error for non-redis scheme")
	}
}
