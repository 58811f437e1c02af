package postgres

import (
	"testing"
	"time"

	"github.com/taskflow/backend/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		URL:             "postgres://taskflow:secret@db:5432/taskflow?sslmode=disable",
		MaxOpenConns:    8,
		MaxIdleConns:    20,
		MaxConnLifetime: time.Hour,
	}
	got, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if got.MaxConns != 8 {
		t.Errorf("MaxConns = %d", got.MaxConns)
	}
	if got.MinConns != 8 {
		t.Errorf("MinConns = %d, want capped at MaxConns", got.MinConns)
	}
	if got.MaxConnIdleTime != 30*time.Minute {
		t.Errorf("MaxConnIdleTime = %v", got.MaxConnIdleTime)
	}
	if got.ConnConfig.RuntimeParams["application_name"] != applicationName {
		t.Errorf("application_name = %q", got.ConnConfig.RuntimeParams["application_name"])
	}
	if got.ConnConfig.Host != "db" || got.ConnConfig.Database != "taskflow" {
		t.Errorf("conn = %s/%s", got.ConnConfig.Host, got.ConnConfig.Database)
	}
}

func TestPoolConfigKeepsApplicationName(t *testing.T) {
	got, err := poolConfig(config.DatabaseConfig{URL: "postgres://u@localhost/db?application_name=worker"})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if got.ConnConfig.RuntimeParams["application_name"] != "worker" {
		t.Errorf("application_name = %q", got.ConnConfig.RuntimeParams["application_name"])
	}
}

func TestPoolConfigRequiresURL(t *testing.T) {
	if _, err := poolConfig(config.DatabaseConfig{}); err == nil {
		t.Error("expected error for empty url")
	}
}
