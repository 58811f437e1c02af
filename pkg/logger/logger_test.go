package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Output: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := ContextWithUserID(ContextWithRequestID(context.Background(), "req-1"), "u1")
	WithRequestID(ctx, log).Debug("hello")
	_ = log.Sync()

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["request_id"] != "req-1" || entry["user_id"] != "u1" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Errorf("missing timestamp key: %v", entry)
	}
}

func TestLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(Config{Level: "loud", Output: &buf})
	log.Debug("hidden")
	log.Info("shown")
	_ = log.Sync()

	if bytes.Contains(buf.Bytes(), []byte("hidden")) || !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWithRequestIDWithoutValues(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(Config{Output: &buf})
	if got := WithRequestID(context.Background(), log); got != log {
		t.Errorf("logger should be returned unchanged")
	}
	if UserIDFromContext(context.Background()) != "" {
		t.Errorf("empty context should have no user")
	}
}
