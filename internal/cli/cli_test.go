package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/internal/credential"
	"github.com/taskflow/backend/pkg/client"
)

const testToken = "tok-1"

type harness struct {
	app    *App
	out    *bytes.Buffer
	errOut *bytes.Buffer
	tokens *credential.Store
}

func newHarness(t *testing.T, handler fasthttp.RequestHandler) harness {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: handler}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() {
		_ = server.Shutdown()
		_ = ln.Close()
	})

	t.Setenv("TASKFLOW_ENDPOINT", "")
	h := harness{
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
		tokens: credential.New(keyring.NewArrayKeyring(nil)),
	}
	h.app = &App{
		In:     strings.NewReader(""),
		Out:    h.out,
		Err:    h.errOut,
		Dir:    t.TempDir(),
		Tokens: h.tokens,
		ClientOptions: []client.Option{client.WithDialer(func(string) (net.Conn, error) {
			return ln.Dial()
		})},
	}
	return h
}

func (h harness) run(args ...string) int {
	return Run(context.Background(), h.app, args)
}

func reply(ctx *fasthttp.RequestCtx, status int, env transport.Envelope) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(env.Bytes())
}

func authorized(ctx *fasthttp.RequestCtx) bool {
	if string(ctx.Request.Header.Peek("Authorization")) == "Bearer "+testToken {
		return true
	}
	reply(ctx, http.StatusUnauthorized, transport.NewError("UNAUTHORIZED", "invalid session", nil))
	return false
}

func fakeAPI(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/api/v1/auth/login":
		reply(ctx, http.StatusCreated, transport.NewSuccess(domain.AuthToken{
			Token:     testToken,
			UserID:    "u1",
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil))
	case "/api/v1/account":
		if authorized(ctx) {
			reply(ctx, http.StatusOK, transport.NewSuccess(domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}, nil))
		}
	case "/api/v1/auth/sessions":
		if authorized(ctx) && string(ctx.Method()) == http.MethodDelete {
			reply(ctx, http.StatusOK, transport.NewSuccess(map[string]int{"revoked": 3}, nil))
		}
	case "/api/v1/projects":
		if authorized(ctx) {
			team := "team-1"
			reply(ctx, http.StatusOK, transport.NewSuccess([]domain.Project{
				{ID: "p1", Name: "Personal"},
				{ID: "p2", Name: "Shared", TeamID: &team},
			}, nil))
		}
	case "/api/v1/realtime":
		if !authorized(ctx) {
			return
		}
		ctx.SetContentType("text/event-stream")
		ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
			for i := 1; i <= 6; i++ {
				n := domain.Notification{UserID: "u1", Type: "Task Updated", Message: fmt.Sprintf("Task updated: #%d", i)}
				ev, _ := domain.NewDocumentEvent("notifications", "u1", domain.ActionCreate, n)
				raw, _ := json.Marshal(ev)
				fmt.Fprintf(w, "data: %s\n\n", raw)
				_ = w.Flush()
			}
		})
	default:
		reply(ctx, http.StatusNotFound, transport.NewError("NOT_FOUND", "no route", nil))
	}
}

func TestLoginThenWhoami(t *testing.T) {
	h := newHarness(t, fakeAPI)

	if code := h.run("login", "--email", "ada@example.com", "--password", "secret123"); code != ExitOK {
		t.Fatalf("login exit = %d, stderr=%s", code, h.errOut)
	}
	token, err := h.tokens.Get("session:" + defaultEndpoint)
	if err != nil || token != testToken {
		t.Fatalf("stored token = %q, %v", token, err)
	}

	h.out.Reset()
	if code := h.run("whoami"); code != ExitOK {
		t.Fatalf("whoami exit = %d, stderr=%s", code, h.errOut)
	}
	if !strings.Contains(h.out.String(), "Ada <ada@example.com>") {
		t.Fatalf("whoami output = %q", h.out)
	}
}

func TestExpiredSessionClearsToken(t *testing.T) {
	h := newHarness(t, fakeAPI)
	if err := h.tokens.Set("session:"+defaultEndpoint, "stale"); err != nil {
		t.Fatal(err)
	}

	if code := h.run("projects", "list"); code != ExitAuth {
		t.Fatalf("exit = %d, want %d", code, ExitAuth)
	}
	if !strings.Contains(h.errOut.String(), "taskflow login") {
		t.Fatalf("stderr = %q", h.errOut)
	}
	if _, err := h.tokens.Get("session:" + defaultEndpoint); err != credential.ErrNotFound {
		t.Fatalf("token still stored: %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	h := newHarness(t, fakeAPI)
	_ = h.tokens.Set("session:"+defaultEndpoint, testToken)

	if code := h.run("logout", "--all"); code != ExitOK {
		t.Fatalf("exit = %d, stderr=%s", code, h.errOut)
	}
	if !strings.Contains(h.out.String(), "Signed out of 3 sessions") {
		t.Fatalf("output = %q", h.out)
	}
	if _, err := h.tokens.Get("session:" + defaultEndpoint); err != credential.ErrNotFound {
		t.Fatalf("token still stored: %v", err)
	}
}

func TestProjectsList(t *testing.T) {
	h := newHarness(t, fakeAPI)
	_ = h.tokens.Set("session:"+defaultEndpoint, testToken)

	if code := h.run("projects", "list"); code != ExitOK {
		t.Fatalf("exit = %d, stderr=%s", code, h.errOut)
	}
	out := h.out.String()
	if !strings.Contains(out, "personal") || !strings.Contains(out, "team-1") {
		t.Fatalf("output = %q", out)
	}
}

func TestCommentScopeFlags(t *testing.T) {
	h := newHarness(t, fakeAPI)
	if code := h.run("comments", "list"); code != ExitError {
		t.Fatalf("exit = %d", code)
	}
	if code := h.run("comments", "list", "--task", "t1", "--project", "p1"); code != ExitError {
		t.Fatalf("exit = %d", code)
	}
}

func TestConfigEndpoint(t *testing.T) {
	h := newHarness(t, fakeAPI)
	if code := h.run("config", "endpoint", "https://taskflow.example.com"); code != ExitOK {
		t.Fatalf("exit = %d, stderr=%s", code, h.errOut)
	}
	raw, err := os.ReadFile(filepath.Join(h.app.Dir, configFileName))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(raw), "https://taskflow.example.com") {
		t.Fatalf("config file = %q", raw)
	}

	h.out.Reset()
	if code := h.run("config", "show"); code != ExitOK {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(h.out.String(), "endpoint: https://taskflow.example.com") {
		t.Fatalf("show output = %q", h.out)
	}
}

func TestWatchNotificationsKeepsNewestFive(t *testing.T) {
	h := newHarness(t, fakeAPI)
	_ = h.tokens.Set("session:"+defaultEndpoint, testToken)

	if code := h.run("watch", "notifications"); code != ExitOK {
		t.Fatalf("exit = %d, stderr=%s", code, h.errOut)
	}
	frames := strings.Split(h.out.String(), "-- notifications")
	last := frames[len(frames)-1]
	if !strings.HasPrefix(last, " (5)") {
		t.Fatalf("last frame = %q", last)
	}
	if !strings.Contains(last, "#6") || strings.Contains(last, "#1\n") {
		t.Fatalf("last frame should hold #2..#6: %q", last)
	}
	if strings.Index(last, "#6") > strings.Index(last, "#2") {
		t.Fatalf("newest notification should come first: %q", last)
	}
}

func TestNotificationFeed(t *testing.T) {
	var feed notificationFeed
	for i := 0; i < 7; i++ {
		feed.Add(domain.Notification{Message: fmt.Sprint(i)})
	}
	items := feed.Items()
	if len(items) != maxNotifications || items[0].Message != "6" || items[4].Message != "2" {
		t.Fatalf("feed = %+v", items)
	}
}
