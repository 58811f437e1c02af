package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/domain"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: handler}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() {
		_ = server.Shutdown()
		_ = ln.Close()
	})
	return New("http://taskflow.test", WithDialer(func(string) (net.Conn, error) {
		return ln.Dial()
	}))
}

func writeEnvelope(ctx *fasthttp.RequestCtx, status int, env transport.Envelope) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(env.Bytes())
}

func TestLoginKeepsToken(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/api/v1/auth/login":
			writeEnvelope(ctx, http.StatusCreated, transport.NewSuccess(domain.AuthToken{Token: "tok", UserID: "u1"}, nil))
		case "/api/v1/account":
			if string(ctx.Request.Header.Peek("Authorization")) != "Bearer tok" {
				writeEnvelope(ctx, http.StatusUnauthorized, transport.NewError("UNAUTHORIZED", "missing token", nil))
				return
			}
			writeEnvelope(ctx, http.StatusOK, transport.NewSuccess(domain.User{ID: "u1", Name: "Ada"}, nil))
		}
	})

	if _, err := c.Login(context.Background(), "ada@example.com", "secret123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if c.Token() != "tok" {
		t.Fatalf("token = %q", c.Token())
	}
	user, err := c.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if user.Name != "Ada" {
		t.Fatalf("user = %+v", user)
	}
}

func TestErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		writeEnvelope(ctx, http.StatusUnauthorized, transport.NewError("UNAUTHORIZED", "session expired", nil))
	})

	_, err := c.Projects(context.Background(), 0, 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != "UNAUTHORIZED" || apiErr.Message != "session expired" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if !IsUnauthorized(err) {
		t.Fatal("IsUnauthorized = false")
	}
}

func TestTasksQuery(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/api/v1/projects/p1/tasks" || string(ctx.QueryArgs().Peek("status")) != "done" {
			writeEnvelope(ctx, http.StatusBadRequest, transport.NewError("INVALID", "unexpected request "+ctx.URI().String(), nil))
			return
		}
		writeEnvelope(ctx, http.StatusOK, transport.NewSuccess([]domain.Task{{ID: "t1", Status: "done"}}, nil))
	})

	tasks, err := c.Tasks(context.Background(), "p1", TaskFilter{Status: "done"})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": connected",
		"",
		`data: {"events":["tasks.documents.t1.create"],"channels":["tasks"],"payload":{"id":"t1"}}`,
		"",
		": ping",
		"",
		`data: {"events":["tasks.documents.t1.delete"],`,
		`data: "channels":["tasks"],"payload":{"id":"t1"}}`,
		"",
	}, "\n")

	var got []string
	err := ReadEvents(strings.NewReader(stream), func(ev domain.Event) error {
		got = append(got, ev.Action())
		return nil
	})
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if strings.Join(got, ",") != "create,delete" {
		t.Fatalf("actions = %v", got)
	}
}

func TestReadEventsRejectsGarbage(t *testing.T) {
	err := ReadEvents(strings.NewReader("data: not json\n\n"), func(domain.Event) error { return nil })
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSubscribe(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.QueryArgs().Peek("channels")) != "tasks,user.u1" {
			writeEnvelope(ctx, http.StatusBadRequest, transport.NewError("INVALID", "bad channels", nil))
			return
		}
		ctx.SetContentType("text/event-stream")
		ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
			for i := 1; i <= 3; i++ {
				ev, _ := domain.NewDocumentEvent(domain.CollectionTasks, fmt.Sprintf("t%d", i), domain.ActionCreate, map[string]string{"id": "x"})
				raw, _ := json.Marshal(ev)
				fmt.Fprintf(w, "data: %s\n\n", raw)
				_ = w.Flush()
			}
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var ids []string
	err := c.Subscribe(ctx, []string{"tasks", "user.u1"}, func(ev domain.Event) error {
		ids = append(ids, ev.Events[0])
		if len(ids) == 2 {
			return ErrStopStream
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if len(ids) != 2 || ids[0] != "tasks.documents.t1.create" {
		t.Fatalf("events = %v", ids)
	}
}

func TestSubscribeRejected(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		writeEnvelope(ctx, http.StatusForbidden, transport.NewError("FORBIDDEN", "cannot subscribe to another user's notifications", nil))
	})
	err := c.Subscribe(context.Background(), []string{"user.u2"}, func(domain.Event) error { return nil })
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("err = %v", err)
	}
}
