package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/internal/infrastructure/monitor"
	"github.com/taskflow/backend/internal/testutil"
	"github.com/taskflow/backend/pkg/httpcontext"
	"github.com/taskflow/backend/usecase/notify"
	projectUC "github.com/taskflow/backend/usecase/project"
	taskUC "github.com/taskflow/backend/usecase/task"
)

func newRequest(method, uri, userID string, body interface{}) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != nil {
		raw, _ := json.Marshal(body)
		ctx.Request.SetBody(raw)
	}
	if userID != "" {
		ctx.SetUserValue(httpcontext.UserIDValue, userID)
	}
	return ctx
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func decodeEnvelope(t *testing.T, ctx *fasthttp.RequestCtx) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(ctx.Response.Body(), &env); err != nil {
		t.Fatalf("decode body %q: %v", ctx.Response.Body(), err)
	}
	return env
}

type fixture struct {
	projects *ProjectHandler
	tasks    *TaskHandler
	events   *testutil.Publisher
}

func newFixture() fixture {
	users := testutil.NewUsers()
	teams := testutil.NewTeams(users)
	events := &testutil.Publisher{}
	buffer := &testutil.Buffer{}
	adapter := httpcontext.NewAdapter(time.Second)

	projects := projectUC.New(testutil.NewProjects(), teams, buffer, events, nil)
	tasks := taskUC.New(testutil.NewTasks(), projects, buffer, events, nil)
	return fixture{
		projects: NewProjectHandler(projects, adapter, nil),
		tasks:    NewTaskHandler(tasks, adapter, nil),
		events:   events,
	}
}

func (f fixture) createProject(t *testing.T, userID string) domain.Project {
	t.Helper()
	ctx := newRequest(http.MethodPost, "/api/v1/projects", userID, transport.ProjectRequest{Name: "Website"})
	f.projects.Create(ctx)
	if ctx.Response.StatusCode() != http.StatusCreated {
		t.Fatalf("create project status = %d body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var project domain.Project
	if err := json.Unmarshal(decodeEnvelope(t, ctx).Data, &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	return project
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	f := newFixture()
	project := f.createProject(t, "u1")

	ctx := newRequest(http.MethodPost, "/api/v1/tasks", "u1", transport.TaskRequest{
		ProjectID: project.ID,
		Title:     "Write copy",
		Status:    "inprogress",
		DueDate:   "2026-11-01",
		Assignee:  "u2",
	})
	f.tasks.Create(ctx)
	if ctx.Response.StatusCode() != http.StatusCreated {
		t.Fatalf("create task status = %d body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var task domain.Task
	if err := json.Unmarshal(decodeEnvelope(t, ctx).Data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Status != domain.StatusInProgress || task.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults: %+v", task)
	}
	if len(task.Assignees) != 1 || task.Assignees[0] != "u2" {
		t.Fatalf("assignees = %v", task.Assignees)
	}

	ctx = newRequest(http.MethodPatch, "/api/v1/tasks/"+task.ID+"/status", "u1", transport.MoveRequest{Status: "done"})
	ctx.SetUserValue("id", task.ID)
	f.tasks.Move(ctx)
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("move status = %d body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}

	ctx = newRequest(http.MethodGet, "/api/v1/projects/"+project.ID+"/tasks?status=done", "u1", nil)
	ctx.SetUserValue("id", project.ID)
	f.tasks.ListByProject(ctx)
	var tasks []domain.Task
	if err := json.Unmarshal(decodeEnvelope(t, ctx).Data, &tasks); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Fatalf("listed tasks = %+v", tasks)
	}

	names := f.events.Names()
	want := []string{
		domain.EventName(domain.CollectionProjects, project.ID, domain.ActionCreate),
		domain.EventName(domain.CollectionTasks, task.ID, domain.ActionCreate),
		domain.EventName(domain.CollectionTasks, task.ID, domain.ActionUpdate),
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", names, want)
	}
}

func TestTaskHiddenFromOutsiders(t *testing.T) {
	f := newFixture()
	project := f.createProject(t, "u1")

	ctx := newRequest(http.MethodGet, "/api/v1/projects/"+project.ID+"/tasks", "intruder", nil)
	ctx.SetUserValue("id", project.ID)
	f.tasks.ListByProject(ctx)
	if code := ctx.Response.StatusCode(); code != http.StatusForbidden && code != http.StatusNotFound {
		t.Fatalf("status = %d, want 403 or 404", code)
	}
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	f := newFixture()
	ctx := newRequest(http.MethodGet, "/api/v1/projects", "", nil)
	f.projects.List(ctx)
	if ctx.Response.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if env := decodeEnvelope(t, ctx); env.Code != string(domain.ErrCodeUnauthorized) {
		t.Fatalf("code = %q", env.Code)
	}
}

func TestInvalidPayload(t *testing.T) {
	f := newFixture()
	ctx := newRequest(http.MethodPost, "/api/v1/tasks", "u1", nil)
	ctx.Request.SetBody([]byte("{"))
	f.tasks.Create(ctx)
	if ctx.Response.StatusCode() != http.StatusBadRequest {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.Invalid("bad"), http.StatusBadRequest},
		{domain.ErrTaskNotFound, http.StatusNotFound},
		{domain.ErrEmailTaken, http.StatusConflict},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if status, _ := mapError(tt.err); status != tt.status {
			t.Errorf("mapError(%v) = %d, want %d", tt.err, status, tt.status)
		}
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := newBaseHandler(nil, nil)
	ctx := newRequest(http.MethodGet, "/", "u1", nil)
	h.respondError(ctx, errors.New("pq: password authentication failed"))
	env := decodeEnvelope(t, ctx)
	if env.Error != "internal error" {
		t.Fatalf("error = %q", env.Error)
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query         string
		limit, offset int
	}{
		{"", defaultPageSize, 0},
		{"limit=10&offset=20", 10, 20},
		{"limit=1000&offset=-4", maxPageSize, 0},
		{"limit=abc", defaultPageSize, 0},
	}
	for _, tt := range tests {
		ctx := newRequest(http.MethodGet, "/x?"+tt.query, "", nil)
		limit, offset := pagination(ctx)
		if limit != tt.limit || offset != tt.offset {
			t.Errorf("%q: got %d/%d, want %d/%d", tt.query, limit, offset, tt.limit, tt.offset)
		}
	}
}

func TestParseChannels(t *testing.T) {
	channels, err := parseChannels("tasks, comments,user,tasks,memberships", "u1")
	if err != nil {
		t.Fatalf("parseChannels: %v", err)
	}
	if strings.Join(channels, ",") != "tasks,comments,user.u1,memberships" {
		t.Fatalf("channels = %v", channels)
	}
	if _, err := parseChannels("user.u2", "u1"); !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Fatalf("foreign user channel err = %v", err)
	}
	if _, err := parseChannels("secrets", "u1"); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("unknown channel err = %v", err)
	}
	if _, err := parseChannels("", "u1"); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("empty channel list err = %v", err)
	}
}

func TestStreamEventsWritesFrames(t *testing.T) {
	events := make(chan domain.Event, 1)
	ev, err := domain.NewDocumentEvent(domain.CollectionTasks, "t1", domain.ActionCreate, map[string]string{"id": "t1"})
	if err != nil {
		t.Fatal(err)
	}
	events <- ev
	close(events)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := streamEvents(w, events, time.Hour, nil, nil); err != nil {
		t.Fatalf("streamEvents: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, ": connected\n\n") {
		t.Fatalf("missing preamble: %q", out)
	}
	if !strings.Contains(out, `data: {"events":["tasks.documents.t1.create"`) {
		t.Fatalf("missing data frame: %q", out)
	}
}

func TestStreamEventsStopsOnDone(t *testing.T) {
	done := make(chan struct{})
	close(done)
	var buf bytes.Buffer
	if err := streamEvents(bufio.NewWriter(&buf), make(chan domain.Event), time.Hour, done, nil); err != nil {
		t.Fatalf("streamEvents: %v", err)
	}
}

type dispatchFunc func(ctx context.Context, names []string, body []byte) notify.Result

func (f dispatchFunc) Dispatch(ctx context.Context, names []string, body []byte) notify.Result {
	return f(ctx, names, body)
}

func TestNotifyEventsSignature(t *testing.T) {
	var got []string
	h := NewFunctionHandler(dispatchFunc(func(_ context.Context, names []string, _ []byte) notify.Result {
		got = names
		return notify.Result{Success: true, Notified: 2}
	}), "s3cret", nil, nil)

	body := []byte(`{"title":"Ship","assignees":["a","b"]}`)

	ctx := newRequest(http.MethodPost, "/api/v1/functions/notify-events", "", nil)
	ctx.Request.SetBody(body)
	ctx.Request.Header.Set(EventHeader, "tasks.documents.t1.create")
	h.NotifyEvents(ctx)
	if ctx.Response.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("unsigned status = %d", ctx.Response.StatusCode())
	}

	ctx.Response.Reset()
	ctx.Request.Header.Set(SignatureHeader, Sign([]byte("s3cret"), body))
	h.NotifyEvents(ctx)
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("signed status = %d", ctx.Response.StatusCode())
	}
	var result notify.Result
	if err := json.Unmarshal(ctx.Response.Body(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Notified != 2 {
		t.Fatalf("result = %+v", result)
	}
	if len(got) != 1 || got[0] != "tasks.documents.t1.create" {
		t.Fatalf("dispatched names = %v", got)
	}
}

type statusFunc func() monitor.Status

func (f statusFunc) GetStatus() monitor.Status { return f() }

func TestHealthCheck(t *testing.T) {
	status := monitor.Status{PostgreSQL: true, Redis: true, Buffer: true}
	h := NewHealthHandler(statusFunc(func() monitor.Status { return status }), nil, nil)

	ctx := newRequest(http.MethodGet, "/health", "", nil)
	h.Check(ctx)
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("healthy status = %d", ctx.Response.StatusCode())
	}

	status.Redis = false
	ctx = newRequest(http.MethodGet, "/health", "", nil)
	h.Check(ctx)
	if ctx.Response.StatusCode() != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d", ctx.Response.StatusCode())
	}
	if env := decodeEnvelope(t, ctx); env.Code != "DEGRADED" {
		t.Fatalf("code = %q", env.Code)
	}
}
