package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/usecase"
)

const (
	TypeTaskAssigned = "Task Assigned"
	TypeTaskUpdated  = "Task Updated"
	TypeTaskDeleted  = "Task Deleted"
	TypeNewComment   = "New Comment"

	collectionNotifications = "notifications"
)

// Rule turns a matching event into one notification per recipient.
type Rule struct {
	Pattern    string
	Type       string
	Recipients func(payload map[string]json.RawMessage) []string
	Message    func(payload map[string]json.RawMessage) string
}

// DefaultRules covers task lifecycle and new comments.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern:    "tasks.documents.*.create",
			Type:       TypeTaskAssigned,
			Recipients: stringList("assignees"),
			Message: func(p map[string]json.RawMessage) string {
				return "You have been assigned a new task: " + str(p, "title")
			},
		},
		{
			Pattern:    "tasks.documents.*.update",
			Type:       TypeTaskUpdated,
			Recipients: stringList("assignees"),
			Message:    func(p map[string]json.RawMessage) string { return "Task updated: " + str(p, "title") },
		},
		{
			Pattern:    "tasks.documents.*.delete",
			Type:       TypeTaskDeleted,
			Recipients: stringList("assignees"),
			Message:    func(p map[string]json.RawMessage) string { return "Task deleted: " + str(p, "title") },
		},
		{
			Pattern:    "comments.documents.*.create",
			Type:       TypeNewComment,
			Recipients: stringList("targetUsers"),
			Message:    func(p map[string]json.RawMessage) string { return "New comment: " + firstStr(p, "content", "text") },
		},
	}
}

// Result is the webhook acknowledgement.
type Result struct {
	Success  bool `json:"success"`
	Notified int  `json:"notified"`
}

// Dispatcher evaluates every rule against an event and delivers the
// resulting notifications on the recipients' user channels. Delivery is best
// effort: nothing is retried and duplicates are not suppressed.
type Dispatcher struct {
	rules     []Rule
	publisher usecase.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func New(publisher usecase.EventPublisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		rules:     DefaultRules(),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch handles one event delivery. It always reports success.
func (d *Dispatcher) Dispatch(ctx context.Context, eventNames []string, body []byte) Result {
	var payload map[string]json.RawMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			d.logger.Warn("notify payload is not a JSON object", zap.Strings("events", eventNames), zap.Error(err))
			payload = nil
		}
	}

	notified := 0
	for _, rule := range d.rules {
		event, ok := matchAny(rule.Pattern, eventNames)
		if !ok {
			continue
		}
		message := rule.Message(payload)
		for _, userID := range rule.Recipients(payload) {
			d.send(ctx, domain.Notification{
				UserID:    userID,
				Type:      rule.Type,
				Message:   message,
				Event:     event,
				CreatedAt: d.now().UTC(),
			})
			notified++
		}
	}
	return Result{Success: true, Notified: notified}
}

// HandleEvent dispatches a realtime event.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev domain.Event) Result {
	return d.Dispatch(ctx, ev.Events, ev.Payload)
}

func (d *Dispatcher) send(ctx context.Context, n domain.Notification) {
	d.logger.Info(fmt.Sprintf("Notify %s: %s - %s", n.UserID, n.Type, n.Message),
		zap.String("user_id", n.UserID),
		zap.String("type", n.Type),
		zap.String("event", n.Event))
	if d.publisher == nil {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		d.logger.Warn("failed to encode notification", zap.Error(err))
		return
	}
	ev := domain.Event{
		Events:    []string{domain.EventName(collectionNotifications, n.UserID, domain.ActionCreate)},
		Channels:  []string{domain.UserChannel(n.UserID)},
		Payload:   body,
		Timestamp: n.CreatedAt,
		Audience:  &domain.Audience{Users: []string{n.UserID}},
	}
	if err := d.publisher.Publish(ctx, ev); err != nil {
		d.logger.Warn("failed to publish notification", zap.String("user_id", n.UserID), zap.Error(err))
	}
}

// ParseEventHeader splits a comma separated event header.
func ParseEventHeader(header string) []string {
	var names []string
	for _, part := range strings.Split(header, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

func matchAny(pattern string, names []string) (string, bool) {
	for _, name := range names {
		if Match(pattern, name) {
			return name, true
		}
	}
	return "", false
}

// Match reports whether the dotted pattern occurs in name on segment
// boundaries. A "*" segment in the pattern matches any single segment.
func Match(pattern, name string) bool {
	want := strings.Split(pattern, ".")
	have := strings.Split(name, ".")
	for start := 0; start+len(want) <= len(have); start++ {
		ok := true
		for i, seg := range want {
			if seg != "*" && seg != have[start+i] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func stringList(key string) func(map[string]json.RawMessage) []string {
	return func(p map[string]json.RawMessage) []string {
		raw, ok := p[key]
		if !ok {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil
		}
		return domain.CompactIDs(ids)
	}
}

func str(p map[string]json.RawMessage, key string) string {
	raw, ok := p[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func firstStr(p map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		if s := str(p, key); s != "" {
			return s
		}
	}
	return ""
}
