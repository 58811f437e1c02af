package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/internal/realtime"
	"github.com/taskflow/backend/pkg/httpcontext"
)

var collectionChannels = map[string]struct{}{
	domain.CollectionTasks:       {},
	domain.CollectionComments:    {},
	domain.CollectionProjects:    {},
	domain.CollectionTeams:       {},
	domain.CollectionMemberships: {},
}

// membershipTTL bounds how long a stream trusts a team membership answer.
const membershipTTL = 30 * time.Second

// TeamMembership answers whether a user belongs to a team.
type TeamMembership interface {
	IsMember(ctx context.Context, userID, teamID string) (bool, error)
}

type RealtimeHandler struct {
	baseHandler
	hub       *realtime.Hub
	teams     TeamMembership
	heartbeat time.Duration
}

func NewRealtimeHandler(hub *realtime.Hub, teams TeamMembership, heartbeat time.Duration, adapter *httpcontext.Adapter, logger *zap.Logger) *RealtimeHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &RealtimeHandler{
		baseHandler: newBaseHandler(adapter, logger),
		hub:         hub,
		teams:       teams,
		heartbeat:   heartbeat,
	}
}

// Stream serves Server-Sent Events for the requested channels. Only events
// whose audience includes the caller are written. Events published before
// the stream opened are not replayed.
//
// @Summary Subscribe to realtime channels
// @Tags realtime
// @Router /api/v1/realtime [get]
func (h *RealtimeHandler) Stream(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	channels, err := parseChannels(string(ctx.QueryArgs().Peek("channels")), userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.adapter.AttachStream(ctx)
	log := h.requestLogger(stdCtx)
	sub := h.hub.Subscribe(channels...)
	log.Info("realtime stream opened", zap.Strings("channels", channels))

	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")
	ctx.SetStatusCode(http.StatusOK)

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()
		filter := newAudienceFilter(stdCtx, userID, h.teams, log)
		err := streamEvents(w, sub.Events(), h.heartbeat, stdCtx.Done(), filter.allow)
		log.Info("realtime stream closed",
			zap.Strings("channels", channels),
			zap.Int("withheld", filter.withheld),
			zap.Error(err))
	})
}

// streamEvents writes SSE frames for the events allow accepts until the
// source closes, done fires or a write fails because the client went away.
func streamEvents(w *bufio.Writer, events <-chan domain.Event, heartbeat time.Duration, done <-chan struct{}, allow func(domain.Event) bool) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	if _, err := w.WriteString(": connected\n\n"); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for {
		select {
		case <-done:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if allow != nil && !allow(ev) {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

func writeEvent(w *bufio.Writer, ev domain.Event) error {
	ev.Audience = nil
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// parseChannels validates a comma separated channel list. Users may only
// listen on their own notification channel; "user" is shorthand for it.
func parseChannels(raw, userID string) ([]string, error) {
	var channels []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		channel := strings.TrimSpace(part)
		switch {
		case channel == "":
			continue
		case channel == "user":
			channel = domain.UserChannel(userID)
		case strings.HasPrefix(channel, "user."):
			if channel != domain.UserChannel(userID) {
				return nil, domain.NewError(domain.ErrCodeForbidden, "cannot subscribe to another user's notifications")
			}
		default:
			if _, ok := collectionChannels[channel]; !ok {
				return nil, domain.Invalidf("unknown channel %q", channel)
			}
		}
		if _, ok := seen[channel]; ok {
			continue
		}
		seen[channel] = struct{}{}
		channels = append(channels, channel)
	}
	if len(channels) == 0 {
		return nil, domain.Invalid("at least one channel is required")
	}
	return channels, nil
}

type membershipAnswer struct {
	member bool
	at     time.Time
}

// audienceFilter decides which events one stream's user may see. It is
// used from the stream's writer goroutine only.
type audienceFilter struct {
	ctx      context.Context
	userID   string
	teams    TeamMembership
	logger   *zap.Logger
	now      func() time.Time
	known    map[string]membershipAnswer
	withheld int
}

func newAudienceFilter(ctx context.Context, userID string, teams TeamMembership, logger *zap.Logger) *audienceFilter {
	return &audienceFilter{
		ctx:    ctx,
		userID: userID,
		teams:  teams,
		logger: logger,
		now:    time.Now,
		known:  make(map[string]membershipAnswer),
	}
}

func (f *audienceFilter) allow(ev domain.Event) bool {
	if f.visible(ev) {
		return true
	}
	f.withheld++
	return false
}

func (f *audienceFilter) visible(ev domain.Event) bool {
	if ev.Audience == nil {
		return slices.Contains(ev.Channels, domain.UserChannel(f.userID))
	}
	if ev.Audience.Includes(f.userID) {
		return true
	}
	if ev.Audience.TeamID == "" || f.teams == nil {
		return false
	}
	return f.member(ev.Audience.TeamID)
}

// member fails closed: a lookup error withholds the event.
func (f *audienceFilter) member(teamID string) bool {
	if answer, ok := f.known[teamID]; ok && f.now().Sub(answer.at) < membershipTTL {
		return answer.member
	}
	member, err := f.teams.IsMember(f.ctx, f.userID, teamID)
	if err != nil {
		f.logger.Warn("membership lookup failed, withholding event",
			zap.String("team_id", teamID),
			zap.Error(err))
		return false
	}
	f.known[teamID] = membershipAnswer{member: member, at: f.now()}
	return member
}
