package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CollectionTasks    = "tasks"
	CollectionComments = "comments"
	CollectionProjects = "projects"
	CollectionTeams    = "teams"
	// CollectionMemberships carries team membership changes.
	CollectionMemberships = "memberships"

	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is the realtime envelope pushed to subscribers.
type Event struct {
	Events    []string        `json:"events"`
	Channels  []string        `json:"channels"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	// Audience limits who may receive the event. It travels between
	// instances but is stripped before frames reach clients.
	Audience *Audience `json:"audience,omitempty"`
}

// Audience lists the users who may see a document event: the named users
// plus every member of TeamID.
type Audience struct {
	Users  []string `json:"users,omitempty"`
	TeamID string   `json:"team_id,omitempty"`
}

// ProjectAudience is everyone who can see documents in the project.
func ProjectAudience(p *Project) Audience {
	if p == nil {
		return Audience{}
	}
	a := Audience{Users: []string{p.CreatedBy}}
	if p.TeamID != nil {
		a.TeamID = *p.TeamID
	}
	return a
}

// Includes reports whether the user is named directly.
func (a Audience) Includes(userID string) bool {
	for _, u := range a.Users {
		if u == userID {
			return true
		}
	}
	return false
}

// EventName renders "<collection>.documents.<id>.<action>".
func EventName(collection, id, action string) string {
	return fmt.Sprintf("%s.documents.%s.%s", collection, id, action)
}

// NewDocumentEvent builds an event for a document change on its collection channel.
func NewDocumentEvent(collection, id, action string, payload interface{}) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Events: []string{
			EventName(collection, id, action),
			EventName(collection, "*", action),
		},
		Channels:  []string{collection},
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Action returns the first create/update/delete suffix found in the event names.
func (e Event) Action() string {
	for _, name := range e.Events {
		idx := strings.LastIndexByte(name, '.')
		if idx < 0 {
			continue
		}
		switch action := name[idx+1:]; action {
		case ActionCreate, ActionUpdate, ActionDelete:
			return action
		}
	}
	return ""
}

// UserChannel is the per-user notification channel.
func UserChannel(userID string) string {
	return "user." + userID
}
