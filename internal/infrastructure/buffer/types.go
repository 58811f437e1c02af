package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityProject = "project"
	EntityTask    = "task"
	EntityComment = "comment"

	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// Replay order: parents before children so a buffered task never lands
// before the project it belongs to.
var entityPriority = map[string]int{
	EntityProject: 1,
	EntityTask:    2,
	EntityComment: 3,
}

// Item is a document write waiting for the primary store to come back.
type Item struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	UserID     string          `json:"user_id"`
	Entity     string          `json:"entity"`
	Operation  string          `json:"operation"`
	Data       json.RawMessage `json:"data"`
	Priority   int             `json:"priority"`
	Retries    int             `json:"retries"`
	Timestamp  time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		if p, ok := entityPriority[i.Entity]; ok {
			i.Priority = p
		} else {
			i.Priority = 5
		}
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}

// documentKey identifies the document a write targets, or nil for writes
// without a document id.
func (i Item) documentKey() []byte {
	if i.DocumentID == "" {
		return nil
	}
	return []byte(i.Entity + "/" + i.DocumentID)
}
