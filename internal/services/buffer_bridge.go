package services

import (
	"context"
	"encoding/json"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/internal/infrastructure/buffer"
	"github.com/taskflow/backend/usecase"
)

// BufferBridge adapts use-case writes to buffer items.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferProject(ctx context.Context, operation string, project *domain.Project) error {
	if project == nil {
		return domain.ErrInvalidPayload
	}
	return b.enqueue(ctx, buffer.EntityProject, operation, project.ID, project.CreatedBy, project)
}

func (b *BufferBridge) BufferTask(ctx context.Context, operation string, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	return b.enqueue(ctx, buffer.EntityTask, operation, task.ID, task.CreatedBy, task)
}

func (b *BufferBridge) BufferComment(ctx context.Context, operation string, comment *domain.Comment) error {
	if comment == nil {
		return domain.ErrInvalidPayload
	}
	return b.enqueue(ctx, buffer.EntityComment, operation, comment.ID, comment.CreatedBy, comment)
}

func (b *BufferBridge) enqueue(ctx context.Context, entity, operation, documentID, userID string, doc interface{}) error {
	if b.processor == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		DocumentID: documentID,
		UserID:     userID,
		Entity:     entity,
		Operation:  operation,
		Data:       payload,
	})
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
