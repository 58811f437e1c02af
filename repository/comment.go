package repository

import (
	"context"

	"github.com/taskflow/backend/domain"
)

type CommentFilter struct {
	Scope  domain.CommentScope
	Limit  int
	Offset int
}

type CommentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	List(ctx context.Context, filter CommentFilter) ([]domain.Comment, error)
	Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	Update(ctx context.Context, comment *domain.Comment) error
	Delete(ctx context.Context, id string) error
}
