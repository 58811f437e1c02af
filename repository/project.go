package repository

import (
	"context"

	"github.com/taskflow/backend/domain"
)

// ProjectFilter selects projects created by a user or owned by any of the teams.
type ProjectFilter struct {
	CreatedBy string
	TeamIDs   []string
	Limit     int
	Offset    int
}

type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]domain.Project, error)
	Create(ctx context.Context, project *domain.Project) (*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id string) error
}
