package usecase

import (
	"context"
	"errors"

	"github.com/taskflow/backend/domain"
)

// ProjectAccess resolves a project and checks that the user may see it.
type ProjectAccess interface {
	AuthorizeProject(ctx context.Context, userID, projectID string) (*domain.Project, error)
}

// IsOutage reports whether err came from the storage layer rather than from
// a domain rule, which is when writes are diverted to the offline buffer.
func IsOutage(err error) bool {
	if err == nil {
		return false
	}
	var dErr *domain.Error
	return !errors.As(err, &dErr)
}
