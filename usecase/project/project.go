package project

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/repository"
	"github.com/taskflow/backend/usecase"
)

type UseCase struct {
	projects  repository.ProjectRepository
	teams     repository.TeamRepository
	recent    *usecase.Recent[domain.Project]
	members   *usecase.Recent[domain.Membership]
	buffer    usecase.OperationBuffer
	publisher usecase.EventPublisher
	logger    *zap.Logger
}

func New(projects repository.ProjectRepository, teams repository.TeamRepository, buffer usecase.OperationBuffer, publisher usecase.EventPublisher, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		projects:  projects,
		teams:     teams,
		recent:    usecase.NewRecent[domain.Project](usecase.DefaultRecentTTL),
		members:   usecase.NewRecent[domain.Membership](usecase.DefaultRecentTTL),
		buffer:    buffer,
		publisher: publisher,
		logger:    logger,
	}
}

// ProjectInput carries the writable project fields.
type ProjectInput struct {
	Name        string
	Description string
	TeamID      *string
}

// ListProjects returns the user's personal projects followed by the projects
// of every team they belong to, without duplicates.
func (uc *UseCase) ListProjects(ctx context.Context, userID string, limit, offset int) ([]domain.Project, error) {
	memberships, err := uc.teams.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	teamIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		teamIDs = append(teamIDs, m.TeamID)
	}

	var personal, shared []domain.Project
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		personal, err = uc.projects.List(gctx, repository.ProjectFilter{CreatedBy: userID})
		return err
	})
	if len(teamIDs) > 0 {
		g.Go(func() error {
			var err error
			shared, err = uc.projects.List(gctx, repository.ProjectFilter{TeamIDs: teamIDs})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeProjects(personal, shared)
	return page(merged, limit, offset), nil
}

func (uc *UseCase) GetProject(ctx context.Context, userID, id string) (*domain.Project, error) {
	return uc.AuthorizeProject(ctx, userID, id)
}

// AuthorizeProject loads a project visible to the user: its creator or any
// member of its team. While the store is down, recently seen projects and
// memberships stand in for it.
func (uc *UseCase) AuthorizeProject(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	project, err := uc.recent.Load(projectID, func() (domain.Project, error) {
		p, err := uc.projects.GetByID(ctx, projectID)
		if err != nil {
			return domain.Project{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, err
	}
	if project.CreatedBy == userID {
		return &project, nil
	}
	if !project.IsTeamProject() {
		return nil, domain.ErrForbidden
	}
	if _, err := uc.membership(ctx, *project.TeamID, userID); err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	return &project, nil
}

func (uc *UseCase) membership(ctx context.Context, teamID, userID string) (*domain.Membership, error) {
	m, err := uc.members.Load(usecase.AccessKey(userID, teamID), func() (domain.Membership, error) {
		m, err := uc.teams.FindMembership(ctx, teamID, userID)
		if err != nil {
			return domain.Membership{}, err
		}
		return *m, nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (uc *UseCase) CreateProject(ctx context.Context, userID string, in ProjectInput) (*domain.Project, error) {
	project := &domain.Project{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		TeamID:      in.TeamID,
		CreatedBy:   userID,
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	if project.IsTeamProject() {
		if _, err := uc.membership(ctx, *project.TeamID, userID); err != nil {
			if errors.Is(err, domain.ErrMembershipNotFound) {
				return nil, domain.NewError(domain.ErrCodeForbidden, "not a member of this team")
			}
			return nil, err
		}
	}

	created, err := uc.projects.Create(ctx, project)
	if err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationCreate, project, err) {
			uc.recent.Put(project.ID, *project)
			return project, nil
		}
		return nil, err
	}
	uc.recent.Put(created.ID, *created)

	uc.logger.Info("project created", zap.String("project_id", created.ID), zap.String("user_id", userID))
	uc.publish(ctx, domain.ActionCreate, created)
	return created, nil
}

func (uc *UseCase) UpdateProject(ctx context.Context, userID, id string, in ProjectInput) (*domain.Project, error) {
	project, err := uc.AuthorizeProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	project.Name = in.Name
	project.Description = in.Description
	if err := project.Validate(); err != nil {
		return nil, err
	}

	if err := uc.projects.Update(ctx, project); err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationUpdate, project, err) {
			uc.recent.Put(project.ID, *project)
			return project, nil
		}
		return nil, err
	}
	uc.recent.Put(project.ID, *project)
	uc.publish(ctx, domain.ActionUpdate, project)
	return project, nil
}

// DeleteProject removes only the project row; its tasks and comments stay.
// The creator or an admin of the owning team may delete.
func (uc *UseCase) DeleteProject(ctx context.Context, userID, id string) error {
	project, err := uc.AuthorizeProject(ctx, userID, id)
	if err != nil {
		return err
	}
	if project.CreatedBy != userID {
		membership, err := uc.membership(ctx, *project.TeamID, userID)
		if err != nil {
			return err
		}
		if !membership.IsAdmin() {
			return domain.NewError(domain.ErrCodeForbidden, "only the creator or a team admin can delete a project")
		}
	}

	if err := uc.projects.Delete(ctx, id); err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationDelete, project, err) {
			uc.recent.Forget(id)
			return nil
		}
		return err
	}
	uc.recent.Forget(id)
	uc.publish(ctx, domain.ActionDelete, project)
	return nil
}

func (uc *UseCase) publish(ctx context.Context, action string, project *domain.Project) {
	usecase.PublishDocument(ctx, uc.publisher, uc.logger, domain.ProjectAudience(project),
		domain.CollectionProjects, project.ID, action, project)
}

func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, project *domain.Project, cause error) bool {
	if uc.buffer == nil || !usecase.IsOutage(cause) {
		return false
	}
	if err := uc.buffer.BufferProject(ctx, operation, project); err != nil {
		uc.logger.Error("failed to buffer project operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	uc.logger.Warn("project operation buffered",
		zap.String("operation", operation),
		zap.String("project_id", project.ID),
		zap.Error(cause))
	return true
}

func mergeProjects(lists ...[]domain.Project) []domain.Project {
	seen := make(map[string]struct{})
	out := make([]domain.Project, 0)
	for _, list := range lists {
		for _, p := range list {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func page(projects []domain.Project, limit, offset int) []domain.Project {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(projects) {
		return []domain.Project{}
	}
	projects = projects[offset:]
	if limit > 0 && limit < len(projects) {
		projects = projects[:limit]
	}
	return projects
}
