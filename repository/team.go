package repository

import (
	"context"

	"github.com/taskflow/backend/domain"
)

type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team, owner *domain.Membership) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Team, error)

	ListMemberships(ctx context.Context, teamID string) ([]domain.Membership, error)
	ListUserMemberships(ctx context.Context, userID string) ([]domain.Membership, error)
	GetMembership(ctx context.Context, teamID, membershipID string) (*domain.Membership, error)
	FindMembership(ctx context.Context, teamID, userID string) (*domain.Membership, error)
	AddMembership(ctx context.Context, membership *domain.Membership) error
	UpdateMembershipRoles(ctx context.Context, teamID, membershipID string, roles []string) error
	DeleteMembership(ctx context.Context, teamID, membershipID string) error
}
