package team

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/repository"
	"github.com/taskflow/backend/usecase"
)

type UseCase struct {
	teams     repository.TeamRepository
	users     repository.UserRepository
	publisher usecase.EventPublisher
	logger    *zap.Logger
}

func New(teams repository.TeamRepository, users repository.UserRepository, publisher usecase.EventPublisher, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		teams:     teams,
		users:     users,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateTeam makes the caller the first admin of a new team.
func (uc *UseCase) CreateTeam(ctx context.Context, userID, name string) (*domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid("team name is required")
	}

	team := &domain.Team{Name: name, CreatedBy: userID}
	owner := &domain.Membership{UserID: userID, Roles: []string{domain.RoleAdmin}}
	if err := uc.teams.Create(ctx, team, owner); err != nil {
		return nil, err
	}

	uc.logger.Info("team created", zap.String("team_id", team.ID), zap.String("user_id", userID))
	audience := domain.Audience{Users: []string{userID}, TeamID: team.ID}
	usecase.PublishDocument(ctx, uc.publisher, uc.logger, audience, domain.CollectionTeams, team.ID, domain.ActionCreate, team)
	return team, nil
}

func (uc *UseCase) ListTeams(ctx context.Context, userID string) ([]domain.Team, error) {
	return uc.teams.ListForUser(ctx, userID)
}

// TeamIDs returns the ids of every team the user belongs to.
func (uc *UseCase) TeamIDs(ctx context.Context, userID string) ([]string, error) {
	memberships, err := uc.teams.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.TeamID)
	}
	return ids, nil
}

// IsMember reports whether the user belongs to the team.
func (uc *UseCase) IsMember(ctx context.Context, userID, teamID string) (bool, error) {
	if _, err := uc.teams.FindMembership(ctx, teamID, userID); err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (uc *UseCase) ListMembers(ctx context.Context, userID, teamID string) ([]domain.Membership, error) {
	if _, err := uc.requireMember(ctx, teamID, userID); err != nil {
		return nil, err
	}
	return uc.teams.ListMemberships(ctx, teamID)
}

// Invite adds an existing account to the team.
func (uc *UseCase) Invite(ctx context.Context, actorID, teamID, email, role string) (*domain.Membership, error) {
	role, err := domain.NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if domain.NormalizeEmail(email) == "" {
		return nil, domain.Invalid("email is required")
	}
	if err := uc.requireAdmin(ctx, teamID, actorID); err != nil {
		return nil, err
	}

	invitee, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewError(domain.ErrCodeNotFound, "no account registered for "+email)
		}
		return nil, err
	}

	membership := &domain.Membership{
		TeamID:    teamID,
		UserID:    invitee.ID,
		UserName:  invitee.Name,
		UserEmail: invitee.Email,
		Roles:     []string{role},
	}
	if err := uc.teams.AddMembership(ctx, membership); err != nil {
		return nil, err
	}

	uc.logger.Info("team member invited",
		zap.String("team_id", teamID),
		zap.String("user_id", invitee.ID),
		zap.String("role", role))
	uc.publishMembership(ctx, domain.ActionCreate, membership)
	return membership, nil
}

// UpdateRole replaces the roles of a membership with a single role. A team
// always keeps at least one admin.
func (uc *UseCase) UpdateRole(ctx context.Context, actorID, teamID, membershipID, role string) (*domain.Membership, error) {
	role, err := domain.NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if err := uc.requireAdmin(ctx, teamID, actorID); err != nil {
		return nil, err
	}

	target, err := uc.teams.GetMembership(ctx, teamID, membershipID)
	if err != nil {
		return nil, err
	}
	if target.IsAdmin() && role != domain.RoleAdmin {
		if err := uc.ensureAnotherAdmin(ctx, teamID, target.ID); err != nil {
			return nil, err
		}
	}

	if err := uc.teams.UpdateMembershipRoles(ctx, teamID, membershipID, []string{role}); err != nil {
		return nil, err
	}
	target.Roles = []string{role}
	uc.publishMembership(ctx, domain.ActionUpdate, target)
	return target, nil
}

// RemoveMember deletes a membership. Admins may remove anyone; members may only leave.
func (uc *UseCase) RemoveMember(ctx context.Context, actorID, teamID, membershipID string) error {
	actor, err := uc.requireMember(ctx, teamID, actorID)
	if err != nil {
		return err
	}
	target, err := uc.teams.GetMembership(ctx, teamID, membershipID)
	if err != nil {
		return err
	}
	if target.UserID != actorID && !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if target.IsAdmin() {
		if err := uc.ensureAnotherAdmin(ctx, teamID, target.ID); err != nil {
			return err
		}
	}

	if err := uc.teams.DeleteMembership(ctx, teamID, membershipID); err != nil {
		return err
	}
	uc.publishMembership(ctx, domain.ActionDelete, target)
	return nil
}

func (uc *UseCase) requireMember(ctx context.Context, teamID, userID string) (*domain.Membership, error) {
	if _, err := uc.teams.GetByID(ctx, teamID); err != nil {
		return nil, err
	}
	membership, err := uc.teams.FindMembership(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, domain.NewError(domain.ErrCodeForbidden, "not a member of this team")
		}
		return nil, err
	}
	return membership, nil
}

func (uc *UseCase) requireAdmin(ctx context.Context, teamID, userID string) error {
	membership, err := uc.requireMember(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if !membership.IsAdmin() {
		return domain.NewError(domain.ErrCodeForbidden, "team admin role required")
	}
	return nil
}

func (uc *UseCase) ensureAnotherAdmin(ctx context.Context, teamID, exceptMembershipID string) error {
	memberships, err := uc.teams.ListMemberships(ctx, teamID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if m.ID != exceptMembershipID && m.IsAdmin() {
			return nil
		}
	}
	return domain.NewError(domain.ErrCodeConflict, "a team needs at least one admin")
}

// publishMembership reaches the team and the affected user, who may no
// longer be a member after a delete.
func (uc *UseCase) publishMembership(ctx context.Context, action string, m *domain.Membership) {
	audience := domain.Audience{Users: []string{m.UserID}, TeamID: m.TeamID}
	usecase.PublishDocument(ctx, uc.publisher, uc.logger, audience, domain.CollectionMemberships, m.ID, action, m)
}
