package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/repository"
)

type teamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository returns a Postgres-backed TeamRepository.
func NewTeamRepository(pool *pgxpool.Pool) repository.TeamRepository {
	return &teamRepository{pool: pool}
}

const teamSelect = `
	SELECT t.id, t.name, t.created_by, t.created_at,
		(SELECT COUNT(*) FROM memberships c WHERE c.team_id = t.id) AS total
	FROM teams t
`

const membershipSelect = `
	SELECT m.id, m.team_id, m.user_id, u.name, u.email, m.roles, m.joined_at
	FROM memberships m
	JOIN users u ON u.id = m.user_id
`

// Create inserts the team and its first (admin) membership atomically.
func (r *teamRepository) Create(ctx context.Context, team *domain.Team, owner *domain.Membership) error {
	if team == nil || owner == nil {
		return domain.ErrInvalidPayload
	}
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	if owner.ID == "" {
		owner.ID = uuid.NewString()
	}
	owner.TeamID = team.ID

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO teams (id, name, created_by) VALUES ($1, $2, $3) RETURNING created_at`,
			team.ID, team.Name, team.CreatedBy,
		).Scan(&team.CreatedAt); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO memberships (id, team_id, user_id, roles) VALUES ($1, $2, $3, $4) RETURNING joined_at`,
			owner.ID, owner.TeamID, owner.UserID, nonNil(owner.Roles),
		).Scan(&owner.JoinedAt); err != nil {
			return err
		}
		team.Total = 1
		return nil
	})
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	row := r.pool.QueryRow(ctx, teamSelect+` WHERE t.id = $1`, id)
	return scanTeam(row)
}

func (r *teamRepository) ListForUser(ctx context.Context, userID string) ([]domain.Team, error) {
	rows, err := r.pool.Query(ctx, teamSelect+`
	WHERE EXISTS (SELECT 1 FROM memberships m WHERE m.team_id = t.id AND m.user_id = $1)
	ORDER BY t.created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]domain.Team, 0)
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *team)
	}
	return teams, rows.Err()
}

func (r *teamRepository) ListMemberships(ctx context.Context, teamID string) ([]domain.Membership, error) {
	return r.queryMemberships(ctx, membershipSelect+` WHERE m.team_id = $1 ORDER BY m.joined_at ASC`, teamID)
}

func (r *teamRepository) ListUserMemberships(ctx context.Context, userID string) ([]domain.Membership, error) {
	return r.queryMemberships(ctx, membershipSelect+` WHERE m.user_id = $1 ORDER BY m.joined_at ASC`, userID)
}

func (r *teamRepository) GetMembership(ctx context.Context, teamID, membershipID string) (*domain.Membership, error) {
	row := r.pool.QueryRow(ctx, membershipSelect+` WHERE m.team_id = $1 AND m.id = $2`, teamID, membershipID)
	return scanMembership(row)
}

func (r *teamRepository) FindMembership(ctx context.Context, teamID, userID string) (*domain.Membership, error) {
	row := r.pool.QueryRow(ctx, membershipSelect+` WHERE m.team_id = $1 AND m.user_id = $2`, teamID, userID)
	return scanMembership(row)
}

func (r *teamRepository) AddMembership(ctx context.Context, membership *domain.Membership) error {
	if membership == nil {
		return domain.ErrInvalidPayload
	}
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	const query = `
	INSERT INTO memberships (id, team_id, user_id, roles)
	VALUES ($1, $2, $3, $4)
	RETURNING joined_at
	`
	if err := r.pool.QueryRow(ctx, query,
		membership.ID,
		membership.TeamID,
		membership.UserID,
		nonNil(membership.Roles),
	).Scan(&membership.JoinedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyMember
		}
		return err
	}
	return nil
}

func (r *teamRepository) UpdateMembershipRoles(ctx context.Context, teamID, membershipID string, roles []string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE memberships SET roles = $3 WHERE team_id = $1 AND id = $2`,
		teamID, membershipID, nonNil(roles))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

func (r *teamRepository) DeleteMembership(ctx context.Context, teamID, membershipID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE team_id = $1 AND id = $2`, teamID, membershipID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

func (r *teamRepository) queryMemberships(ctx context.Context, query string, arg string) ([]domain.Membership, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := make([]domain.Membership, 0)
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, *membership)
	}
	return memberships, rows.Err()
}

func scanTeam(row rowScanner) (*domain.Team, error) {
	var (
		team  domain.Team
		total int64
	)
	if err := row.Scan(&team.ID, &team.Name, &team.CreatedBy, &team.CreatedAt, &total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, err
	}
	team.Total = int(total)
	return &team, nil
}

func scanMembership(row rowScanner) (*domain.Membership, error) {
	var m domain.Membership
	if err := row.Scan(&m.ID, &m.TeamID, &m.UserID, &m.UserName, &m.UserEmail, &m.Roles, &m.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	m.Roles = nonNil(m.Roles)
	return &m, nil
}
