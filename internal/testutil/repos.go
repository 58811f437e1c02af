// Package testutil provides in-memory fakes for repository and port interfaces.
package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/repository"
)

// Users is an in-memory repository.UserRepository.
type Users struct {
	mu        sync.Mutex
	byID      map[string]domain.User
	GetErr    error
	CreateErr error
}

func NewUsers() *Users {
	return &Users{byID: make(map[string]domain.User)}
}

func (u *Users) Add(user domain.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	user.Email = domain.NormalizeEmail(user.Email)
	u.byID[user.ID] = user
}

func (u *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u.GetErr != nil {
		return nil, u.GetErr
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u.GetErr != nil {
		return nil, u.GetErr
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	email = domain.NormalizeEmail(email)
	for _, user := range u.byID {
		if user.Email == email {
			user := user
			return &user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (u *Users) Create(_ context.Context, user *domain.User) error {
	if u.CreateErr != nil {
		return u.CreateErr
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.byID {
		if existing.Email == domain.NormalizeEmail(user.Email) {
			return domain.ErrEmailTaken
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	u.byID[user.ID] = *user
	return nil
}

// Sessions is an in-memory repository.SessionRepository.
type Sessions struct {
	mu      sync.Mutex
	byID    map[string]domain.Session
	SaveErr error
	Deleted []string
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]domain.Session)}
}

func (s *Sessions) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *Sessions) Save(_ context.Context, session *domain.Session) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[session.ID] = *session
	return nil
}

func (s *Sessions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	s.Deleted = append(s.Deleted, id)
	return nil
}

func (s *Sessions) Extend(_ context.Context, id string, ttlSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.ExpiresAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	s.byID[id] = session
	return nil
}

func (s *Sessions) DeleteForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, session := range s.byID {
		if session.UserID == userID {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Teams is an in-memory repository.TeamRepository. Memberships resolve user
// names and emails through the optional Users fake.
type Teams struct {
	mu          sync.Mutex
	teams       map[string]domain.Team
	memberships map[string]domain.Membership
	users       *Users
	FindErr     error
}

func NewTeams(users *Users) *Teams {
	return &Teams{
		teams:       make(map[string]domain.Team),
		memberships: make(map[string]domain.Membership),
		users:       users,
	}
}

func (t *Teams) Create(_ context.Context, team *domain.Team, owner *domain.Membership) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	if owner.ID == "" {
		owner.ID = uuid.NewString()
	}
	team.CreatedAt = time.Now()
	team.Total = 1
	owner.TeamID = team.ID
	owner.JoinedAt = team.CreatedAt
	t.teams[team.ID] = *team
	t.memberships[owner.ID] = *owner
	return nil
}

func (t *Teams) GetByID(_ context.Context, id string) (*domain.Team, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	team, ok := t.teams[id]
	if !ok {
		return nil, domain.ErrTeamNotFound
	}
	team.Total = t.countLocked(id)
	return &team, nil
}

func (t *Teams) ListForUser(_ context.Context, userID string) ([]domain.Team, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Team, 0)
	for _, m := range t.memberships {
		if m.UserID == userID {
			team := t.teams[m.TeamID]
			team.Total = t.countLocked(team.ID)
			out = append(out, team)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *Teams) ListMemberships(_ context.Context, teamID string) ([]domain.Membership, error) {
	return t.filter(func(m domain.Membership) bool { return m.TeamID == teamID }), nil
}

func (t *Teams) ListUserMemberships(_ context.Context, userID string) ([]domain.Membership, error) {
	return t.filter(func(m domain.Membership) bool { return m.UserID == userID }), nil
}

func (t *Teams) GetMembership(_ context.Context, teamID, membershipID string) (*domain.Membership, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.memberships[membershipID]
	if !ok || m.TeamID != teamID {
		return nil, domain.ErrMembershipNotFound
	}
	t.decorate(&m)
	return &m, nil
}

func (t *Teams) FindMembership(_ context.Context, teamID, userID string) (*domain.Membership, error) {
	if t.FindErr != nil {
		return nil, t.FindErr
	}
	found := t.filter(func(m domain.Membership) bool { return m.TeamID == teamID && m.UserID == userID })
	if len(found) == 0 {
		return nil, domain.ErrMembershipNotFound
	}
	return &found[0], nil
}

func (t *Teams) AddMembership(_ context.Context, membership *domain.Membership) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.memberships {
		if m.TeamID == membership.TeamID && m.UserID == membership.UserID {
			return domain.ErrAlreadyMember
		}
	}
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	membership.JoinedAt = time.Now()
	t.memberships[membership.ID] = *membership
	return nil
}

func (t *Teams) UpdateMembershipRoles(_ context.Context, teamID, membershipID string, roles []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.memberships[membershipID]
	if !ok || m.TeamID != teamID {
		return domain.ErrMembershipNotFound
	}
	m.Roles = slices.Clone(roles)
	t.memberships[membershipID] = m
	return nil
}

func (t *Teams) DeleteMembership(_ context.Context, teamID, membershipID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.memberships[membershipID]
	if !ok || m.TeamID != teamID {
		return domain.ErrMembershipNotFound
	}
	delete(t.memberships, membershipID)
	return nil
}

func (t *Teams) filter(keep func(domain.Membership) bool) []domain.Membership {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Membership, 0)
	for _, m := range t.memberships {
		if keep(m) {
			t.decorate(&m)
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *Teams) decorate(m *domain.Membership) {
	if t.users == nil {
		return
	}
	if user, err := t.users.GetByID(context.Background(), m.UserID); err == nil {
		m.UserName = user.Name
		m.UserEmail = user.Email
	}
}

func (t *Teams) countLocked(teamID string) int {
	n := 0
	for _, m := range t.memberships {
		if m.TeamID == teamID {
			n++
		}
	}
	return n
}

// Projects is an in-memory repository.ProjectRepository.
type Projects struct {
	mu        sync.Mutex
	byID      map[string]domain.Project
	order     []string
	GetErr    error
	CreateErr error
	UpdateErr error
	DeleteErr error
	ListErr   error
}

func NewProjects() *Projects {
	return &Projects{byID: make(map[string]domain.Project)}
}

func (p *Projects) GetByID(_ context.Context, id string) (*domain.Project, error) {
	if p.GetErr != nil {
		return nil, p.GetErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	project, ok := p.byID[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return &project, nil
}

func (p *Projects) List(_ context.Context, filter repository.ProjectFilter) ([]domain.Project, error) {
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Project, 0)
	for _, id := range p.order {
		project, ok := p.byID[id]
		if !ok {
			continue
		}
		mine := filter.CreatedBy != "" && project.CreatedBy == filter.CreatedBy
		team := project.TeamID != nil && slices.Contains(filter.TeamIDs, *project.TeamID)
		if mine || team {
			out = append(out, project)
		}
	}
	return out, nil
}

func (p *Projects) Create(_ context.Context, project *domain.Project) (*domain.Project, error) {
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt
	p.byID[project.ID] = *project
	p.order = append(p.order, project.ID)
	return project, nil
}

func (p *Projects) Update(_ context.Context, project *domain.Project) error {
	if p.UpdateErr != nil {
		return p.UpdateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byID[project.ID]; !ok {
		return domain.ErrProjectNotFound
	}
	project.UpdatedAt = time.Now()
	p.byID[project.ID] = *project
	return nil
}

func (p *Projects) Delete(_ context.Context, id string) error {
	if p.DeleteErr != nil {
		return p.DeleteErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byID[id]; !ok {
		return domain.ErrProjectNotFound
	}
	delete(p.byID, id)
	return nil
}

// Tasks is an in-memory repository.TaskRepository.
type Tasks struct {
	mu        sync.Mutex
	byID      map[string]domain.Task
	order     []string
	GetErr    error
	CreateErr error
	UpdateErr error
	DeleteErr error
}

func NewTasks() *Tasks {
	return &Tasks{byID: make(map[string]domain.Task)}
}

func (r *Tasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	task.Assignees = slices.Clone(task.Assignees)
	return &task, nil
}

func (r *Tasks) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Task, 0)
	for _, id := range r.order {
		task, ok := r.byID[id]
		if !ok {
			continue
		}
		if filter.ProjectID != "" && task.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Assignee != "" && !slices.Contains(task.Assignees, filter.Assignee) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (r *Tasks) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	r.byID[task.ID] = *task
	r.order = append(r.order, task.ID)
	return task, nil
}

func (r *Tasks) Update(_ context.Context, task *domain.Task) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now()
	r.byID[task.ID] = *task
	return nil
}

func (r *Tasks) Delete(_ context.Context, id string) error {
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.byID, id)
	return nil
}

// Comments is an in-memory repository.CommentRepository.
type Comments struct {
	mu        sync.Mutex
	byID      map[string]domain.Comment
	order     []string
	GetErr    error
	CreateErr error
	UpdateErr error
	DeleteErr error
}

func NewComments() *Comments {
	return &Comments{byID: make(map[string]domain.Comment)}
}

func (r *Comments) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrCommentNotFound
	}
	return &c, nil
}

// List returns newest first, mirroring the Postgres ordering.
func (r *Comments) List(_ context.Context, filter repository.CommentFilter) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Comment, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		c, ok := r.byID[r.order[i]]
		if ok && filter.Scope.Matches(&c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *Comments) Create(_ context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.CreatedAt = time.Now()
	comment.UpdatedAt = comment.CreatedAt
	r.byID[comment.ID] = *comment
	r.order = append(r.order, comment.ID)
	return comment, nil
}

func (r *Comments) Update(_ context.Context, comment *domain.Comment) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[comment.ID]; !ok {
		return domain.ErrCommentNotFound
	}
	comment.UpdatedAt = time.Now()
	r.byID[comment.ID] = *comment
	return nil
}

func (r *Comments) Delete(_ context.Context, id string) error {
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrCommentNotFound
	}
	delete(r.byID, id)
	return nil
}

var (
	_ repository.UserRepository    = (*Users)(nil)
	_ repository.SessionRepository = (*Sessions)(nil)
	_ repository.TeamRepository    = (*Teams)(nil)
	_ repository.ProjectRepository = (*Projects)(nil)
	_ repository.TaskRepository    = (*Tasks)(nil)
	_ repository.CommentRepository = (*Comments)(nil)
)
