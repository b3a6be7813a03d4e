package entitlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/acumant/ai-portal/internal/database/models"
)

// MemoryStore keeps the entitlement tables in process memory. It backs the
// memory store driver and unit tests; every read returns copies.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]models.User
	orgs      map[string]models.Organization
	tools     map[string]models.Tool
	orgTools  map[string]map[string]struct{}
	userTools map[string]map[string]struct{}
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]models.User),
		orgs:      make(map[string]models.Organization),
		tools:     make(map[string]models.Tool),
		orgTools:  make(map[string]map[string]struct{}),
		userTools: make(map[string]map[string]struct{}),
		now:       time.Now,
	}
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *MemoryStore) ListUsersByOrganization(ctx context.Context, organizationID string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []models.User
	for _, u := range s.users {
		if u.OrganizationID == organizationID {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.EnsureID()
	if _, ok := s.users[user.ID]; ok {
		return ErrIDTaken
	}
	if s.emailOwner(user.Email) != "" {
		return ErrEmailTaken
	}
	s.stamp(&user.Base, models.Base{})
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.EnsureID()
	if owner := s.emailOwner(user.Email); owner != "" && owner != user.ID {
		return ErrEmailTaken
	}
	s.stamp(&user.Base, s.users[user.ID].Base)
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgs := make([]models.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		orgs = append(orgs, o)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].ID < orgs[j].ID })
	return orgs, nil
}

func (s *MemoryStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *MemoryStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org.EnsureID()
	if _, ok := s.orgs[org.ID]; ok {
		return ErrIDTaken
	}
	s.stamp(&org.Base, models.Base{})
	s.orgs[org.ID] = *org
	return nil
}

func (s *MemoryStore) UpsertOrganization(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org.EnsureID()
	s.stamp(&org.Base, s.orgs[org.ID].Base)
	s.orgs[org.ID] = *org
	return nil
}

func (s *MemoryStore) ListTools(ctx context.Context) ([]models.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]models.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].ID < tools[j].ID })
	return tools, nil
}

func (s *MemoryStore) GetTool(ctx context.Context, id string) (*models.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tools[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryStore) GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tools {
		if t.Slug == slug {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateTool(ctx context.Context, tool *models.Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tool.EnsureID()
	if _, ok := s.tools[tool.ID]; ok {
		return ErrIDTaken
	}
	if s.slugOwner(tool.Slug) != "" {
		return ErrSlugTaken
	}
	s.stamp(&tool.Base, models.Base{})
	s.tools[tool.ID] = *tool
	return nil
}

func (s *MemoryStore) UpsertTool(ctx context.Context, tool *models.Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tool.EnsureID()
	if owner := s.slugOwner(tool.Slug); owner != "" && owner != tool.ID {
		return ErrSlugTaken
	}
	s.stamp(&tool.Base, s.tools[tool.ID].Base)
	s.tools[tool.ID] = *tool
	return nil
}

func (s *MemoryStore) OrganizationToolIDs(ctx context.Context, organizationID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.orgTools[organizationID]), nil
}

func (s *MemoryStore) UserToolIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.userTools[userID]), nil
}

func (s *MemoryStore) ReplaceOrganizationTools(ctx context.Context, organizationID string, toolIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgTools[organizationID] = toSet(toolIDs)
	return nil
}

func (s *MemoryStore) ReplaceUserTools(ctx context.Context, userID string, toolIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userTools[userID] = toSet(toolIDs)
	return nil
}

func (s *MemoryStore) AllOrganizationTools(ctx context.Context) ([]models.OrganizationTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var edges []models.OrganizationTool
	for _, orgID := range sortedKeys(keySet(s.orgTools)) {
		for _, toolID := range sortedKeys(s.orgTools[orgID]) {
			edges = append(edges, models.OrganizationTool{OrganizationID: orgID, ToolID: toolID})
		}
	}
	return edges, nil
}

func (s *MemoryStore) AllUserTools(ctx context.Context) ([]models.UserTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var edges []models.UserTool
	for _, userID := range sortedKeys(keySet(s.userTools)) {
		for _, toolID := range sortedKeys(s.userTools[userID]) {
			edges = append(edges, models.UserTool{UserID: userID, ToolID: toolID})
		}
	}
	return edges, nil
}

// emailOwner and slugOwner return the id holding a unique value. Callers
// hold the lock.
func (s *MemoryStore) emailOwner(email string) string {
	for id, u := range s.users {
		if u.Email == email {
			return id
		}
	}
	return ""
}

func (s *MemoryStore) slugOwner(slug string) string {
	for id, t := range s.tools {
		if t.Slug == slug {
			return id
		}
	}
	return ""
}

// stamp fills timestamps the way gorm would: CreatedAt survives updates.
func (s *MemoryStore) stamp(b *models.Base, existing models.Base) {
	now := s.now()
	if !existing.CreatedAt.IsZero() {
		b.CreatedAt = existing.CreatedAt
	} else if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func keySet(m map[string]map[string]struct{}) map[string]struct{} {
	set := make(map[string]struct{}, len(m))
	for k := range m {
		set[k] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
