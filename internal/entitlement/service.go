package entitlement

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/acumant/ai-portal/internal/audit"
	"github.com/acumant/ai-portal/internal/database/models"
)

// Sealer encrypts tool API keys at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// LogoStorage stores organization logos and returns their public URL.
type LogoStorage interface {
	PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

type Options struct {
	Logger     *slog.Logger
	Sealer     Sealer
	Logos      LogoStorage
	Audit      audit.Recorder
	HTTPClient *http.Client
}

// Service answers entitlement questions and applies admin mutations.
type Service struct {
	store  Store
	sealer Sealer
	logos  LogoStorage
	audit  audit.Recorder
	prober *ToolProber
	logger *slog.Logger
}

func NewService(store Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	recorder := opts.Audit
	if recorder == nil {
		recorder = audit.Discard{}
	}
	return &Service{
		store:  store,
		sealer: opts.Sealer,
		logos:  opts.Logos,
		audit:  recorder,
		prober: NewToolProber(opts.HTTPClient),
		logger: logger,
	}
}

// Store exposes the underlying store for collaborators such as login.
func (s *Service) Store() Store {
	return s.store
}

// CurrentUser resolves the signed-in user. Unknown and inactive users
// resolve to nil so callers treat them as signed out.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, nil
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, nil
	}
	return user, nil
}

func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(users), nil
}

func (s *Service) OrganizationUsers(ctx context.Context, organizationID string) ([]models.User, error) {
	users, err := s.store.ListUsersByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return nonNil(users), nil
}

func (s *Service) Organizations(ctx context.Context) ([]models.Organization, error) {
	orgs, err := s.store.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(orgs), nil
}

// OrganizationByID returns nil without error when the organization does not exist.
func (s *Service) OrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	return s.store.GetOrganization(ctx, id)
}

func (s *Service) AllTools(ctx context.Context) ([]models.Tool, error) {
	tools, err := s.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(tools), nil
}

// OrganizationTools returns the catalog entries licensed to an organization.
// Unknown organizations have no tools.
func (s *Service) OrganizationTools(ctx context.Context, organizationID string) ([]models.Tool, error) {
	ids, err := s.store.OrganizationToolIDs(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return s.resolveTools(ctx, ids)
}

// UserTools returns exactly the tools assigned to a user, whether or not
// the organization still licenses them.
func (s *Service) UserTools(ctx context.Context, userID string) ([]models.Tool, error) {
	ids, err := s.store.UserToolIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolveTools(ctx, ids)
}

// UpdateOrganizationTools replaces the organization's licensed tool set.
func (s *Service) UpdateOrganizationTools(ctx context.Context, organizationID string, toolIDs []string) error {
	org, err := s.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return err
	}
	if org == nil {
		return ErrOrganizationNotFound
	}

	ids := dedupe(toolIDs)
	if err := s.checkCatalog(ctx, ids); err != nil {
		return err
	}
	if err := s.store.ReplaceOrganizationTools(ctx, organizationID, ids); err != nil {
		return err
	}

	s.logger.Info("replaced organization tools", "org_id", organizationID, "tool_ids", ids)
	return nil
}

// UpdateUserTools replaces the user's assigned tool set.
func (s *Service) UpdateUserTools(ctx context.Context, userID string, toolIDs []string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	ids := dedupe(toolIDs)
	if err := s.checkCatalog(ctx, ids); err != nil {
		return err
	}
	if err := s.store.ReplaceUserTools(ctx, userID, ids); err != nil {
		return err
	}

	s.logger.Info("replaced user tools", "user_id", userID, "tool_ids", ids)
	return nil
}

// AccessibleTools returns the tools user can launch: assigned to the user,
// licensed to the user's organization and active in the catalog. Inactive
// users and organizations that are pending or suspended get nothing.
func (s *Service) AccessibleTools(ctx context.Context, user *models.User) ([]models.Tool, error) {
	if !user.IsActive() {
		return []models.Tool{}, nil
	}
	org, err := s.store.GetOrganization(ctx, user.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !org.IsActive() {
		return []models.Tool{}, nil
	}

	userIDs, err := s.store.UserToolIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	orgIDs, err := s.store.OrganizationToolIDs(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	licensed := toSet(orgIDs)

	var granted []string
	for _, id := range userIDs {
		if _, ok := licensed[id]; ok {
			granted = append(granted, id)
		}
	}

	tools, err := s.resolveTools(ctx, granted)
	if err != nil {
		return nil, err
	}
	active := tools[:0]
	for _, t := range tools {
		if t.IsActive {
			active = append(active, t)
		}
	}
	return active, nil
}

func (s *Service) CanAccessTool(ctx context.Context, user *models.User, slug string) (bool, error) {
	tools, err := s.AccessibleTools(ctx, user)
	if err != nil {
		return false, err
	}
	for _, t := range tools {
		if t.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// Navigation describes what the portal shell should offer an actor.
type Navigation struct {
	Screens []Screen      `json:"screens"`
	Tools   []models.Tool `json:"tools"`
}

func (s *Service) Navigation(ctx context.Context, user *models.User) (*Navigation, error) {
	tools, err := s.AccessibleTools(ctx, user)
	if err != nil {
		return nil, err
	}
	screens := VisibleScreens(user)
	if screens == nil {
		screens = []Screen{}
	}
	return &Navigation{Screens: screens, Tools: tools}, nil
}

// resolveTools maps ids to catalog entries, keeping catalog order and
// skipping ids that no longer exist.
func (s *Service) resolveTools(ctx context.Context, ids []string) ([]models.Tool, error) {
	if len(ids) == 0 {
		return []models.Tool{}, nil
	}
	catalog, err := s.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	want := toSet(ids)
	tools := make([]models.Tool, 0, len(ids))
	for _, t := range catalog {
		if _, ok := want[t.ID]; ok {
			tools = append(tools, t)
		}
	}
	return tools, nil
}

func (s *Service) checkCatalog(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	catalog, err := s.store.ListTools(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(catalog))
	for _, t := range catalog {
		known[t.ID] = struct{}{}
	}
	var unknown []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return &UnknownToolsError{IDs: unknown}
	}
	return nil
}

// dedupe returns the distinct ids in ascending order.
func dedupe(ids []string) []string {
	return sortedKeys(toSet(ids))
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
