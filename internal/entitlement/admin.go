package entitlement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/acumant/ai-portal/internal/audit"
	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/acumant/ai-portal/pkg/crypto"
	"github.com/acumant/ai-portal/pkg/validation"
)

const (
	MaxLogoSize   = 2 << 20
	maxNameLength = 200
)

// logoExtensions lists the accepted logo formats by sniffed content type.
// SVG is excluded: it is served from the bucket as a document that can run
// script.
var logoExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// sniffLogo detects the logo's type from its leading bytes and returns a
// reader over the whole body.
func sniffLogo(body io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("reading logo: %w", err)
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), body), nil
}

type CreateOrganizationInput struct {
	ID           string
	Name         string
	Subscription models.Subscription
	Status       models.OrganizationStatus
}

type UpdateOrganizationInput struct {
	Name         *string
	Subscription *models.Subscription
	Status       *models.OrganizationStatus
	Logo         *string
}

type CreateUserInput struct {
	ID             string
	Name           string
	Email          string
	Password       string
	Role           models.Role
	OrganizationID string
}

type UpdateUserInput struct {
	Name           *string
	Role           *models.Role
	Status         *models.UserStatus
	OrganizationID *string
}

type CreateToolInput struct {
	ID          string
	Name        string
	Description string
	Slug        string
	LaunchURL   string
	APIKey      string
	IsActive    *bool
}

// UpdateToolInput changes only the non-nil fields. An empty APIKey clears
// the stored key.
type UpdateToolInput struct {
	Name        *string
	Description *string
	Slug        *string
	LaunchURL   *string
	APIKey      *string
	IsActive    *bool
}

func (s *Service) CreateOrganization(ctx context.Context, actor *models.User, in CreateOrganizationInput) (*models.Organization, error) {
	if !IsSuperAdmin(actor) {
		return nil, ErrForbidden
	}

	org := &models.Organization{
		Base:         models.Base{ID: in.ID},
		Name:         validation.SanitizeString(in.Name),
		Subscription: in.Subscription,
		Status:       in.Status,
	}
	if org.Subscription == "" {
		org.Subscription = models.SubscriptionStandard
	}
	if org.Status == "" {
		org.Status = models.OrganizationStatusActive
	}

	fields := make(map[string]string)
	if org.ID != "" && !validation.IsValidID(org.ID) {
		fields["id"] = "Invalid id"
	}
	checkName(fields, org.Name)
	if !org.Subscription.Valid() {
		fields["subscription"] = "Invalid subscription"
	}
	if !org.Status.Valid() {
		fields["status"] = "Invalid status"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if org.ID != "" {
		existing, err := s.store.GetOrganization(ctx, org.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrIDTaken
		}
	}

	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}

	s.logger.Info("created organization", "org_id", org.ID, "subscription", org.Subscription, "actor_id", actor.ID)
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionOrganizationCreated,
		TargetType: "organization",
		TargetID:   org.ID,
		Detail:     map[string]interface{}{"name": org.Name, "subscription": org.Subscription, "status": org.Status},
	})
	return org, nil
}

// UpdateOrganization applies any valid subscription or status value; there
// are no transition rules between them.
func (s *Service) UpdateOrganization(ctx context.Context, actor *models.User, id string, in UpdateOrganizationInput) (*models.Organization, error) {
	if !IsSuperAdmin(actor) {
		return nil, ErrForbidden
	}
	org, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrganizationNotFound
	}

	fields := make(map[string]string)
	changes := make(map[string]interface{})
	if in.Name != nil {
		org.Name = validation.SanitizeString(*in.Name)
		checkName(fields, org.Name)
		changes["name"] = org.Name
	}
	if in.Subscription != nil {
		if !in.Subscription.Valid() {
			fields["subscription"] = "Invalid subscription"
		}
		org.Subscription = *in.Subscription
		changes["subscription"] = org.Subscription
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			fields["status"] = "Invalid status"
		}
		org.Status = *in.Status
		changes["status"] = org.Status
	}
	if in.Logo != nil {
		if *in.Logo != "" && !validation.IsValidHTTPURL(*in.Logo) {
			fields["logo"] = "Logo must be an http(s) URL"
		}
		org.Logo = *in.Logo
		changes["logo"] = org.Logo
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.store.UpsertOrganization(ctx, org); err != nil {
		return nil, err
	}

	s.logger.Info("updated organization", "org_id", org.ID, "actor_id", actor.ID)
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionOrganizationUpdated,
		TargetType: "organization",
		TargetID:   org.ID,
		Detail:     changes,
	})
	return org, nil
}

// SetOrganizationLogo uploads a logo and points the organization at it. The
// stored content type comes from the bytes, never from the client.
func (s *Service) SetOrganizationLogo(ctx context.Context, actor *models.User, id string, body io.Reader, size int64) (*models.Organization, error) {
	if !IsSuperAdmin(actor) {
		return nil, ErrForbidden
	}
	if s.logos == nil {
		return nil, ErrLogoStorageDisabled
	}
	if size <= 0 || size > MaxLogoSize {
		return nil, invalid("logo", "Logo must be at most 2 MiB")
	}

	contentType, body, err := sniffLogo(body)
	if err != nil {
		return nil, err
	}
	ext, ok := logoExtensions[contentType]
	if !ok {
		return nil, invalid("logo", "Logo must be PNG, JPEG or WebP")
	}

	org, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrganizationNotFound
	}

	key := fmt.Sprintf("organizations/%s/logo-%d%s", org.ID, time.Now().UnixNano(), ext)
	url, err := s.logos.PutObject(ctx, key, contentType, body, size)
	if err != nil {
		return nil, fmt.Errorf("uploading logo: %w", err)
	}

	org.Logo = url
	if err := s.store.UpsertOrganization(ctx, org); err != nil {
		return nil, err
	}

	s.logger.Info("updated organization logo", "org_id", org.ID, "key", key)
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionOrganizationLogo,
		TargetType: "organization",
		TargetID:   org.ID,
		Detail:     map[string]interface{}{"logo": url},
	})
	return org, nil
}

// CreateUser adds an active user. Admins create users in their own
// organization when OrganizationID is empty.
func (s *Service) CreateUser(ctx context.Context, actor *models.User, in CreateUserInput) (*models.User, error) {
	if !IsAdmin(actor) {
		return nil, ErrForbidden
	}
	if in.OrganizationID == "" {
		in.OrganizationID = actor.OrganizationID
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !CanManageOrganization(actor, in.OrganizationID) {
		return nil, ErrForbidden
	}
	if in.Role.Valid() && !CanAssignRole(actor, in.Role) {
		return nil, ErrForbidden
	}

	user := &models.User{
		Base:           models.Base{ID: in.ID},
		Name:           validation.SanitizeString(in.Name),
		Email:          validation.NormalizeEmail(in.Email),
		Role:           in.Role,
		Status:         models.UserStatusActive,
		OrganizationID: in.OrganizationID,
	}

	fields := make(map[string]string)
	if user.ID != "" && !validation.IsValidID(user.ID) {
		fields["id"] = "Invalid id"
	}
	checkName(fields, user.Name)
	if !validation.IsValidEmail(user.Email) {
		fields["email"] = "Invalid email format"
	}
	if ok, msg := validation.IsValidPassword(in.Password); !ok {
		fields["password"] = msg
	}
	if !user.Role.Valid() {
		fields["role"] = "Invalid role"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	org, err := s.store.GetOrganization(ctx, user.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, invalid("organization_id", "Organization does not exist")
	}
	if err := s.ensureEmailFree(ctx, user.Email, ""); err != nil {
		return nil, err
	}
	if user.ID != "" {
		existing, err := s.store.GetUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrIDTaken
		}
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("created user", "user_id", user.ID, "org_id", user.OrganizationID, "role", user.Role, "actor_id", actor.ID)
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionUserCreated,
		TargetType: "user",
		TargetID:   user.ID,
		Detail:     map[string]interface{}{"email": user.Email, "role": user.Role, "organization_id": user.OrganizationID},
	})
	return user, nil
}

// User returns the target if actor may manage it.
func (s *Service) User(ctx context.Context, actor *models.User, id string) (*models.User, error) {
	target, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrUserNotFound
	}
	if !CanManageUser(actor, target) {
		return nil, ErrForbidden
	}
	return target, nil
}

// UpdateUser edits a user. Actors cannot change their own role or
// deactivate themselves, and only super admins move users between
// organizations.
func (s *Service) UpdateUser(ctx context.Context, actor *models.User, id string, in UpdateUserInput) (*models.User, error) {
	target, err := s.User(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	self := actor.ID == target.ID

	fields := make(map[string]string)
	changes := make(map[string]interface{})
	if in.Name != nil {
		target.Name = validation.SanitizeString(*in.Name)
		checkName(fields, target.Name)
		changes["name"] = target.Name
	}
	if in.Role != nil && *in.Role != target.Role {
		switch {
		case !in.Role.Valid():
			fields["role"] = "Invalid role"
		case self || !CanAssignRole(actor, *in.Role):
			return nil, ErrForbidden
		}
		target.Role = *in.Role
		changes["role"] = target.Role
	}
	if in.Status != nil && *in.Status != target.Status {
		switch {
		case !in.Status.Valid():
			fields["status"] = "Invalid status"
		case self && *in.Status != models.UserStatusActive:
			return nil, ErrForbidden
		}
		target.Status = *in.Status
		changes["status"] = target.Status
	}
	if in.OrganizationID != nil && *in.OrganizationID != target.OrganizationID {
		if !IsSuperAdmin(actor) {
			return nil, ErrForbidden
		}
		org, err := s.store.GetOrganization(ctx, *in.OrganizationID)
		if err != nil {
			return nil, err
		}
		if org == nil {
			fields["organization_id"] = "Organization does not exist"
		}
		target.OrganizationID = *in.OrganizationID
		changes["organization_id"] = target.OrganizationID
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.store.UpsertUser(ctx, target); err != nil {
		return nil, err
	}

	action := audit.ActionUserUpdated
	if in.Status != nil && *in.Status == models.UserStatusInactive && len(changes) == 1 {
		action = audit.ActionUserDeactivated
	}
	s.logger.Info("updated user", "user_id", target.ID, "actor_id", actor.ID, "action", action)
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     action,
		TargetType: "user",
		TargetID:   target.ID,
		Detail:     changes,
	})
	return target, nil
}

// DeactivateUser is the only form of user removal.
func (s *Service) DeactivateUser(ctx context.Context, actor *models.User, id string) (*models.User, error) {
	status := models.UserStatusInactive
	return s.UpdateUser(ctx, actor, id, UpdateUserInput{Status: &status})
}

// ManagedUsers lists every user for super admins and the actor's own
// organization for admins.
func (s *Service) ManagedUsers(ctx context.Context, actor *models.User) ([]models.User, error) {
	switch {
	case IsSuperAdmin(actor):
		return s.Users(ctx)
	case IsAdmin(actor):
		return s.OrganizationUsers(ctx, actor.OrganizationID)
	}
	return nil, ErrForbidden
}

// AssignUserTools replaces a user's tools on behalf of actor. Admins may only
// hand out tools their organization licenses.
func (s *Service) AssignUserTools(ctx context.Context, actor *models.User, userID string, toolIDs []string) ([]models.Tool, error) {
	target, err := s.User(ctx, actor, userID)
	if err != nil {
		return nil, err
	}

	ids := dedupe(toolIDs)
	if err := s.checkCatalog(ctx, ids); err != nil {
		return nil, err
	}
	if !IsSuperAdmin(actor) {
		licensed, err := s.store.OrganizationToolIDs(ctx, target.OrganizationID)
		if err != nil {
			return nil, err
		}
		allowed := toSet(licensed)
		for _, id := range ids {
			if _, ok := allowed[id]; !ok {
				return nil, invalid("tool_ids", "Tool "+id+" is not licensed to the organization")
			}
		}
	}

	if err := s.UpdateUserTools(ctx, target.ID, ids); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionUserTools,
		TargetType: "user",
		TargetID:   target.ID,
		Detail:     map[string]interface{}{"tool_ids": ids},
	})
	return s.UserTools(ctx, target.ID)
}

// AssignOrganizationTools replaces an organization's licenses. Existing user
// assignments are kept; tools no longer licensed simply stop being
// accessible.
func (s *Service) AssignOrganizationTools(ctx context.Context, actor *models.User, organizationID string, toolIDs []string) ([]models.Tool, error) {
	if !IsSuperAdmin(actor) {
		return nil, ErrForbidden
	}
	ids := dedupe(toolIDs)
	if err := s.UpdateOrganizationTools(ctx, organizationID, ids); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionOrganizationTools,
		TargetType: "organization",
		TargetID:   organizationID,
		Detail:     map[string]interface{}{"tool_ids": ids},
	})
	return s.OrganizationTools(ctx, organizationID)
}

func (s *Service) CreateTool(ctx context.Context, actor *models.User, in CreateToolInput) (*models.Tool, error) {
	if !IsSuperAdmin(actor) {
		return nil, ErrForbidden
	}

	tool := &models.Tool{
		Base:        models.Base{ID: in.ID},
		Name:        validation.SanitizeString(in.Name),
		Description: validation.SanitizeString(in.Description),
		Slug:        in.Slug,
		LaunchURL:   in.LaunchURL,
		IsActive:    true,
	}
	if in.IsActive != nil {
		tool.IsActive = *in.IsActive
	}

	fields := make(map[string]string)
	if tool.ID != "" && !validation.IsValidID(tool.ID) {
		fields["id"] = "Invalid id"
	}
	checkName(fields, tool.Name)
	if !validation.IsValidSlug(tool.Slug) {
		fields["slug"] = "Slug must be lowercase letters, digits and single hyphens"
	}
	if tool.LaunchURL != "" && !validation.IsValidHTTPURL(tool.LaunchURL) {
		fields["launch_url"] = "Launch URL must be an http(s) URL"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if tool.ID != "" {
		existing, err := s.store.GetTool(ctx, tool.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrIDTaken
		}
	}
	if err := s.ensureSlugFree(ctx, tool.Slug, ""); err != nil {
		return nil, err
	}
	if err := s.setAPIKey(tool, in.APIKey); err != nil {
		return nil, err
	}

	if err := s.store.CreateTool(ctx, tool); err != nil {
		return nil, err
	}

	s.logger.Info("created tool", "tool_id", tool.ID, "slug", tool.Slug, "actor_id", actor.ID)
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionToolCreated,
		TargetType: "tool",
		TargetID:   tool.ID,
		Detail:     map[string]interface{}{"slug": tool.Slug, "is_active": tool.IsActive},
	})
	return tool, nil
}

func (s *Service) UpdateTool(ctx context.Context, actor *models.User, id string, in UpdateToolInput) (*models.Tool, error) {
	if !IsSuperAdmin(actor) {
		return nil, ErrForbidden
	}
	tool, err := s.store.GetTool(ctx, id)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, ErrToolNotFound
	}

	fields := make(map[string]string)
	changes := make(map[string]interface{})
	if in.Name != nil {
		tool.Name = validation.SanitizeString(*in.Name)
		checkName(fields, tool.Name)
		changes["name"] = tool.Name
	}
	if in.Description != nil {
		tool.Description = validation.SanitizeString(*in.Description)
		changes["description"] = tool.Description
	}
	if in.Slug != nil && *in.Slug != tool.Slug {
		if !validation.IsValidSlug(*in.Slug) {
			fields["slug"] = "Slug must be lowercase letters, digits and single hyphens"
		}
		tool.Slug = *in.Slug
		changes["slug"] = tool.Slug
	}
	if in.LaunchURL != nil {
		if *in.LaunchURL != "" && !validation.IsValidHTTPURL(*in.LaunchURL) {
			fields["launch_url"] = "Launch URL must be an http(s) URL"
		}
		tool.LaunchURL = *in.LaunchURL
		changes["launch_url"] = tool.LaunchURL
	}
	if in.IsActive != nil {
		tool.IsActive = *in.IsActive
		changes["is_active"] = tool.IsActive
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, ok := changes["slug"]; ok {
		if err := s.ensureSlugFree(ctx, tool.Slug, tool.ID); err != nil {
			return nil, err
		}
	}
	if in.APIKey != nil {
		if err := s.setAPIKey(tool, *in.APIKey); err != nil {
			return nil, err
		}
		changes["api_key"] = tool.HasAPIKey()
	}

	if err := s.store.UpsertTool(ctx, tool); err != nil {
		return nil, err
	}

	s.logger.Info("updated tool", "tool_id", tool.ID, "actor_id", actor.ID)
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionToolUpdated,
		TargetType: "tool",
		TargetID:   tool.ID,
		Detail:     changes,
	})
	return tool, nil
}

// TestTool probes the tool's launch URL once. Network failures are part of
// the result, not an error.
func (s *Service) TestTool(ctx context.Context, actor *models.User, id string) (*ToolProbe, error) {
	if !IsSuperAdmin(actor) {
		return nil, ErrForbidden
	}
	tool, err := s.store.GetTool(ctx, id)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, ErrToolNotFound
	}
	if tool.LaunchURL == "" {
		return nil, ErrNoLaunchURL
	}

	var apiKey string
	if tool.HasAPIKey() {
		if s.sealer == nil {
			return nil, ErrSecretsDisabled
		}
		apiKey, err = s.sealer.Open(tool.EncryptedAPIKey)
		if err != nil {
			return nil, fmt.Errorf("opening api key: %w", err)
		}
	}

	probe := s.prober.Probe(ctx, tool.LaunchURL, apiKey)
	probe.ToolID = tool.ID
	s.logger.Info("tested tool",
		"tool_id", tool.ID,
		"healthy", probe.Healthy,
		"status", probe.StatusCode,
		"latency_ms", probe.LatencyMS,
	)
	return probe, nil
}

func (s *Service) setAPIKey(tool *models.Tool, apiKey string) error {
	if apiKey == "" {
		tool.EncryptedAPIKey = ""
		return nil
	}
	if s.sealer == nil {
		return ErrSecretsDisabled
	}
	sealed, err := s.sealer.Seal(apiKey)
	if err != nil {
		return fmt.Errorf("sealing api key: %w", err)
	}
	tool.EncryptedAPIKey = sealed
	return nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != ownerID {
		return ErrEmailTaken
	}
	return nil
}

func (s *Service) ensureSlugFree(ctx context.Context, slug, ownerID string) error {
	existing, err := s.store.GetToolBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != ownerID {
		return ErrSlugTaken
	}
	return nil
}

func checkName(fields map[string]string, name string) {
	switch {
	case name == "":
		fields["name"] = "Name is required"
	case len([]rune(name)) > maxNameLength:
		fields["name"] = "Name is too long"
	}
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrOrganizationNotFound) ||
		errors.Is(err, ErrToolNotFound)
}
