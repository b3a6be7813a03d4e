package dto

import (
	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/acumant/ai-portal/internal/entitlement"
)

type OrganizationDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Subscription string `json:"subscription"`
	Status       string `json:"status"`
	Logo         string `json:"logo,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func NewOrganizationDTO(o *models.Organization) OrganizationDTO {
	out := OrganizationDTO{
		ID:           o.ID,
		Name:         o.Name,
		Subscription: string(o.Subscription),
		Status:       string(o.Status),
		Logo:         o.Logo,
	}
	if !o.CreatedAt.IsZero() {
		out.CreatedAt = o.CreatedAt.UTC().Format(timeFormat)
	}
	return out
}

func NewOrganizationDTOs(orgs []models.Organization) []OrganizationDTO {
	out := make([]OrganizationDTO, len(orgs))
	for i := range orgs {
		out[i] = NewOrganizationDTO(&orgs[i])
	}
	return out
}

type ToolDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
	IsActive    bool   `json:"is_active"`
	LaunchURL   string `json:"launch_url,omitempty"`
	HasAPIKey   bool   `json:"has_api_key"`
}

func NewToolDTO(t *models.Tool) ToolDTO {
	return ToolDTO{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Slug:        t.Slug,
		IsActive:    t.IsActive,
		LaunchURL:   t.LaunchURL,
		HasAPIKey:   t.HasAPIKey(),
	}
}

func NewToolDTOs(tools []models.Tool) []ToolDTO {
	out := make([]ToolDTO, len(tools))
	for i := range tools {
		out[i] = NewToolDTO(&tools[i])
	}
	return out
}

type NavigationResponse struct {
	Screens []entitlement.Screen `json:"screens"`
	Tools   []ToolDTO            `json:"tools"`
}

type AccessResponse struct {
	Tool    string `json:"tool"`
	Allowed bool   `json:"allowed"`
}

// ToolIDsRequest replaces an edge set. An empty list clears it; a missing
// list is rejected so a malformed body cannot wipe assignments.
type ToolIDsRequest struct {
	ToolIDs *[]string `json:"tool_ids"`
}

func (r ToolIDsRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.ToolIDs == nil {
		errors["tool_ids"] = "tool_ids is required"
	}
	return errors
}

func (r ToolIDsRequest) IDs() []string {
	if r.ToolIDs == nil {
		return nil
	}
	return *r.ToolIDs
}

type CreateUserRequest struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

func (r CreateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}
	return errors
}

type UpdateUserRequest struct {
	Name           *string `json:"name,omitempty"`
	Role           *string `json:"role,omitempty"`
	Status         *string `json:"status,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

func (r UpdateUserRequest) Input() entitlement.UpdateUserInput {
	in := entitlement.UpdateUserInput{Name: r.Name, OrganizationID: r.OrganizationID}
	if r.Role != nil {
		role := models.Role(*r.Role)
		in.Role = &role
	}
	if r.Status != nil {
		status := models.UserStatus(*r.Status)
		in.Status = &status
	}
	return in
}

type CreateOrganizationRequest struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Subscription string `json:"subscription,omitempty"`
	Status       string `json:"status,omitempty"`
}

func (r CreateOrganizationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	return errors
}

type UpdateOrganizationRequest struct {
	Name         *string `json:"name,omitempty"`
	Subscription *string `json:"subscription,omitempty"`
	Status       *string `json:"status,omitempty"`
	Logo         *string `json:"logo,omitempty"`
}

func (r UpdateOrganizationRequest) Input() entitlement.UpdateOrganizationInput {
	in := entitlement.UpdateOrganizationInput{Name: r.Name, Logo: r.Logo}
	if r.Subscription != nil {
		sub := models.Subscription(*r.Subscription)
		in.Subscription = &sub
	}
	if r.Status != nil {
		status := models.OrganizationStatus(*r.Status)
		in.Status = &status
	}
	return in
}

type CreateToolRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
	LaunchURL   string `json:"launch_url,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

func (r CreateToolRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Slug == "" {
		errors["slug"] = "Slug is required"
	}
	return errors
}

type UpdateToolRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	LaunchURL   *string `json:"launch_url,omitempty"`
	APIKey      *string `json:"api_key,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type AuditEventDTO struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func NewAuditEventDTOs(events []models.AuditEvent) []AuditEventDTO {
	out := make([]AuditEventDTO, len(events))
	for i, e := range events {
		out[i] = AuditEventDTO{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt.UTC().Format(timeFormat),
		}
	}
	return out
}
