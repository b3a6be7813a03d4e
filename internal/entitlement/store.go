package entitlement

import (
	"context"

	"github.com/acumant/ai-portal/internal/database/models"
)

// Lookups return (nil, nil) when the record does not exist. An error always
// means the store itself failed. Create calls never overwrite: a taken id,
// email or slug fails with ErrIDTaken, ErrEmailTaken or ErrSlugTaken, and
// an Upsert that collides with another record's email or slug does the same.

type UserStore interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByOrganization(ctx context.Context, organizationID string) ([]models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpsertUser(ctx context.Context, user *models.User) error
}

type OrganizationStore interface {
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	CreateOrganization(ctx context.Context, org *models.Organization) error
	UpsertOrganization(ctx context.Context, org *models.Organization) error
}

type ToolStore interface {
	ListTools(ctx context.Context) ([]models.Tool, error)
	GetTool(ctx context.Context, id string) (*models.Tool, error)
	GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error)
	CreateTool(ctx context.Context, tool *models.Tool) error
	UpsertTool(ctx context.Context, tool *models.Tool) error
}

// EdgeStore holds the two entitlement join relations. Replace calls swap the
// whole set for one owner atomically.
type EdgeStore interface {
	OrganizationToolIDs(ctx context.Context, organizationID string) ([]string, error)
	UserToolIDs(ctx context.Context, userID string) ([]string, error)
	ReplaceOrganizationTools(ctx context.Context, organizationID string, toolIDs []string) error
	ReplaceUserTools(ctx context.Context, userID string, toolIDs []string) error
	AllOrganizationTools(ctx context.Context) ([]models.OrganizationTool, error)
	AllUserTools(ctx context.Context) ([]models.UserTool, error)
}

type Store interface {
	UserStore
	OrganizationStore
	ToolStore
	EdgeStore
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
