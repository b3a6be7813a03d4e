package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acumant/ai-portal/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists the entitlement model through gorm. It runs against
// Postgres in production and SQLite in tests.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *GormStore) ListUsersByOrganization(ctx context.Context, organizationID string) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing organization users: %w", err)
	}
	return users, nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundAsNil("getting user", err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, notFoundAsNil("getting user by email", err)
	}
	return &user, nil
}

// CreateUser inserts a new user. A duplicate id or email reports ErrIDTaken
// or ErrEmailTaken; the unique indexes decide, so concurrent creates cannot
// overwrite each other.
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	touch(&user.Base)
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.userConflict(ctx, user)
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (s *GormStore) UpsertUser(ctx context.Context, user *models.User) error {
	touch(&user.Base)
	if err := s.upsert(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

func (s *GormStore) userConflict(ctx context.Context, user *models.User) error {
	if existing, err := s.GetUser(ctx, user.ID); err == nil && existing != nil {
		return ErrIDTaken
	}
	return ErrEmailTaken
}

func (s *GormStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := s.db.WithContext(ctx).Order("id").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	return orgs, nil
}

func (s *GormStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, notFoundAsNil("getting organization", err)
	}
	return &org, nil
}

// CreateOrganization inserts a new organization, reporting ErrIDTaken when
// the id already exists.
func (s *GormStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	touch(&org.Base)
	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrIDTaken
		}
		return fmt.Errorf("creating organization: %w", err)
	}
	return nil
}

func (s *GormStore) UpsertOrganization(ctx context.Context, org *models.Organization) error {
	touch(&org.Base)
	if err := s.upsert(ctx, org); err != nil {
		return fmt.Errorf("saving organization: %w", err)
	}
	return nil
}

func (s *GormStore) ListTools(ctx context.Context) ([]models.Tool, error) {
	var tools []models.Tool
	if err := s.db.WithContext(ctx).Order("id").Find(&tools).Error; err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	return tools, nil
}

func (s *GormStore) GetTool(ctx context.Context, id string) (*models.Tool, error) {
	var tool models.Tool
	if err := s.db.WithContext(ctx).First(&tool, "id = ?", id).Error; err != nil {
		return nil, notFoundAsNil("getting tool", err)
	}
	return &tool, nil
}

func (s *GormStore) GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	var tool models.Tool
	if err := s.db.WithContext(ctx).First(&tool, "slug = ?", slug).Error; err != nil {
		return nil, notFoundAsNil("getting tool by slug", err)
	}
	return &tool, nil
}

// CreateTool inserts a new tool, reporting ErrIDTaken or ErrSlugTaken.
func (s *GormStore) CreateTool(ctx context.Context, tool *models.Tool) error {
	touch(&tool.Base)
	if err := s.db.WithContext(ctx).Create(tool).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, err := s.GetTool(ctx, tool.ID); err == nil && existing != nil {
				return ErrIDTaken
			}
			return ErrSlugTaken
		}
		return fmt.Errorf("creating tool: %w", err)
	}
	return nil
}

func (s *GormStore) UpsertTool(ctx context.Context, tool *models.Tool) error {
	touch(&tool.Base)
	if err := s.upsert(ctx, tool); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSlugTaken
		}
		return fmt.Errorf("saving tool: %w", err)
	}
	return nil
}

func (s *GormStore) OrganizationToolIDs(ctx context.Context, organizationID string) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.OrganizationTool{}).
		Where("organization_id = ?", organizationID).
		Order("tool_id").
		Pluck("tool_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing organization tools: %w", err)
	}
	return ids, nil
}

func (s *GormStore) UserToolIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.UserTool{}).
		Where("user_id = ?", userID).
		Order("tool_id").
		Pluck("tool_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing user tools: %w", err)
	}
	return ids, nil
}

func (s *GormStore) ReplaceOrganizationTools(ctx context.Context, organizationID string, toolIDs []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ?", organizationID).Delete(&models.OrganizationTool{}).Error; err != nil {
			return err
		}
		if len(toolIDs) == 0 {
			return nil
		}
		rows := make([]models.OrganizationTool, len(toolIDs))
		for i, id := range toolIDs {
			rows[i] = models.OrganizationTool{OrganizationID: organizationID, ToolID: id}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("replacing organization tools: %w", err)
	}
	return nil
}

func (s *GormStore) ReplaceUserTools(ctx context.Context, userID string, toolIDs []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserTool{}).Error; err != nil {
			return err
		}
		if len(toolIDs) == 0 {
			return nil
		}
		rows := make([]models.UserTool, len(toolIDs))
		for i, id := range toolIDs {
			rows[i] = models.UserTool{UserID: userID, ToolID: id}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("replacing user tools: %w", err)
	}
	return nil
}

func (s *GormStore) AllOrganizationTools(ctx context.Context) ([]models.OrganizationTool, error) {
	var edges []models.OrganizationTool
	if err := s.db.WithContext(ctx).Order("organization_id, tool_id").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("listing organization tool edges: %w", err)
	}
	return edges, nil
}

func (s *GormStore) AllUserTools(ctx context.Context) ([]models.UserTool, error) {
	var edges []models.UserTool
	if err := s.db.WithContext(ctx).Order("user_id, tool_id").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("listing user tool edges: %w", err)
	}
	return edges, nil
}

func (s *GormStore) upsert(ctx context.Context, value interface{}) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(value).Error
}

// touch assigns an id to new rows and bumps updated_at, which an upsert
// would otherwise keep from the caller's copy.
func touch(b *models.Base) {
	b.EnsureID()
	b.UpdatedAt = time.Now()
}

func notFoundAsNil(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
