package entitlement

import (
	"context"
	"fmt"

	"github.com/acumant/ai-portal/internal/database/models"
)

// Fixture is a complete entitlement dataset that can be written into any
// Store. ReferenceFixture is the dataset the portal ships with for
// development and demos.
type Fixture struct {
	Organizations     []models.Organization
	Tools             []models.Tool
	Users             []models.User
	OrganizationTools map[string][]string
	UserTools         map[string][]string
}

func ReferenceFixture() Fixture {
	return Fixture{
		Organizations: []models.Organization{
			{Base: models.Base{ID: "acumant"}, Name: "Acumant", Subscription: models.SubscriptionEnterprise, Status: models.OrganizationStatusActive},
			{Base: models.Base{ID: "customer2"}, Name: "Customer 2", Subscription: models.SubscriptionStandard, Status: models.OrganizationStatusActive},
		},
		Tools: []models.Tool{
			{Base: models.Base{ID: "1"}, Name: "Chat", Slug: "chat", IsActive: true,
				Description: "Conversational assistant with document grounding"},
			{Base: models.Base{ID: "2"}, Name: "Data Formulator", Slug: "data-formulator", IsActive: true,
				Description: "Interactive data transformation and charting"},
			{Base: models.Base{ID: "3"}, Name: "Deep Research", Slug: "deep-research", IsActive: true,
				Description: "Multi-source research reports"},
		},
		Users: []models.User{
			{Base: models.Base{ID: "1"}, Name: "Jordan Lee", Email: "jordan.lee@acumant.com", Role: models.RoleSuperAdmin, Status: models.UserStatusActive, OrganizationID: "acumant"},
			{Base: models.Base{ID: "2"}, Name: "Sam Rivera", Email: "sam.rivera@acumant.com", Role: models.RoleAdmin, Status: models.UserStatusActive, OrganizationID: "acumant"},
			{Base: models.Base{ID: "3"}, Name: "Casey Morgan", Email: "casey.morgan@acumant.com", Role: models.RoleUser, Status: models.UserStatusActive, OrganizationID: "acumant"},
			{Base: models.Base{ID: "4"}, Name: "Taylor Brooks", Email: "taylor.brooks@customer2.com", Role: models.RoleAdmin, Status: models.UserStatusActive, OrganizationID: "customer2"},
			{Base: models.Base{ID: "5"}, Name: "Riley Chen", Email: "riley.chen@acumant.com", Role: models.RoleUser, Status: models.UserStatusActive, OrganizationID: "acumant"},
		},
		OrganizationTools: map[string][]string{
			"acumant":   {"1", "2", "3"},
			"customer2": {"1"},
		},
		UserTools: map[string][]string{
			"1": {"1", "2", "3"},
			"2": {"1", "2", "3"},
			"3": {"1"},
			"4": {"1"},
			"5": {"1", "2"},
		},
	}
}

// Apply upserts every record and replaces the listed edge sets. Users
// without a password hash get passwordHash, which may be empty.
func (f Fixture) Apply(ctx context.Context, store Store, passwordHash string) error {
	for i := range f.Organizations {
		org := f.Organizations[i]
		if err := store.UpsertOrganization(ctx, &org); err != nil {
			return fmt.Errorf("seeding organization %s: %w", org.ID, err)
		}
	}
	for i := range f.Tools {
		tool := f.Tools[i]
		if err := store.UpsertTool(ctx, &tool); err != nil {
			return fmt.Errorf("seeding tool %s: %w", tool.ID, err)
		}
	}
	for i := range f.Users {
		user := f.Users[i]
		if user.PasswordHash == "" {
			user.PasswordHash = passwordHash
		}
		if err := store.UpsertUser(ctx, &user); err != nil {
			return fmt.Errorf("seeding user %s: %w", user.ID, err)
		}
	}
	for orgID, toolIDs := range f.OrganizationTools {
		if err := store.ReplaceOrganizationTools(ctx, orgID, toolIDs); err != nil {
			return fmt.Errorf("seeding tools for organization %s: %w", orgID, err)
		}
	}
	for userID, toolIDs := range f.UserTools {
		if err := store.ReplaceUserTools(ctx, userID, toolIDs); err != nil {
			return fmt.Errorf("seeding tools for user %s: %w", userID, err)
		}
	}
	return nil
}

// ApplyIfEmpty seeds only a store with no organizations, so a restart with
// seeding enabled never reverts changes made through the admin surface.
func (f Fixture) ApplyIfEmpty(ctx context.Context, store Store, passwordHash string) (bool, error) {
	orgs, err := store.ListOrganizations(ctx)
	if err != nil {
		return false, fmt.Errorf("checking for existing data: %w", err)
	}
	if len(orgs) > 0 {
		return false, nil
	}
	return true, f.Apply(ctx, store, passwordHash)
}
