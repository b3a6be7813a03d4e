package entitlement

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpsertKeepsCreatedAt(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		org := &models.Organization{Name: "Globex", Subscription: models.SubscriptionPremium, Status: models.OrganizationStatusPending}
		require.NoError(t, store.UpsertOrganization(ctx, org))
		require.NotEmpty(t, org.ID, "id generated")

		first, err := store.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		require.NotNil(t, first)

		time.Sleep(5 * time.Millisecond)
		first.Name = "Globex Corp"
		require.NoError(t, store.UpsertOrganization(ctx, first))

		second, err := store.GetOrganization(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, "Globex Corp", second.Name)
		assert.Equal(t, models.OrganizationStatusPending, second.Status)
		assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "created_at unchanged")
		assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
	})
}

func TestStore_ToolFields(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		tool := &models.Tool{Base: models.Base{ID: "7"}, Name: "Summarizer", Slug: "summarizer", IsActive: false}
		require.NoError(t, store.UpsertTool(ctx, tool))

		got, err := store.GetTool(ctx, "7")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.IsActive, "false survives a write")

		bySlug, err := store.GetToolBySlug(ctx, "summarizer")
		require.NoError(t, err)
		require.NotNil(t, bySlug)
		assert.Equal(t, "7", bySlug.ID)

		missing, err := store.GetToolBySlug(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestStore_Users(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, ReferenceFixture().Apply(ctx, store, "hash"))

		u, err := store.GetUserByEmail(ctx, "casey.morgan@acumant.com")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "3", u.ID)
		assert.Equal(t, "hash", u.PasswordHash)

		u, err = store.GetUserByEmail(ctx, "nobody@acumant.com")
		require.NoError(t, err)
		assert.Nil(t, u)

		members, err := store.ListUsersByOrganization(ctx, "customer2")
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, "4", members[0].ID)
	})
}

func TestStore_Edges(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, ReferenceFixture().Apply(ctx, store, ""))

		orgEdges, err := store.AllOrganizationTools(ctx)
		require.NoError(t, err)
		assert.Len(t, orgEdges, 4)

		userEdges, err := store.AllUserTools(ctx)
		require.NoError(t, err)
		assert.Len(t, userEdges, 10)
		assert.Equal(t, models.UserTool{UserID: "1", ToolID: "1"}, userEdges[0])

		require.NoError(t, store.ReplaceOrganizationTools(ctx, "acumant", []string{"3"}))
		ids, err := store.OrganizationToolIDs(ctx, "acumant")
		require.NoError(t, err)
		assert.Equal(t, []string{"3"}, ids)

		require.NoError(t, store.ReplaceUserTools(ctx, "1", nil))
		ids, err = store.UserToolIDs(ctx, "1")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, ReferenceFixture().Apply(ctx, store, ""))

	u, err := store.GetUser(ctx, "3")
	require.NoError(t, err)
	u.Name = "Mutated"

	again, err := store.GetUser(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "Casey Morgan", again.Name)
}

func TestFixture_Shape(t *testing.T) {
	f := ReferenceFixture()

	assert.Len(t, f.Organizations, 2)
	assert.Len(t, f.Tools, 3)
	assert.Len(t, f.Users, 5)
	assert.Equal(t, []string{"1"}, f.OrganizationTools["customer2"])

	orgs := make(map[string]bool)
	for _, o := range f.Organizations {
		orgs[o.ID] = true
	}
	for _, u := range f.Users {
		assert.True(t, orgs[u.OrganizationID], "user %s belongs to a known organization", u.ID)
	}
}

func TestStore_CreateNeverOverwrites(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, ReferenceFixture().Apply(ctx, store, "hash"))

		tests := []struct {
			name   string
			create func() error
			want   error
		}{
			{
				name: "user id",
				create: func() error {
					return store.CreateUser(ctx, &models.User{Base: models.Base{ID: "3"}, Name: "Impostor", Email: "impostor@acumant.com", OrganizationID: "acumant"})
				},
				want: ErrIDTaken,
			},
			{
				name: "user email",
				create: func() error {
					return store.CreateUser(ctx, &models.User{Base: models.Base{ID: "30"}, Name: "Impostor", Email: "casey.morgan@acumant.com", OrganizationID: "acumant"})
				},
				want: ErrEmailTaken,
			},
			{
				name: "organization id",
				create: func() error {
					return store.CreateOrganization(ctx, &models.Organization{Base: models.Base{ID: "acumant"}, Name: "Impostor"})
				},
				want: ErrIDTaken,
			},
			{
				name: "tool id",
				create: func() error {
					return store.CreateTool(ctx, &models.Tool{Base: models.Base{ID: "1"}, Name: "Impostor", Slug: "impostor"})
				},
				want: ErrIDTaken,
			},
			{
				name: "tool slug",
				create: func() error {
					return store.CreateTool(ctx, &models.Tool{Base: models.Base{ID: "30"}, Name: "Impostor", Slug: "chat"})
				},
				want: ErrSlugTaken,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.ErrorIs(t, tt.create(), tt.want)
			})
		}

		u, err := store.GetUser(ctx, "3")
		require.NoError(t, err)
		assert.Equal(t, "Casey Morgan", u.Name)
		org, err := store.GetOrganization(ctx, "acumant")
		require.NoError(t, err)
		assert.Equal(t, "Acumant", org.Name)
		tool, err := store.GetTool(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Chat", tool.Name)
	})
}

func TestStore_UpsertRejectsForeignUniqueValues(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, ReferenceFixture().Apply(ctx, store, "hash"))

		u, err := store.GetUser(ctx, "4")
		require.NoError(t, err)
		u.Email = "casey.morgan@acumant.com"
		assert.ErrorIs(t, store.UpsertUser(ctx, u), ErrEmailTaken)

		tool, err := store.GetTool(ctx, "2")
		require.NoError(t, err)
		tool.Slug = "chat"
		assert.ErrorIs(t, store.UpsertTool(ctx, tool), ErrSlugTaken)
	})
}

// raceCreates runs create concurrently n times and returns the index of the
// single winner plus the losers' errors.
func raceCreates(t *testing.T, n int, create func(i int) error) (int, []error) {
	t.Helper()

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = create(i)
		}(i)
	}
	wg.Wait()

	winner := -1
	var losers []error
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one create succeeded")
			winner = i
			continue
		}
		losers = append(losers, err)
	}
	require.NotEqual(t, -1, winner, "no create succeeded: %v", errs)
	return winner, losers
}

func TestStore_ConcurrentCreates(t *testing.T) {
	const racers = 8

	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, ReferenceFixture().Apply(ctx, store, "hash"))

		t.Run("same user id", func(t *testing.T) {
			winner, losers := raceCreates(t, racers, func(i int) error {
				return store.CreateUser(ctx, &models.User{
					Base:           models.Base{ID: "40"},
					Name:           fmt.Sprintf("Racer %d", i),
					Email:          fmt.Sprintf("racer%d@acumant.com", i),
					OrganizationID: "acumant",
				})
			})
			for _, err := range losers {
				assert.ErrorIs(t, err, ErrIDTaken)
			}

			stored, err := store.GetUser(ctx, "40")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("racer%d@acumant.com", winner), stored.Email)
		})

		t.Run("same email", func(t *testing.T) {
			winner, losers := raceCreates(t, racers, func(i int) error {
				return store.CreateUser(ctx, &models.User{
					Base:           models.Base{ID: fmt.Sprintf("5%d", i)},
					Name:           "Shared",
					Email:          "shared@acumant.com",
					OrganizationID: "acumant",
				})
			})
			for _, err := range losers {
				assert.ErrorIs(t, err, ErrEmailTaken)
			}

			stored, err := store.GetUserByEmail(ctx, "shared@acumant.com")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("5%d", winner), stored.ID)
		})

		t.Run("same organization id", func(t *testing.T) {
			winner, losers := raceCreates(t, racers, func(i int) error {
				return store.CreateOrganization(ctx, &models.Organization{
					Base:         models.Base{ID: "globex"},
					Name:         fmt.Sprintf("Globex %d", i),
					Subscription: models.SubscriptionStandard,
					Status:       models.OrganizationStatusActive,
				})
			})
			for _, err := range losers {
				assert.ErrorIs(t, err, ErrIDTaken)
			}

			stored, err := store.GetOrganization(ctx, "globex")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("Globex %d", winner), stored.Name)
		})

		t.Run("same tool slug", func(t *testing.T) {
			winner, losers := raceCreates(t, racers, func(i int) error {
				return store.CreateTool(ctx, &models.Tool{
					Base: models.Base{ID: fmt.Sprintf("6%d", i)},
					Name: "Summarizer",
					Slug: "summarizer",
				})
			})
			for _, err := range losers {
				assert.ErrorIs(t, err, ErrSlugTaken)
			}

			stored, err := store.GetToolBySlug(ctx, "summarizer")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("6%d", winner), stored.ID)
		})
	})
}

func TestFixture_ApplyIfEmpty(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		seeded, err := ReferenceFixture().ApplyIfEmpty(ctx, store, "hash")
		require.NoError(t, err)
		assert.True(t, seeded)

		org, err := store.GetOrganization(ctx, "customer2")
		require.NoError(t, err)
		org.Status = models.OrganizationStatusSuspended
		require.NoError(t, store.UpsertOrganization(ctx, org))
		require.NoError(t, store.ReplaceUserTools(ctx, "3", nil))

		seeded, err = ReferenceFixture().ApplyIfEmpty(ctx, store, "hash")
		require.NoError(t, err)
		assert.False(t, seeded, "populated store is left alone")

		org, err = store.GetOrganization(ctx, "customer2")
		require.NoError(t, err)
		assert.Equal(t, models.OrganizationStatusSuspended, org.Status)
		ids, err := store.UserToolIDs(ctx, "3")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}
