package entitlement

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/acumant/ai-portal/internal/audit"
	"github.com/acumant/ai-portal/internal/database"
	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a new database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return NewGormStore(db)
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("gorm", func(t *testing.T) {
		fn(t, newSQLiteStore(t))
	})
}

func seededService(t *testing.T, store Store, opts Options) *Service {
	t.Helper()
	require.NoError(t, ReferenceFixture().Apply(context.Background(), store, "unused-hash"))
	if opts.Logger == nil {
		opts.Logger = newTestLogger()
	}
	return NewService(store, opts)
}

func mustUser(t *testing.T, svc *Service, id string) *models.User {
	t.Helper()
	user, err := svc.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user, "user %s", id)
	return user
}

func toolIDs(tools []models.Tool) []string {
	ids := make([]string, len(tools))
	for i, tool := range tools {
		ids[i] = tool.ID
	}
	return ids
}

type recordingAudit struct {
	events []string
}

func (r *recordingAudit) Record(_ context.Context, event audit.Event) {
	r.events = append(r.events, event.Action)
}
