package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/acumant/ai-portal/internal/auth"
	"github.com/acumant/ai-portal/internal/database"
	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/acumant/ai-portal/pkg/crypto"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the password of every user the helpers create.
const TestPassword = "testpassword123"

// SetupTestDB creates a migrated in-memory SQLite database that is closed
// when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// Each new connection to :memory: would see an empty database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// TestLogger discards everything.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateTestOrg creates an active standard organization.
func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Base:         models.Base{ID: "org-" + uuid.NewString()[:8]},
		Name:         "Test Organization",
		Subscription: models.SubscriptionStandard,
		Status:       models.OrganizationStatusActive,
	}

	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreateTestUser creates an active user with TestPassword in org.
func CreateTestUser(t *testing.T, db *gorm.DB, org *models.Organization, role models.Role) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base:           models.Base{ID: uuid.NewString()},
		Email:          "test-" + uuid.NewString()[:8] + "@example.com",
		PasswordHash:   hash,
		Name:           "Test User",
		OrganizationID: org.ID,
		Role:           role,
		Status:         models.UserStatusActive,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestTool creates an active catalog tool.
func CreateTestTool(t *testing.T, db *gorm.DB, slug string) *models.Tool {
	t.Helper()

	tool := &models.Tool{
		Base:     models.Base{ID: uuid.NewString()},
		Name:     "Tool " + slug,
		Slug:     slug,
		IsActive: true,
	}

	if err := db.Create(tool).Error; err != nil {
		t.Fatalf("failed to create test tool: %v", err)
	}

	return tool
}

func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.OrganizationID, user.Email, string(user.Role))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB          *gorm.DB
	Store       *entitlement.GormStore
	Service     *entitlement.Service
	AuthService *auth.Service
	JWTService  *auth.JWTService
}

// NewTestContext builds a database seeded with the reference fixture, with
// every fixture user's password set to TestPassword.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()
	return NewTestContextWithOptions(t, entitlement.Options{})
}

func NewTestContextWithOptions(t *testing.T, opts entitlement.Options) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	store := entitlement.NewGormStore(db)

	hash, err := crypto.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if err := entitlement.ReferenceFixture().Apply(context.Background(), store, hash); err != nil {
		t.Fatalf("failed to seed fixture: %v", err)
	}

	if opts.Logger == nil {
		opts.Logger = TestLogger()
	}
	jwtService := CreateTestJWTService()

	return &TestSetup{
		DB:          db,
		Store:       store,
		Service:     entitlement.NewService(store, opts),
		AuthService: auth.NewService(store, jwtService),
		JWTService:  jwtService,
	}
}

// User loads a seeded user by id.
func (ts *TestSetup) User(t *testing.T, id string) *models.User {
	t.Helper()

	user, err := ts.Store.GetUser(context.Background(), id)
	if err != nil || user == nil {
		t.Fatalf("failed to load user %s: %v", id, err)
	}
	return user
}

// TokenFor signs a token for a seeded user.
func (ts *TestSetup) TokenFor(t *testing.T, id string) string {
	t.Helper()
	return GenerateTestToken(t, ts.JWTService, ts.User(t, id))
}
