package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/acumant/ai-portal/internal/api"
	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/auth"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/acumant/ai-portal/internal/testutil"
	"github.com/acumant/ai-portal/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMemoryRouter wires the production router over the in-memory store, the
// same way the server does with STORE_DRIVER=memory.
func newMemoryRouter(t *testing.T) *api.Router {
	t.Helper()

	store := entitlement.NewMemoryStore()
	hash, err := crypto.HashPassword(testutil.TestPassword)
	require.NoError(t, err)
	require.NoError(t, entitlement.ReferenceFixture().Apply(context.Background(), store, hash))

	logger := testutil.TestLogger()
	jwtService := auth.NewJWTService("router-test-secret", time.Hour)
	router := api.NewRouter(api.RouterConfig{
		Logger:        logger,
		JWTService:    jwtService,
		AuthService:   auth.NewService(store, jwtService),
		Entitlements:  entitlement.NewService(store, entitlement.Options{Logger: logger}),
		RateLimitReqs: 1000,
		RateLimitWin:  time.Minute,
	})
	t.Cleanup(router.Close)
	return router
}

func login(t *testing.T, router http.Handler, email string) (string, *http.Cookie) {
	t.Helper()

	req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", dto.LoginRequest{
		Email:    email,
		Password: testutil.TestPassword,
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp dto.AuthResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	for _, c := range rr.Result().Cookies() {
		if c.Name == "token" {
			return resp.Token, c
		}
	}
	t.Fatal("login did not set the token cookie")
	return "", nil
}

func TestRouter_Health(t *testing.T) {
	router := newMemoryRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestRouter_SessionAndTools(t *testing.T) {
	router := newMemoryRouter(t)

	// Signed out: session is null, not 401.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/session", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var session dto.SessionResponse
	testutil.ParseJSONResponse(t, rr, &session)
	assert.Nil(t, session.User)

	token, cookie := login(t, router, "riley.chen@acumant.com")

	req := httptest.NewRequest("GET", "/api/v1/session", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.ParseJSONResponse(t, rr, &session)
	require.NotNil(t, session.User)
	assert.Equal(t, "5", session.User.ID)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/me/tools", nil, token))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var tools []dto.ToolDTO
	testutil.ParseJSONResponse(t, rr, &tools)
	slugs := make([]string, len(tools))
	for i, tool := range tools {
		slugs[i] = tool.Slug
	}
	assert.ElementsMatch(t, []string{"chat", "data-formulator"}, slugs)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/tools/deep-research/access", nil, token))
	testutil.AssertStatus(t, rr, http.StatusForbidden)
}

func TestRouter_RoleGuards(t *testing.T) {
	router := newMemoryRouter(t)

	userToken, _ := login(t, router, "riley.chen@acumant.com")
	adminToken, _ := login(t, router, "sam.rivera@acumant.com")
	superToken, _ := login(t, router, "jordan.lee@acumant.com")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"user cannot list users", "GET", "/api/v1/users", userToken, http.StatusForbidden},
		{"admin lists users", "GET", "/api/v1/users", adminToken, http.StatusOK},
		{"admin cannot list organizations", "GET", "/api/v1/organizations", adminToken, http.StatusForbidden},
		{"super admin lists organizations", "GET", "/api/v1/organizations", superToken, http.StatusOK},
		{"unknown organization", "GET", "/api/v1/organizations/does-not-exist", superToken, http.StatusNotFound},
		{"audit needs the database", "GET", "/api/v1/audit", superToken, http.StatusServiceUnavailable},
		{"no token", "GET", "/api/v1/me", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.token == "" {
				req = testutil.UnauthenticatedRequest(t, tt.method, tt.path, nil)
			} else {
				req = testutil.AuthenticatedRequest(t, tt.method, tt.path, nil, tt.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			testutil.AssertStatus(t, rr, tt.want)
		})
	}
}

func TestRouter_CookieWritesNeedCSRFToken(t *testing.T) {
	router := newMemoryRouter(t)
	_, cookie := login(t, router, "jordan.lee@acumant.com")

	req := httptest.NewRequest("PUT", "/api/v1/users/5/tools", strings.NewReader(`{"tool_ids":["1"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	// A GET hands out the token, which then authorizes the write.
	get := httptest.NewRequest("GET", "/api/v1/me", nil)
	get.AddCookie(cookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, get)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var csrf *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "csrf_token" {
			csrf = c
		}
	}
	require.NotNil(t, csrf)

	req = httptest.NewRequest("PUT", "/api/v1/users/5/tools", strings.NewReader(`{"tool_ids":["1","3"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf.Value)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var tools []dto.ToolDTO
	testutil.ParseJSONResponse(t, rr, &tools)
	ids := make([]string, len(tools))
	for i, tool := range tools {
		ids[i] = tool.ID
	}
	assert.ElementsMatch(t, []string{"1", "3"}, ids)
}
