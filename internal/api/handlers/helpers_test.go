package handlers_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/api/handlers"
	"github.com/acumant/ai-portal/internal/api/middleware"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/acumant/ai-portal/internal/testutil"
	"github.com/go-chi/chi/v5"
)

// setupPortalRouter mounts the portal handlers behind the same guards the
// production router uses.
func setupPortalRouter(t *testing.T, opts entitlement.Options) (*chi.Mux, *testutil.TestSetup) {
	t.Helper()
	tc := testutil.NewTestContextWithOptions(t, opts)

	me := handlers.NewMeHandler(tc.Service)
	users := handlers.NewUserHandler(tc.Service)
	orgs := handlers.NewOrganizationHandler(tc.Service)
	tools := handlers.NewToolHandler(tc.Service)
	auditLog := handlers.NewAuditHandler(tc.DB)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Use(middleware.LoadUser(tc.Service))

		r.Get("/me", me.Get)
		r.Get("/me/tools", me.Tools)
		r.Get("/me/navigation", me.Navigation)
		r.Get("/tools/{tool}/access", me.Access)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/users", users.List)
			r.Post("/users", users.Create)
			r.Get("/users/{id}", users.Get)
			r.Put("/users/{id}", users.Update)
			r.Post("/users/{id}/deactivate", users.Deactivate)
			r.Get("/users/{id}/tools", users.Tools)
			r.Put("/users/{id}/tools", users.UpdateTools)
			r.Get("/tools", tools.List)
			r.Get("/organizations/{id}/users", orgs.Users)
			r.Get("/organizations/{id}/tools", orgs.Tools)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSuperAdmin())
			r.Get("/organizations", orgs.List)
			r.Post("/organizations", orgs.Create)
			r.Get("/organizations/{id}", orgs.Get)
			r.Put("/organizations/{id}", orgs.Update)
			r.Put("/organizations/{id}/tools", orgs.UpdateTools)
			r.Post("/organizations/{id}/logo", orgs.UploadLogo)
			r.Post("/tools", tools.Create)
			r.Put("/tools/{tool}", tools.Update)
			r.Post("/tools/{tool}/test", tools.Test)
			r.Get("/audit", auditLog.List)
		})
	})

	return r, tc
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// pngLogo starts with the PNG signature so content sniffing accepts it.
const pngLogo = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

// logoRequest builds a multipart upload with an explicit part content type.
func logoRequest(t *testing.T, path, token, contentType string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="logo"; filename="logo"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

type fakeLogos struct {
	key  string
	body []byte
}

func (f *fakeLogos) PutObject(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.key = key
	f.body = data
	return "https://cdn.example.com/" + key, nil
}

func toolSlugs(tools []dto.ToolDTO) []string {
	slugs := make([]string, len(tools))
	for i, tool := range tools {
		slugs[i] = tool.Slug
	}
	return slugs
}
