package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/api/handlers"
	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/acumant/ai-portal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditHandler_List(t *testing.T) {
	router, tc := setupPortalRouter(t, entitlement.Options{})

	now := time.Now()
	events := []models.AuditEvent{
		{ActorID: "1", Action: "user.created", TargetType: "user", TargetID: "6", CreatedAt: now.Add(-2 * time.Minute)},
		{ActorID: "2", Action: "user.tools_replaced", TargetType: "user", TargetID: "3", CreatedAt: now.Add(-time.Minute)},
		{ActorID: "1", Action: "tool.created", TargetType: "tool", TargetID: "4", CreatedAt: now},
	}
	require.NoError(t, tc.DB.Create(&events).Error)

	token := tc.TokenFor(t, "1")

	t.Run("newest first", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/audit", nil, token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Data  []dto.AuditEventDTO `json:"data"`
			Total int64               `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(3), resp.Total)
		require.Len(t, resp.Data, 3)
		assert.Equal(t, "tool.created", resp.Data[0].Action)
		assert.Equal(t, "user.created", resp.Data[2].Action)
	})

	t.Run("limit", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/audit?limit=1&page=2", nil, token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Data       []dto.AuditEventDTO `json:"data"`
			TotalPages int                 `json:"total_pages"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "user.tools_replaced", resp.Data[0].Action)
		assert.Equal(t, 3, resp.TotalPages)
	})

	t.Run("filter by actor", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/audit?actor_id=2", nil, token))

		var resp struct {
			Total int64 `json:"total"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("admin forbidden", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/audit", nil, tc.TokenFor(t, "2")))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestAuditHandler_WithoutDatabase(t *testing.T) {
	handler := handlers.NewAuditHandler(nil)

	rr := httptest.NewRecorder()
	handler.List(rr, httptest.NewRequest("GET", "/api/v1/audit", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
