package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/acumant/ai-portal/internal/audit"
	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/acumant/ai-portal/internal/testutil"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.TestSetup) {
	t.Helper()
	setup := testutil.NewTestContext(t)
	return NewHandler(setup.DB, setup.Store, testutil.TestLogger()), setup
}

func TestHandleAuditRecord(t *testing.T) {
	handler, setup := newTestHandler(t)

	task, err := audit.NewRecordTask(audit.Event{
		ActorID:    "2",
		Action:     audit.ActionUserTools,
		TargetType: "user",
		TargetID:   "3",
		Detail:     map[string]interface{}{"tool_ids": []string{"1", "2"}},
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleAuditRecord(context.Background(), task))

	var events []models.AuditEvent
	require.NoError(t, setup.DB.Find(&events).Error)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, "2", events[0].ActorID)
	assert.Equal(t, audit.ActionUserTools, events[0].Action)
	assert.Equal(t, "3", events[0].TargetID)
	assert.JSONEq(t, `{"tool_ids":["1","2"]}`, events[0].Detail)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestHandleAuditRecord_InvalidPayload(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		name    string
		payload []byte
	}{
		{"invalid json", []byte("invalid json")},
		{"missing action", []byte(`{"actor_id":"1"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler.HandleAuditRecord(context.Background(), asynq.NewTask(TypeAuditRecord, tt.payload))
			assert.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

func TestCheckIntegrity_Clean(t *testing.T) {
	handler, setup := newTestHandler(t)

	report, err := handler.CheckIntegrity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.OrganizationEdges)
	assert.Equal(t, 10, report.UserEdges)
	assert.Zero(t, report.Dangling())

	task, err := NewIntegrityCheckTask(IntegrityCheckPayload{TriggeredBy: "test"})
	require.NoError(t, err)
	require.NoError(t, handler.HandleIntegrityCheck(context.Background(), task))

	var count int64
	require.NoError(t, setup.DB.Model(&models.AuditEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckIntegrity_Dangling(t *testing.T) {
	handler, setup := newTestHandler(t)
	ctx := context.Background()

	// Edges written behind the service's back, as a manual SQL fix might.
	require.NoError(t, setup.DB.Create(&models.UserTool{UserID: "3", ToolID: "77"}).Error)
	require.NoError(t, setup.DB.Create(&models.UserTool{UserID: "ghost", ToolID: "1"}).Error)
	require.NoError(t, setup.DB.Create(&models.OrganizationTool{OrganizationID: "gone", ToolID: "1"}).Error)

	report, err := handler.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DanglingOrgEdges)
	assert.Equal(t, 2, report.DanglingUserEdges)

	require.NoError(t, handler.HandleIntegrityCheck(ctx, asynq.NewTask(TypeIntegrityCheck, nil)))

	var event models.AuditEvent
	require.NoError(t, setup.DB.First(&event, "action = ?", audit.ActionIntegrityDangling).Error)

	var detail map[string]int
	require.NoError(t, json.Unmarshal([]byte(event.Detail), &detail))
	assert.Equal(t, 1, detail["dangling_organization_edges"])
	assert.Equal(t, 2, detail["dangling_user_edges"])
}

func TestRegisterHandlers(t *testing.T) {
	handler, _ := newTestHandler(t)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	_, pattern := mux.Handler(asynq.NewTask(TypeIntegrityCheck, nil))
	assert.Equal(t, TypeIntegrityCheck, pattern)
	_, pattern = mux.Handler(asynq.NewTask(TypeAuditRecord, nil))
	assert.Equal(t, TypeAuditRecord, pattern)
}
