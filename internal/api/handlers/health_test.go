package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acumant/ai-portal/internal/api/handlers"
	"github.com/acumant/ai-portal/internal/testutil"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

type fakeInspector struct {
	pending map[string]int
	err     error
}

func (f *fakeInspector) Queues() ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	names := make([]string, 0, len(f.pending))
	for name := range f.pending {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: queue, Pending: f.pending[queue]}, nil
}

func TestHealthHandler(t *testing.T) {
	t.Run("database only", func(t *testing.T) {
		handler := handlers.NewHealthHandler(testutil.SetupTestDB(t), nil, nil)

		rr := httptest.NewRecorder()
		handler.Health(rr, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp handlers.HealthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "healthy", resp.Services["database"])
		assert.Equal(t, "disabled", resp.Services["redis"])
	})

	t.Run("memory driver", func(t *testing.T) {
		handler := handlers.NewHealthHandler(nil, nil, nil)

		rr := httptest.NewRecorder()
		handler.Health(rr, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"healthy","services":{"database":"disabled","redis":"disabled","queue":"disabled"}}`, rr.Body.String())
	})

	t.Run("queue depths", func(t *testing.T) {
		inspector := &fakeInspector{pending: map[string]int{"low": 4, "default": 0}}
		handler := handlers.NewHealthHandler(nil, nil, inspector)

		rr := httptest.NewRecorder()
		handler.Health(rr, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp handlers.HealthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "healthy", resp.Services["queue"])
		assert.Equal(t, map[string]int{"low": 4, "default": 0}, resp.Queues)
	})

	t.Run("queue unreachable", func(t *testing.T) {
		handler := handlers.NewHealthHandler(nil, nil, &fakeInspector{err: errors.New("dial tcp: connection refused")})

		rr := httptest.NewRecorder()
		handler.Health(rr, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		var resp handlers.HealthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "unhealthy", resp.Services["queue"])
		assert.Empty(t, resp.Queues)
	})

	t.Run("ready", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handlers.NewHealthHandler(nil, nil, nil).Ready(rr, httptest.NewRequest("GET", "/ready", nil))
		assert.Equal(t, "ok", rr.Body.String())
	})
}
