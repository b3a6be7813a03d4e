package handlers

import (
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// QueueInspector is the slice of *asynq.Inspector the health check reads.
type QueueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	queue QueueInspector
}

// NewHealthHandler accepts nil collaborators; each missing one is reported
// as disabled rather than unhealthy.
func NewHealthHandler(db *gorm.DB, redis *redis.Client, queue QueueInspector) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, queue: queue}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	// Queues holds the pending task count per audit/maintenance queue.
	Queues map[string]int `json:"queues,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]string)
	status := "healthy"

	switch {
	case h.db == nil:
		services["database"] = "disabled"
	default:
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			services["database"] = "unhealthy"
			status = "unhealthy"
		} else {
			services["database"] = "healthy"
		}
	}

	switch {
	case h.redis == nil:
		services["redis"] = "disabled"
	case h.redis.Ping(r.Context()).Err() != nil:
		services["redis"] = "unhealthy"
		status = "unhealthy"
	default:
		services["redis"] = "healthy"
	}

	var queues map[string]int
	if h.queue == nil {
		services["queue"] = "disabled"
	} else if pending, err := queueDepths(h.queue); err != nil {
		services["queue"] = "unhealthy"
		status = "unhealthy"
	} else {
		services["queue"] = "healthy"
		queues = pending
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, HealthResponse{
		Status:   status,
		Services: services,
		Queues:   queues,
	})
}

func queueDepths(inspector QueueInspector) (map[string]int, error) {
	names, err := inspector.Queues()
	if err != nil {
		return nil, err
	}
	depths := make(map[string]int, len(names))
	for _, name := range names {
		info, err := inspector.GetQueueInfo(name)
		if err != nil {
			return nil, err
		}
		depths[name] = info.Pending
	}
	return depths, nil
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
