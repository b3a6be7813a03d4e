package tasks

import (
	"encoding/json"

	"github.com/acumant/ai-portal/internal/audit"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeAuditRecord    = audit.TypeRecord
	TypeIntegrityCheck = "integrity:check"
)

// IntegrityCheckPayload names who enqueued the check, for the logs.
type IntegrityCheckPayload struct {
	TriggeredBy string `json:"triggered_by,omitempty"`
}

func NewIntegrityCheckTask(payload IntegrityCheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIntegrityCheck, data, asynq.Queue("default"), asynq.MaxRetry(1)), nil
}
