// Package audit carries admin mutations from the API to the worker, which
// persists them as audit events.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const TypeRecord = "audit:record"

// Actions recorded by the entitlement service.
const (
	ActionOrganizationCreated = "organization.created"
	ActionOrganizationUpdated = "organization.updated"
	ActionOrganizationTools   = "organization.tools_replaced"
	ActionOrganizationLogo    = "organization.logo_updated"
	ActionUserCreated         = "user.created"
	ActionUserUpdated         = "user.updated"
	ActionUserDeactivated     = "user.deactivated"
	ActionUserTools           = "user.tools_replaced"
	ActionToolCreated         = "tool.created"
	ActionToolUpdated         = "tool.updated"
	ActionIntegrityDangling   = "integrity.dangling"
)

type Event struct {
	ActorID    string                 `json:"actor_id"`
	Action     string                 `json:"action"`
	TargetType string                 `json:"target_type"`
	TargetID   string                 `json:"target_id"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
}

// Recorder accepts audit events. Implementations must not block the caller
// on slow backends and must not fail the surrounding operation.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

func NewRecordTask(event Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRecord, data, asynq.Queue("low"), asynq.MaxRetry(5)), nil
}

// Publisher enqueues events onto asynq. A nil client turns it into a
// logger-only recorder, which is what tests and the memory driver use.
type Publisher struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewPublisher(client *asynq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

func (p *Publisher) Record(ctx context.Context, event Event) {
	p.logger.Debug("audit event",
		"action", event.Action,
		"actor_id", event.ActorID,
		"target_type", event.TargetType,
		"target_id", event.TargetID,
	)
	if p.client == nil {
		return
	}

	task, err := NewRecordTask(event)
	if err != nil {
		p.logger.Error("failed to build audit task", "action", event.Action, "error", err)
		return
	}
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		p.logger.Warn("failed to enqueue audit event", "action", event.Action, "error", err)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Record(context.Context, Event) {}
