package events

import (
	"time"

	"github.com/google/uuid"
)

// Workflow events published on the in-process bus after a transition commits.
// Consumers (notification fan-out, read models) must tolerate at-most-once
// delivery: events are best effort and never part of the transaction.

type ChangeRequestSubmitted struct {
	TenantID    uuid.UUID
	RequestID   uuid.UUID
	RequesterID uuid.UUID
	SubmittedAt time.Time
}

type StepDecided struct {
	TenantID   uuid.UUID
	RequestID  uuid.UUID
	StepNumber int
	Action     string
	ActorID    uuid.UUID
	ActorRole  string
	NewStatus  string
	DecidedAt  time.Time
}

type ChangeRequestPublished struct {
	TenantID    uuid.UUID
	RequestID   uuid.UUID
	ActorID     uuid.UUID
	PublishedAt time.Time
}
