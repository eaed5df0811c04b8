package changerequest

import (
	"time"

	"github.com/google/uuid"
)

const (
	DecisionSubmit  = "submit"
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ApprovalRecord is the immutable trace of one step decision. Records are
// append-only; nothing in the system updates or deletes them.
type ApprovalRecord struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	ID         uuid.UUID `json:"id"`
	RequestID  uuid.UUID `json:"request_id"`
	StepNumber int       `json:"step_number"`
	ActorID    uuid.UUID `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	Comment    string    `json:"comment"`
	DecidedAt  time.Time `json:"decided_at"`
}

// Comment is a flat discussion note on a request. Author-only edit/delete;
// allowed in every workflow state so rejected requests keep a post-mortem.
type Comment struct {
	TenantID  uuid.UUID  `json:"tenant_id"`
	ID        uuid.UUID  `json:"id"`
	RequestID uuid.UUID  `json:"request_id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}
