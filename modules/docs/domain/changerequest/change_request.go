package changerequest

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/docflow/pkg/serrors"
)

const TotalSteps = 5

const (
	TypeCreate        = "create"
	TypeEdit          = "edit"
	TypeVersionUpdate = "version_update"
	TypeDelete        = "delete"
)

const (
	PriorityLow    = "baja"
	PriorityMedium = "media"
	PriorityHigh   = "alta"
	PriorityUrgent = "urgente"
)

const minJustificationLen = 10

// ChangeRequest is a proposed change to a controlled document moving through
// the five-step approval chain. Status and step are carried together as State
// so the stored label can never drift from the step counter.
type ChangeRequest struct {
	TenantID          uuid.UUID `json:"tenant_id"`
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	RequestType       string    `json:"request_type"`
	Priority          string    `json:"priority"`
	Justification     string    `json:"justification"`
	ImpactAnalysis    *string   `json:"impact_analysis,omitempty"`
	Observations      *string   `json:"observations,omitempty"`
	AffectedProcesses []string  `json:"affected_processes"`
	DocumentID        *string   `json:"document_id,omitempty"`
	FolderID          *string   `json:"folder_id,omitempty"`
	ProposedFile      *string   `json:"proposed_file,omitempty"`
	RequesterID       uuid.UUID `json:"requester_id"`
	State             State     `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func ValidRequestType(t string) bool {
	switch t {
	case TypeCreate, TypeEdit, TypeVersionUpdate, TypeDelete:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func fieldLocaleKey(field string) string {
	return "Docs.ChangeRequests.Fields." + field
}

// Validate checks the fields a request must carry before it may leave draft.
// The same checks run at creation so drafts cannot be saved structurally broken.
func (cr *ChangeRequest) Validate() error {
	if strings.TrimSpace(cr.Title) == "" {
		return serrors.NewFieldRequiredError("title", fieldLocaleKey("title"))
	}
	if strings.TrimSpace(cr.Description) == "" {
		return serrors.NewFieldRequiredError("description", fieldLocaleKey("description"))
	}
	if !ValidRequestType(cr.RequestType) {
		return serrors.NewFieldInvalidError("request_type", "must be one of create, edit, version_update, delete", fieldLocaleKey("request_type"))
	}
	if !ValidPriority(cr.Priority) {
		return serrors.NewFieldInvalidError("priority", "must be one of baja, media, alta, urgente", fieldLocaleKey("priority"))
	}
	if len(strings.TrimSpace(cr.Justification)) < minJustificationLen {
		return serrors.NewFieldInvalidError("justification", "must be at least 10 characters", fieldLocaleKey("justification"))
	}
	return cr.validateTarget()
}

// validateTarget enforces the type/target invariant: create points at a
// folder, every other type points at an existing document.
func (cr *ChangeRequest) validateTarget() error {
	hasDocument := cr.DocumentID != nil && strings.TrimSpace(*cr.DocumentID) != ""
	hasFolder := cr.FolderID != nil && strings.TrimSpace(*cr.FolderID) != ""

	if cr.RequestType == TypeCreate {
		if !hasFolder {
			return serrors.NewFieldRequiredError("folder_id", fieldLocaleKey("folder_id"))
		}
		if hasDocument {
			return serrors.NewFieldInvalidError("document_id", "must not be set for create requests", fieldLocaleKey("document_id"))
		}
		return nil
	}
	if !hasDocument {
		return serrors.NewFieldRequiredError("document_id", fieldLocaleKey("document_id"))
	}
	if hasFolder {
		return serrors.NewFieldInvalidError("folder_id", "must not be set for "+cr.RequestType+" requests", fieldLocaleKey("folder_id"))
	}
	return nil
}
