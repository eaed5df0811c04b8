package changerequest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("change request not found")
	ErrCommentNotFound = errors.New("comment not found")

	// ErrStateConflict is returned when a guarded write matched no row: the
	// request moved underneath the caller between read and write.
	ErrStateConflict = errors.New("workflow state changed concurrently")
)

// Filter narrows List results; zero values mean "any".
type Filter struct {
	Status          string
	RequestType     string
	Priority        string
	RequesterID     *uuid.UUID
	Limit           int
	CursorUpdatedAt *time.Time
	CursorID        *uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, cr *ChangeRequest) (*ChangeRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ChangeRequest, error)
	List(ctx context.Context, filter Filter) ([]*ChangeRequest, error)
	// UpdateDraft persists draft-editable fields. The write is guarded on the
	// request still being a draft; ErrStateConflict otherwise.
	UpdateDraft(ctx context.Context, cr *ChangeRequest) (*ChangeRequest, error)
	// UpdateProposedFile rebinds the attached artifact reference, guarded on
	// the request still being in the expected state.
	UpdateProposedFile(ctx context.Context, id uuid.UUID, fileRef string, expected State) (*ChangeRequest, error)
	// TransitionState is the compare-and-swap at the heart of the engine: the
	// row is updated only when its stored status and step still equal `from`.
	TransitionState(ctx context.Context, id uuid.UUID, from, to State) (*ChangeRequest, error)
	DeleteDraft(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type ApprovalRepository interface {
	Insert(ctx context.Context, rec *ApprovalRecord) (*ApprovalRecord, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*ApprovalRecord, error)
}

type CommentRepository interface {
	Insert(ctx context.Context, comment *Comment) (*Comment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*Comment, error)
	Update(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) (*Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
