package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
	"github.com/iota-uz/docflow/modules/docs/domain/events"
	"github.com/iota-uz/docflow/pkg/composables"
	"github.com/iota-uz/docflow/pkg/eventbus"
)

// FileStorage is the external storage collaborator for proposed files. The
// engine only ever holds the returned opaque reference.
type FileStorage interface {
	Save(ctx context.Context, filename string, content io.Reader) (string, error)
}

// ChangeRequestService is the workflow engine: every status/step mutation in
// the system flows through it, and nothing else writes workflow state.
type ChangeRequestService struct {
	repo      changerequest.Repository
	approvals changerequest.ApprovalRepository
	storage   FileStorage
	publisher eventbus.EventBus
	stats     *StatsCache
}

func NewChangeRequestService(
	repo changerequest.Repository,
	approvals changerequest.ApprovalRepository,
	storage FileStorage,
	publisher eventbus.EventBus,
	stats *StatsCache,
) *ChangeRequestService {
	return &ChangeRequestService{
		repo:      repo,
		approvals: approvals,
		storage:   storage,
		publisher: publisher,
		stats:     stats,
	}
}

type CreateChangeRequestParams struct {
	Title             string
	Description       string
	RequestType       string
	Priority          string
	Justification     string
	ImpactAnalysis    *string
	Observations      *string
	AffectedProcesses []string
	DocumentID        *string
	FolderID          *string
}

func (s *ChangeRequestService) Create(ctx context.Context, params CreateChangeRequestParams) (*changerequest.ChangeRequest, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errValidation("tenant is required")
	}
	if params.Priority == "" {
		params.Priority = changerequest.PriorityMedium
	}

	cr := &changerequest.ChangeRequest{
		TenantID:          tenantID,
		Title:             strings.TrimSpace(params.Title),
		Description:       strings.TrimSpace(params.Description),
		RequestType:       params.RequestType,
		Priority:          params.Priority,
		Justification:     strings.TrimSpace(params.Justification),
		ImpactAnalysis:    params.ImpactAnalysis,
		Observations:      params.Observations,
		AffectedProcesses: params.AffectedProcesses,
		DocumentID:        params.DocumentID,
		FolderID:          params.FolderID,
		RequesterID:       actor.ID,
		State:             changerequest.Draft(),
	}
	if err := cr.Validate(); err != nil {
		return nil, errFieldInvalid(err)
	}

	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changerequest.ChangeRequest, error) {
		return s.repo.Create(txCtx, cr)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	s.invalidateStats(ctx)
	return created, nil
}

type UpdateChangeRequestParams struct {
	Title             *string
	Description       *string
	Priority          *string
	Justification     *string
	ImpactAnalysis    *string
	Observations      *string
	AffectedProcesses []string
	DocumentID        *string
	FolderID          *string
}

// UpdateDraft edits the fields a requester may still change. Only the
// requester, only while the request is a draft; request_type is immutable.
func (s *ChangeRequestService) UpdateDraft(ctx context.Context, id uuid.UUID, params UpdateChangeRequestParams) (*changerequest.ChangeRequest, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}

	updated, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changerequest.ChangeRequest, error) {
		cr, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if cr.RequesterID != actor.ID {
			return nil, errForbidden("only the requester may edit a change request")
		}
		if !cr.State.IsDraft() {
			return nil, newDraftOnlyError(cr.State.Status())
		}

		if params.Title != nil {
			cr.Title = strings.TrimSpace(*params.Title)
		}
		if params.Description != nil {
			cr.Description = strings.TrimSpace(*params.Description)
		}
		if params.Priority != nil {
			cr.Priority = *params.Priority
		}
		if params.Justification != nil {
			cr.Justification = strings.TrimSpace(*params.Justification)
		}
		if params.ImpactAnalysis != nil {
			cr.ImpactAnalysis = params.ImpactAnalysis
		}
		if params.Observations != nil {
			cr.Observations = params.Observations
		}
		if params.AffectedProcesses != nil {
			cr.AffectedProcesses = params.AffectedProcesses
		}
		if params.DocumentID != nil {
			cr.DocumentID = params.DocumentID
		}
		if params.FolderID != nil {
			cr.FolderID = params.FolderID
		}
		if err := cr.Validate(); err != nil {
			return nil, errFieldInvalid(err)
		}
		return s.repo.UpdateDraft(txCtx, cr)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return updated, nil
}

// Delete removes a draft. Submitted requests are part of the audit trail and
// can only ever be rejected, never erased.
func (s *ChangeRequestService) Delete(ctx context.Context, id uuid.UUID) error {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return errNoActor(err)
	}

	err = composables.InTenantTx(ctx, func(txCtx context.Context) error {
		cr, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if cr.RequesterID != actor.ID {
			return errForbidden("only the requester may delete a change request")
		}
		if !cr.State.IsDraft() {
			return newDraftOnlyError(cr.State.Status())
		}
		return s.repo.DeleteDraft(txCtx, id)
	})
	if err != nil {
		return mapPgError(err)
	}
	s.invalidateStats(ctx)
	return nil
}

func (s *ChangeRequestService) Get(ctx context.Context, id uuid.UUID) (*changerequest.ChangeRequest, []*changerequest.ApprovalRecord, error) {
	type detail struct {
		cr        *changerequest.ChangeRequest
		approvals []*changerequest.ApprovalRecord
	}
	out, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (detail, error) {
		cr, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return detail{}, err
		}
		records, err := s.approvals.ListByRequest(txCtx, id)
		if err != nil {
			return detail{}, err
		}
		return detail{cr: cr, approvals: records}, nil
	})
	if err != nil {
		return nil, nil, mapPgError(err)
	}
	return out.cr, out.approvals, nil
}

func (s *ChangeRequestService) List(ctx context.Context, filter changerequest.Filter) ([]*changerequest.ChangeRequest, error) {
	rows, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) ([]*changerequest.ChangeRequest, error) {
		return s.repo.List(txCtx, filter)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return rows, nil
}

// Stats returns per-status counts, served from the short-TTL cache when one
// is configured.
func (s *ChangeRequestService) Stats(ctx context.Context) (map[string]int, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errValidation("tenant is required")
	}
	if s.stats != nil {
		if cached, ok := s.stats.Get(ctx, tenantID); ok {
			return cached, nil
		}
	}
	counts, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (map[string]int, error) {
		return s.repo.CountByStatus(txCtx)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	if s.stats != nil {
		s.stats.Set(ctx, tenantID, counts)
	}
	return counts, nil
}

// Submit moves a draft into review. The submission itself is recorded as the
// step-1 approval record so the chain is traceable end to end.
func (s *ChangeRequestService) Submit(ctx context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}

	submitted, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changerequest.ChangeRequest, error) {
		cr, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if cr.RequesterID != actor.ID {
			return nil, errForbidden("only the requester may submit a change request")
		}
		if err := cr.Validate(); err != nil {
			return nil, errFieldInvalid(err)
		}
		next, err := cr.State.Submit()
		if err != nil {
			return nil, transitionError(cr.State, err)
		}

		if _, err := s.approvals.Insert(txCtx, &changerequest.ApprovalRecord{
			TenantID:   cr.TenantID,
			RequestID:  cr.ID,
			StepNumber: 1,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     changerequest.DecisionSubmit,
			Comment:    cr.Justification,
			DecidedAt:  time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return s.repo.TransitionState(txCtx, id, cr.State, next)
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	s.invalidateStats(ctx)
	s.publish(events.ChangeRequestSubmitted{
		TenantID:    submitted.TenantID,
		RequestID:   submitted.ID,
		RequesterID: submitted.RequesterID,
		SubmittedAt: submitted.UpdatedAt,
	})
	return submitted, nil
}

type DecideParams struct {
	StepNumber int
	Action     string
	Comment    string
}

// Decide records an approve/reject at the current step. The transition and
// its approval record commit atomically; a stale StepNumber or a concurrent
// decision surfaces as a conflict, never as a silent reapply.
func (s *ChangeRequestService) Decide(ctx context.Context, id uuid.UUID, params DecideParams) (*changerequest.ChangeRequest, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	if params.Action != changerequest.DecisionApprove && params.Action != changerequest.DecisionReject {
		return nil, errValidation("action must be approve or reject")
	}
	if params.Action == changerequest.DecisionApprove && strings.TrimSpace(params.Comment) == "" {
		return nil, errValidation("an approval requires a non-empty comment")
	}

	var decidedStep int
	decided, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changerequest.ChangeRequest, error) {
		cr, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if cr.State.IsTerminal() {
			return nil, errTerminal(cr.State.Status())
		}
		if params.StepNumber != cr.State.Step() {
			return nil, errStepConflict("step_number does not match the request's current step", nil)
		}

		action := changerequest.ActionApprove
		if params.Action == changerequest.DecisionReject {
			action = changerequest.ActionReject
		}
		if !changerequest.CanAct(actor.Role, action, cr) {
			return nil, errForbidden("role is not authorized to decide this step")
		}

		var next changerequest.State
		if params.Action == changerequest.DecisionApprove {
			next, err = cr.State.Advance()
		} else {
			next, err = cr.State.Reject()
		}
		if err != nil {
			return nil, transitionError(cr.State, err)
		}

		decidedStep = cr.State.Step()
		if _, err := s.approvals.Insert(txCtx, &changerequest.ApprovalRecord{
			TenantID:   cr.TenantID,
			RequestID:  cr.ID,
			StepNumber: decidedStep,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     params.Action,
			Comment:    strings.TrimSpace(params.Comment),
			DecidedAt:  time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return s.repo.TransitionState(txCtx, id, cr.State, next)
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	s.invalidateStats(ctx)
	s.publish(events.StepDecided{
		TenantID:   decided.TenantID,
		RequestID:  decided.ID,
		StepNumber: decidedStep,
		Action:     params.Action,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		NewStatus:  decided.State.Status(),
		DecidedAt:  decided.UpdatedAt,
	})
	return decided, nil
}

// BeginImplementation and Publish drive the post-approval tail of the state
// machine. They are implementation actions, not step decisions, so they leave
// the approval chain untouched.
func (s *ChangeRequestService) BeginImplementation(ctx context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error) {
	return s.postApprovalTransition(ctx, id, changerequest.ActionImplement)
}

func (s *ChangeRequestService) Publish(ctx context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error) {
	cr, err := s.postApprovalTransition(ctx, id, changerequest.ActionPublish)
	if err != nil {
		return nil, err
	}
	actor, _ := composables.UseActor(ctx)
	s.publish(events.ChangeRequestPublished{
		TenantID:    cr.TenantID,
		RequestID:   cr.ID,
		ActorID:     actor.ID,
		PublishedAt: cr.UpdatedAt,
	})
	return cr, nil
}

func (s *ChangeRequestService) postApprovalTransition(ctx context.Context, id uuid.UUID, action changerequest.Action) (*changerequest.ChangeRequest, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}

	out, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changerequest.ChangeRequest, error) {
		cr, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if cr.State.IsTerminal() {
			return nil, errTerminal(cr.State.Status())
		}
		if !changerequest.CanAct(actor.Role, action, cr) {
			return nil, errForbidden("role is not authorized for this transition")
		}

		var next changerequest.State
		if action == changerequest.ActionImplement {
			next, err = cr.State.BeginImplementation()
		} else {
			next, err = cr.State.Publish()
		}
		if err != nil {
			return nil, transitionError(cr.State, err)
		}
		return s.repo.TransitionState(txCtx, id, cr.State, next)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	s.invalidateStats(ctx)
	return out, nil
}

// AttachFile stores the proposed artifact and rebinds the request's file
// reference, replacing any earlier one. It is the requester's tool: allowed
// while drafting or right after submission, before the first review decision.
func (s *ChangeRequestService) AttachFile(ctx context.Context, id uuid.UUID, filename string, content io.Reader) (*changerequest.ChangeRequest, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}

	cr, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changerequest.ChangeRequest, error) {
		return s.repo.GetByID(txCtx, id)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	if cr.RequesterID != actor.ID {
		return nil, errForbidden("only the requester may attach a proposed file")
	}
	if !attachableState(cr.State) {
		return nil, errStepConflict("a proposed file can only be attached before the first review decision", nil)
	}

	// Storage is transactionally separate from the workflow: a failed upload
	// leaves the request untouched.
	fileRef, err := s.storage.Save(ctx, filename, content)
	if err != nil {
		return nil, errStorage(err)
	}

	bound, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changerequest.ChangeRequest, error) {
		return s.repo.UpdateProposedFile(txCtx, id, fileRef, cr.State)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return bound, nil
}

func attachableState(state changerequest.State) bool {
	if state.IsDraft() {
		return true
	}
	return state.Phase() == changerequest.PhaseInFlight && state.Step() == 2
}

func newDraftOnlyError(status string) *ServiceError {
	return newServiceError(409, CodeNotDraft, "request is "+status+", only drafts can be modified", nil)
}

func transitionError(state changerequest.State, cause error) error {
	if errors.Is(cause, changerequest.ErrInvalidTransition) {
		if state.IsTerminal() {
			return errTerminal(state.Status())
		}
		return errStepConflict(cause.Error(), cause)
	}
	return cause
}

func (s *ChangeRequestService) publish(event any) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

func (s *ChangeRequestService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if tenantID, err := composables.UseTenantID(ctx); err == nil {
		s.stats.Invalidate(ctx, tenantID)
	}
}
