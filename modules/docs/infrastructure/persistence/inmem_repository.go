package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
)

// InmemChangeRequestRepository is a map-backed Repository for tests and local
// runs without postgres. Guarded writes reproduce the compare-and-swap
// semantics of the SQL implementation.
type InmemChangeRequestRepository struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*changerequest.ChangeRequest
}

func NewInmemChangeRequestRepository() *InmemChangeRequestRepository {
	return &InmemChangeRequestRepository{requests: make(map[uuid.UUID]*changerequest.ChangeRequest)}
}

func (r *InmemChangeRequestRepository) Create(_ context.Context, cr *changerequest.ChangeRequest) (*changerequest.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *cr
	clone.ID = uuid.New()
	now := time.Now().UTC()
	clone.CreatedAt = now
	clone.UpdatedAt = now
	r.requests[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *InmemChangeRequestRepository) GetByID(_ context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cr, ok := r.requests[id]
	if !ok {
		return nil, changerequest.ErrNotFound
	}
	out := *cr
	return &out, nil
}

func (r *InmemChangeRequestRepository) List(_ context.Context, filter changerequest.Filter) ([]*changerequest.ChangeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*changerequest.ChangeRequest
	for _, cr := range r.requests {
		if filter.Status != "" && cr.State.Status() != filter.Status {
			continue
		}
		if filter.RequestType != "" && cr.RequestType != filter.RequestType {
			continue
		}
		if filter.Priority != "" && cr.Priority != filter.Priority {
			continue
		}
		if filter.RequesterID != nil && cr.RequesterID != *filter.RequesterID {
			continue
		}
		clone := *cr
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if filter.CursorUpdatedAt != nil && filter.CursorID != nil {
		for i, cr := range out {
			if cr.UpdatedAt.Before(*filter.CursorUpdatedAt) ||
				(cr.UpdatedAt.Equal(*filter.CursorUpdatedAt) && cr.ID.String() < filter.CursorID.String()) {
				out = out[i:]
				break
			}
			if i == len(out)-1 {
				out = nil
			}
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InmemChangeRequestRepository) UpdateDraft(_ context.Context, cr *changerequest.ChangeRequest) (*changerequest.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.requests[cr.ID]
	if !ok {
		return nil, changerequest.ErrNotFound
	}
	if !existing.State.IsDraft() {
		return nil, changerequest.ErrStateConflict
	}
	existing.Title = cr.Title
	existing.Description = cr.Description
	existing.RequestType = cr.RequestType
	existing.Priority = cr.Priority
	existing.Justification = cr.Justification
	existing.ImpactAnalysis = cr.ImpactAnalysis
	existing.Observations = cr.Observations
	existing.AffectedProcesses = cr.AffectedProcesses
	existing.DocumentID = cr.DocumentID
	existing.FolderID = cr.FolderID
	existing.UpdatedAt = time.Now().UTC()
	out := *existing
	return &out, nil
}

func (r *InmemChangeRequestRepository) UpdateProposedFile(_ context.Context, id uuid.UUID, fileRef string, expected changerequest.State) (*changerequest.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.requests[id]
	if !ok {
		return nil, changerequest.ErrNotFound
	}
	if existing.State != expected {
		return nil, changerequest.ErrStateConflict
	}
	existing.ProposedFile = &fileRef
	existing.UpdatedAt = time.Now().UTC()
	out := *existing
	return &out, nil
}

func (r *InmemChangeRequestRepository) TransitionState(_ context.Context, id uuid.UUID, from, to changerequest.State) (*changerequest.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.requests[id]
	if !ok {
		return nil, changerequest.ErrNotFound
	}
	if existing.State != from {
		return nil, changerequest.ErrStateConflict
	}
	existing.State = to
	existing.UpdatedAt = time.Now().UTC()
	out := *existing
	return &out, nil
}

func (r *InmemChangeRequestRepository) DeleteDraft(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.requests[id]
	if !ok {
		return changerequest.ErrNotFound
	}
	if !existing.State.IsDraft() {
		return changerequest.ErrStateConflict
	}
	delete(r.requests, id)
	return nil
}

func (r *InmemChangeRequestRepository) CountByStatus(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, cr := range r.requests {
		counts[cr.State.Status()]++
	}
	return counts, nil
}

type InmemApprovalRepository struct {
	mu      sync.RWMutex
	records []*changerequest.ApprovalRecord
}

func NewInmemApprovalRepository() *InmemApprovalRepository {
	return &InmemApprovalRepository{}
}

func (r *InmemApprovalRepository) Insert(_ context.Context, rec *changerequest.ApprovalRecord) (*changerequest.ApprovalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *rec
	clone.ID = uuid.New()
	clone.DecidedAt = time.Now().UTC()
	r.records = append(r.records, &clone)
	out := clone
	return &out, nil
}

func (r *InmemApprovalRepository) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*changerequest.ApprovalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*changerequest.ApprovalRecord
	for _, rec := range r.records {
		if rec.RequestID == requestID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StepNumber != out[j].StepNumber {
			return out[i].StepNumber < out[j].StepNumber
		}
		return out[i].DecidedAt.Before(out[j].DecidedAt)
	})
	return out, nil
}

type InmemCommentRepository struct {
	mu       sync.RWMutex
	comments map[uuid.UUID]*changerequest.Comment
}

func NewInmemCommentRepository() *InmemCommentRepository {
	return &InmemCommentRepository{comments: make(map[uuid.UUID]*changerequest.Comment)}
}

func (r *InmemCommentRepository) Insert(_ context.Context, comment *changerequest.Comment) (*changerequest.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *comment
	clone.ID = uuid.New()
	clone.CreatedAt = time.Now().UTC()
	r.comments[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *InmemCommentRepository) GetByID(_ context.Context, id uuid.UUID) (*changerequest.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	comment, ok := r.comments[id]
	if !ok {
		return nil, changerequest.ErrCommentNotFound
	}
	out := *comment
	return &out, nil
}

func (r *InmemCommentRepository) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*changerequest.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*changerequest.Comment
	for _, comment := range r.comments {
		if comment.RequestID == requestID {
			clone := *comment
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *InmemCommentRepository) Update(_ context.Context, id uuid.UUID, content string, editedAt time.Time) (*changerequest.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.comments[id]
	if !ok {
		return nil, changerequest.ErrCommentNotFound
	}
	existing.Content = content
	existing.EditedAt = &editedAt
	out := *existing
	return &out, nil
}

func (r *InmemCommentRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return changerequest.ErrCommentNotFound
	}
	delete(r.comments, id)
	return nil
}
