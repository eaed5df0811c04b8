package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
	"github.com/iota-uz/docflow/pkg/composables"
)

// CommentService owns the discussion log attached to a request. Comments are
// independent of workflow state so a rejected request can still be discussed.
type CommentService struct {
	repo     changerequest.CommentRepository
	requests changerequest.Repository
}

func NewCommentService(repo changerequest.CommentRepository, requests changerequest.Repository) *CommentService {
	return &CommentService{repo: repo, requests: requests}
}

func (s *CommentService) Add(ctx context.Context, requestID uuid.UUID, content string) (*changerequest.Comment, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errValidation("tenant is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errValidation("content is required")
	}

	comment, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changerequest.Comment, error) {
		// The request must exist; workflow state is deliberately not checked.
		if _, err := s.requests.GetByID(txCtx, requestID); err != nil {
			return nil, err
		}
		return s.repo.Insert(txCtx, &changerequest.Comment{
			TenantID:  tenantID,
			RequestID: requestID,
			AuthorID:  actor.ID,
			Content:   content,
		})
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return comment, nil
}

func (s *CommentService) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*changerequest.Comment, error) {
	comments, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) ([]*changerequest.Comment, error) {
		if _, err := s.requests.GetByID(txCtx, requestID); err != nil {
			return nil, err
		}
		return s.repo.ListByRequest(txCtx, requestID)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return comments, nil
}

func (s *CommentService) Edit(ctx context.Context, id uuid.UUID, content string) (*changerequest.Comment, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errValidation("content is required")
	}

	comment, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changerequest.Comment, error) {
		existing, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if existing.AuthorID != actor.ID {
			return nil, errForbidden("only the author may edit a comment")
		}
		return s.repo.Update(txCtx, id, content, time.Now().UTC())
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return comment, nil
}

// Delete removes a comment permanently. Unlike approval records, comments
// carry no traceability obligation.
func (s *CommentService) Delete(ctx context.Context, id uuid.UUID) error {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return errNoActor(err)
	}

	err = composables.InTenantTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if existing.AuthorID != actor.ID {
			return errForbidden("only the author may delete a comment")
		}
		return s.repo.Delete(txCtx, id)
	})
	if err != nil {
		return mapPgError(err)
	}
	return nil
}
