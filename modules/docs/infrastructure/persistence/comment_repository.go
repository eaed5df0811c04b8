package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
	"github.com/iota-uz/docflow/pkg/composables"
)

const commentColumns = `
	tenant_id, id, request_id, author_id, content, created_at, edited_at`

const (
	insertCommentQuery = `
		INSERT INTO change_request_comments (tenant_id, request_id, author_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING` + commentColumns

	selectCommentQuery = `
		SELECT` + commentColumns + `
		FROM change_request_comments
		WHERE id = $1`

	listCommentsQuery = `
		SELECT` + commentColumns + `
		FROM change_request_comments
		WHERE request_id = $1
		ORDER BY created_at, id`

	updateCommentQuery = `
		UPDATE change_request_comments
		SET content = $2, edited_at = $3
		WHERE id = $1
		RETURNING` + commentColumns

	deleteCommentQuery = `
		DELETE FROM change_request_comments
		WHERE id = $1`
)

type PgCommentRepository struct{}

func NewPgCommentRepository() changerequest.CommentRepository {
	return &PgCommentRepository{}
}

func (r *PgCommentRepository) Insert(ctx context.Context, comment *changerequest.Comment) (*changerequest.Comment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, insertCommentQuery,
		pgUUID(comment.TenantID),
		pgUUID(comment.RequestID),
		pgUUID(comment.AuthorID),
		comment.Content,
	)
	return scanComment(row)
}

func (r *PgCommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*changerequest.Comment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	comment, err := scanComment(tx.QueryRow(ctx, selectCommentQuery, pgUUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, changerequest.ErrCommentNotFound
	}
	return comment, err
}

func (r *PgCommentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*changerequest.Comment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, listCommentsQuery, pgUUID(requestID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*changerequest.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, comment)
	}
	return out, rows.Err()
}

func (r *PgCommentRepository) Update(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) (*changerequest.Comment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	comment, err := scanComment(tx.QueryRow(ctx, updateCommentQuery, pgUUID(id), content, editedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, changerequest.ErrCommentNotFound
	}
	return comment, err
}

func (r *PgCommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, deleteCommentQuery, pgUUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return changerequest.ErrCommentNotFound
	}
	return nil
}

func scanComment(row pgx.Row) (*changerequest.Comment, error) {
	var (
		comment   changerequest.Comment
		tenantID  pgtype.UUID
		id        pgtype.UUID
		requestID pgtype.UUID
		authorID  pgtype.UUID
		createdAt pgtype.Timestamptz
		editedAt  pgtype.Timestamptz
	)
	err := row.Scan(
		&tenantID,
		&id,
		&requestID,
		&authorID,
		&comment.Content,
		&createdAt,
		&editedAt,
	)
	if err != nil {
		return nil, err
	}
	comment.TenantID = asUUID(tenantID)
	comment.ID = asUUID(id)
	comment.RequestID = asUUID(requestID)
	comment.AuthorID = asUUID(authorID)
	comment.CreatedAt = asTime(createdAt)
	comment.EditedAt = asTimePtr(editedAt)
	return &comment, nil
}
