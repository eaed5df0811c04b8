package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
	"github.com/iota-uz/docflow/pkg/composables"
)

const approvalColumns = `
	tenant_id, id, request_id, step_number, actor_id, actor_role, action, comment, decided_at`

const (
	insertApprovalQuery = `
		INSERT INTO change_request_approvals (
			tenant_id, request_id, step_number, actor_id, actor_role, action, comment
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING` + approvalColumns

	listApprovalsQuery = `
		SELECT` + approvalColumns + `
		FROM change_request_approvals
		WHERE request_id = $1
		ORDER BY step_number, decided_at`
)

type PgApprovalRepository struct{}

func NewPgApprovalRepository() changerequest.ApprovalRepository {
	return &PgApprovalRepository{}
}

func (r *PgApprovalRepository) Insert(ctx context.Context, rec *changerequest.ApprovalRecord) (*changerequest.ApprovalRecord, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, insertApprovalQuery,
		pgUUID(rec.TenantID),
		pgUUID(rec.RequestID),
		rec.StepNumber,
		pgUUID(rec.ActorID),
		rec.ActorRole,
		rec.Action,
		rec.Comment,
	)
	return scanApproval(row)
}

func (r *PgApprovalRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*changerequest.ApprovalRecord, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, listApprovalsQuery, pgUUID(requestID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*changerequest.ApprovalRecord
	for rows.Next() {
		rec, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanApproval(row pgx.Row) (*changerequest.ApprovalRecord, error) {
	var (
		rec       changerequest.ApprovalRecord
		tenantID  pgtype.UUID
		id        pgtype.UUID
		requestID pgtype.UUID
		actorID   pgtype.UUID
		decidedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&tenantID,
		&id,
		&requestID,
		&rec.StepNumber,
		&actorID,
		&rec.ActorRole,
		&rec.Action,
		&rec.Comment,
		&decidedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.TenantID = asUUID(tenantID)
	rec.ID = asUUID(id)
	rec.RequestID = asUUID(requestID)
	rec.ActorID = asUUID(actorID)
	rec.DecidedAt = asTime(decidedAt)
	return &rec, nil
}
