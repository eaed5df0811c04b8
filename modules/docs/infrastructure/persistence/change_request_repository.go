package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
	"github.com/iota-uz/docflow/pkg/composables"
)

const changeRequestColumns = `
	tenant_id, id, title, description, request_type, priority, justification,
	impact_analysis, observations, affected_processes, document_id, folder_id,
	proposed_file, requester_id, workflow_status, current_step, created_at, updated_at`

const (
	insertChangeRequestQuery = `
		INSERT INTO document_change_requests (
			tenant_id, title, description, request_type, priority, justification,
			impact_analysis, observations, affected_processes, document_id, folder_id,
			proposed_file, requester_id, workflow_status, current_step
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING` + changeRequestColumns

	selectChangeRequestQuery = `
		SELECT` + changeRequestColumns + `
		FROM document_change_requests
		WHERE id = $1`

	updateDraftQuery = `
		UPDATE document_change_requests
		SET title = $2, description = $3, request_type = $4, priority = $5,
			justification = $6, impact_analysis = $7, observations = $8,
			affected_processes = $9, document_id = $10, folder_id = $11,
			updated_at = now()
		WHERE id = $1 AND workflow_status = $12
		RETURNING` + changeRequestColumns

	updateProposedFileQuery = `
		UPDATE document_change_requests
		SET proposed_file = $2, updated_at = now()
		WHERE id = $1 AND workflow_status = $3 AND current_step = $4
		RETURNING` + changeRequestColumns

	transitionStateQuery = `
		UPDATE document_change_requests
		SET workflow_status = $2, current_step = $3, updated_at = now()
		WHERE id = $1 AND workflow_status = $4 AND current_step = $5
		RETURNING` + changeRequestColumns

	deleteDraftQuery = `
		DELETE FROM document_change_requests
		WHERE id = $1 AND workflow_status = $2`

	countByStatusQuery = `
		SELECT workflow_status, count(*)
		FROM document_change_requests
		GROUP BY workflow_status`
)

type PgChangeRequestRepository struct{}

func NewPgChangeRequestRepository() changerequest.Repository {
	return &PgChangeRequestRepository{}
}

func (r *PgChangeRequestRepository) Create(ctx context.Context, cr *changerequest.ChangeRequest) (*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	state := cr.State
	row := tx.QueryRow(ctx, insertChangeRequestQuery,
		pgUUID(cr.TenantID),
		cr.Title,
		cr.Description,
		cr.RequestType,
		cr.Priority,
		cr.Justification,
		cr.ImpactAnalysis,
		cr.Observations,
		cr.AffectedProcesses,
		cr.DocumentID,
		cr.FolderID,
		cr.ProposedFile,
		pgUUID(cr.RequesterID),
		state.Status(),
		state.Step(),
	)
	return scanChangeRequest(row)
}

func (r *PgChangeRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	cr, err := scanChangeRequest(tx.QueryRow(ctx, selectChangeRequestQuery, pgUUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, changerequest.ErrNotFound
	}
	return cr, err
}

func (r *PgChangeRequestRepository) List(ctx context.Context, filter changerequest.Filter) ([]*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where = append(where, "workflow_status = "+arg(filter.Status))
	}
	if filter.RequestType != "" {
		where = append(where, "request_type = "+arg(filter.RequestType))
	}
	if filter.Priority != "" {
		where = append(where, "priority = "+arg(filter.Priority))
	}
	if filter.RequesterID != nil {
		where = append(where, "requester_id = "+arg(pgUUID(*filter.RequesterID)))
	}
	if filter.CursorUpdatedAt != nil && filter.CursorID != nil {
		where = append(where, fmt.Sprintf("(updated_at, id) < (%s, %s)",
			arg(*filter.CursorUpdatedAt), arg(pgUUID(*filter.CursorID))))
	}

	query := "SELECT" + changeRequestColumns + " FROM document_change_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY updated_at DESC, id DESC LIMIT " + arg(limit)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*changerequest.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *PgChangeRequestRepository) UpdateDraft(ctx context.Context, cr *changerequest.ChangeRequest) (*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, updateDraftQuery,
		pgUUID(cr.ID),
		cr.Title,
		cr.Description,
		cr.RequestType,
		cr.Priority,
		cr.Justification,
		cr.ImpactAnalysis,
		cr.Observations,
		cr.AffectedProcesses,
		cr.DocumentID,
		cr.FolderID,
		changerequest.StatusDraft,
	)
	updated, err := scanChangeRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.disambiguate(ctx, cr.ID)
	}
	return updated, err
}

func (r *PgChangeRequestRepository) UpdateProposedFile(ctx context.Context, id uuid.UUID, fileRef string, expected changerequest.State) (*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, updateProposedFileQuery,
		pgUUID(id), fileRef, expected.Status(), expected.Step())
	updated, err := scanChangeRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.disambiguate(ctx, id)
	}
	return updated, err
}

// TransitionState performs the compare-and-swap move: the row changes only if
// its stored status and step still match `from`. A vanished row distinguishes
// "gone" from "moved" with a follow-up read.
func (r *PgChangeRequestRepository) TransitionState(ctx context.Context, id uuid.UUID, from, to changerequest.State) (*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, transitionStateQuery,
		pgUUID(id), to.Status(), to.Step(), from.Status(), from.Step())
	updated, err := scanChangeRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.disambiguate(ctx, id)
	}
	return updated, err
}

func (r *PgChangeRequestRepository) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, deleteDraftQuery, pgUUID(id), changerequest.StatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.disambiguate(ctx, id)
	}
	return nil
}

func (r *PgChangeRequestRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, countByStatusQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// disambiguate turns a zero-row guarded write into the right error: the row is
// either gone or no longer in the expected state.
func (r *PgChangeRequestRepository) disambiguate(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return changerequest.ErrStateConflict
}

func scanChangeRequest(row pgx.Row) (*changerequest.ChangeRequest, error) {
	var (
		cr        changerequest.ChangeRequest
		tenantID  pgtype.UUID
		id        pgtype.UUID
		requester pgtype.UUID
		status    string
		step      int
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&tenantID,
		&id,
		&cr.Title,
		&cr.Description,
		&cr.RequestType,
		&cr.Priority,
		&cr.Justification,
		&cr.ImpactAnalysis,
		&cr.Observations,
		&cr.AffectedProcesses,
		&cr.DocumentID,
		&cr.FolderID,
		&cr.ProposedFile,
		&requester,
		&status,
		&step,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	state, err := changerequest.ParseState(status, step)
	if err != nil {
		return nil, err
	}
	cr.TenantID = asUUID(tenantID)
	cr.ID = asUUID(id)
	cr.RequesterID = asUUID(requester)
	cr.State = state
	cr.CreatedAt = asTime(createdAt)
	cr.UpdatedAt = asTime(updatedAt)
	return &cr, nil
}
