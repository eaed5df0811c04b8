package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
)

// mapPgError folds driver-level failures into the service error contract so
// controllers never see raw pgx errors. ServiceErrors pass through untouched.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	if errors.Is(err, changerequest.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		return errNotFound(err)
	}
	if errors.Is(err, changerequest.ErrCommentNotFound) {
		return newServiceError(http.StatusNotFound, CodeCommentGone, "comment not found", err)
	}
	if errors.Is(err, changerequest.ErrStateConflict) {
		return errStepConflict("workflow state changed concurrently", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return newServiceError(http.StatusConflict, CodeStepConflict, "duplicate decision for this step", err)
	case "23503": // foreign_key_violation
		return newServiceError(http.StatusUnprocessableEntity, CodeInvalidField, "referenced row does not exist", err)
	case "23514": // check_violation
		return newServiceError(http.StatusUnprocessableEntity, CodeInvalidField, "constraint violated: "+pgErr.ConstraintName, err)
	default:
		return newServiceError(http.StatusInternalServerError, CodeInternal, fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
