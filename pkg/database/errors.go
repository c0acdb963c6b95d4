package database

import (
	"errors"
	"net"

	"shopease-backend/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes translated into the application error taxonomy.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// TranslateError converts driver and gorm errors into the application error
// taxonomy before they reach business logic. Errors that are already
// application errors pass through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	// Already translated.
	var oos *model.OutOfStockError
	var nf *model.NotFoundError
	var cv *model.ConstraintViolationError
	var ch *model.CyclicHierarchyError
	var ce *model.ConnectionError
	if errors.As(err, &oos) || errors.As(err, &nf) || errors.As(err, &cv) ||
		errors.As(err, &ch) || errors.As(err, &ce) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.NotFoundError{Entity: "record"}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation:
			return &model.ConstraintViolationError{
				Constraint: pgErr.ConstraintName,
				Detail:     pgErr.Message,
			}
		}
		// SQLSTATE class 08 covers connection exceptions.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return &model.ConnectionError{Err: err}
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &model.ConnectionError{Err: err}
	}

	return err
}

// TranslateNotFound is TranslateError with entity context: a record-not-found
// result is attributed to the named entity.
func TranslateNotFound(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.NotFoundError{Entity: entity, ID: id}
	}
	return TranslateError(err)
}
