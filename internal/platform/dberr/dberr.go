// Copyright (c) 2026 Inkwell. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/inkwell/internal/platform/apperr"
)

// Postgres SQLSTATE codes this package classifies.
const (
	codeUniqueViolation = "23505"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")

	// ErrConflict marks a unique-constraint violation. Callers that own the
	// constraint (e.g. unique index values, entity names) translate it into
	// a path-qualified BadRequest.
	ErrConflict = errors.New("dberr: unique constraint violation")
)

// Wrap inspects a database error and wraps it into a meaningful error.
// It hides internal database details from the client while classifying the
// error type.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Unique violations surface as ErrConflict so callers can name the
	// conflicting index/value themselves.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return ErrConflict
	}

	// 3. Unknown query errors become internal server errors.
	return apperr.Generic(err)
}

// IsConflict reports whether err is a unique-constraint violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
