package repository

import (
	"errors"

	"github.com/aws/smithy-go"
	"github.com/jackc/pgx/v5/pgconn"
)

// WriteError wraps a failed insert. StoreMessage exposes the backend's own
// error text, which is what the submitting client is shown.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return "repository: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func (e *WriteError) StoreMessage() string {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) && pgErr.Message != "" {
		return pgErr.Message
	}
	var apiErr smithy.APIError
	if errors.As(e.Err, &apiErr) && apiErr.ErrorMessage() != "" {
		return apiErr.ErrorMessage()
	}
	return e.Err.Error()
}
