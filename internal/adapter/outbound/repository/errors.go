package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrConnectionFailed    = errors.New("database connection failed")
)

// constraintCodes are the integrity violations a write to the post or job
// tables can raise: not null, foreign key, unique and check.
var constraintCodes = map[string]bool{ //nolint:gochecknoglobals // static lookup table
	"23502": true,
	"23503": true,
	"23505": true,
	"23514": true,
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsNotFoundError reports whether err means the row does not exist.
func IsNotFoundError(err error) bool {
	return err != nil && (errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound))
}

// IsConstraintViolationError reports whether err is an integrity violation.
func IsConstraintViolationError(err error) bool {
	if err == nil {
		return false
	}
	return constraintCodes[sqlState(err)] || errors.Is(err, ErrConstraintViolation)
}

// IsConnectionError reports whether err is SQLSTATE class 08 (connection
// exception) or 57 (operator intervention, e.g. admin shutdown).
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if code := sqlState(err); len(code) == 5 {
		switch code[:2] {
		case "08", "57":
			return true
		}
	}
	return errors.Is(err, ErrConnectionFailed)
}

// WrapError prefixes err with the operation name and tags it with the
// matching sentinel.
func WrapError(err error, operation string) error {
	switch {
	case err == nil:
		return nil
	case IsNotFoundError(err):
		return fmt.Errorf("%s failed: %w", operation, ErrNotFound)
	case IsConstraintViolationError(err):
		return fmt.Errorf("%s failed: %w: %w", operation, ErrConstraintViolation, err)
	case IsConnectionError(err):
		return fmt.Errorf("%s failed: %w: %w", operation, ErrConnectionFailed, err)
	default:
		return fmt.Errorf("%s failed: %w", operation, err)
	}
}
