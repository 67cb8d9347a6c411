package dbx

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// UniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
	UniqueViolation = "23505"
	// InvalidTextRepresentation is raised when a parameter cannot be parsed
	// as its column type, for example a malformed UUID.
	InvalidTextRepresentation = "22P02"
)

// WrapError maps driver errors onto common sentinels. Unique violations
// become common.ErrorAlreadyExists with the constraint name kept. A value
// that cannot name any row becomes common.ErrorNotFound. Everything else is
// wrapped as "db error".
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case UniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrorAlreadyExists, pgErr.ConstraintName)
		case InvalidTextRepresentation:
			return common.ErrorNotFound
		}
	}
	return fmt.Errorf("db error: %w", err)
}

// ValidID reports whether id fits a UUID key column. Lookups by an id that
// fails this check can be answered as not found without a round trip.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
