package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catalog-core/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// classify maps driver errors onto the domain error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
		case pgErr.Code == "23503":
			return fmt.Errorf("%w: referenced by or referencing missing row (%s)", domain.ErrInvalidOperation, pgErr.ConstraintName)
		case pgErr.Code == "23514", pgErr.Code == "23502":
			return fmt.Errorf("%w: %s", domain.ErrInvalidOperation, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "53300",
			strings.HasPrefix(pgErr.Code, "57P0"):
			return fmt.Errorf("%w: %s (%s)", domain.ErrTransientStorage, pgErr.Message, pgErr.Code)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", domain.ErrTransientStorage, err)
	}
	return err
}
