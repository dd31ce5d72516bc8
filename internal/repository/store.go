package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deskops/helpdesk/internal/domain"
)

// Sentinel errors shared by every Store implementation.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrReferenced is returned when a delete would orphan a requester reference.
	ErrReferenced = errors.New("record still referenced")
)

// Store hands out repositories bound to one connection or transaction.
type Store interface {
	Users() UserRepository
	Tickets() TicketRepository
	History() TicketHistoryRepository
	// WithinTx runs fn against a transactional Store. The transaction commits
	// when fn returns nil and rolls back otherwise. Nested calls reuse the
	// outer transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// UserFilter narrows user listings.
type UserFilter struct {
	Role *domain.Role
}

// TicketFilter narrows ticket listings. All set fields must match.
// Results are ordered by creation time ascending; Limit <= 0 means no limit.
type TicketFilter struct {
	Status      *domain.TicketStatus
	Priority    *string
	RequesterID *string
	AssigneeID  *string
	Limit       int
	Offset      int
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	// Malformed uuid literals cannot name an existing row.
	pgInvalidText = "22P02"
)

// translateError maps driver errors onto the package sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicateEmail
		case pgForeignKeyViolation:
			return ErrReferenced
		case pgInvalidText:
			return ErrNotFound
		}
	}
	return err
}
