// Package session keeps the server-side half of a login so a session can be
// revoked before its token expires.
package session

import (
	"context"
	"errors"

	"github.com/deskops/helpdesk/internal/domain"
)

// ErrNotFound is returned for unknown, expired or revoked sessions.
var ErrNotFound = errors.New("session not found")

// Store persists sessions keyed by id.
type Store interface {
	Create(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Revoke(ctx context.Context, id string) error
}
