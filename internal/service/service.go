package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/events"
	"github.com/deskops/helpdesk/internal/repository"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer input.
	maxPasswordBytes = 72
)

// mapStoreError turns repository sentinels into domain errors. Domain errors
// raised inside a transaction pass through untouched; anything else is a
// storage failure.
func mapStoreError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewDuplicateEmail("")
	case errors.Is(err, repository.ErrReferenced):
		return apperrors.NewConflict(resource+" is still referenced", map[string]any{"id": id})
	}
	return apperrors.NewStorageError(err)
}

// publish fires an event after commit. Handler failures are logged, never returned:
// the write they describe has already succeeded.
func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = newID()
	}
	if err := dispatcher.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func actorOf(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	return events.Actor{UserID: user.ID, Role: user.Role}
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperrors.NewFieldError("email", "required")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", apperrors.NewFieldError("email", "invalid address")
	}
	return strings.ToLower(addr.Address), nil
}

func validatePassword(raw string) error {
	if len(raw) < minPasswordLength {
		return apperrors.NewFieldError("password", "must be at least 8 characters")
	}
	if len(raw) > maxPasswordBytes {
		return apperrors.NewFieldError("password", "must be at most 72 bytes")
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}
