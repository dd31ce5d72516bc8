package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/deskops/helpdesk/internal/clock"
	"github.com/deskops/helpdesk/internal/config"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/events"
	"github.com/deskops/helpdesk/internal/repository"
	"github.com/deskops/helpdesk/internal/session"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

const testPassword = "correct-horse"

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store      *repository.MemoryStore
	clock      *clock.FakeClock
	sessions   *session.MemoryStore
	dispatcher events.Dispatcher
	users      *UserService
	auth       *AuthService
	tickets    *TicketService
	reports    *ReportService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	assignment  config.AssignmentConfig
	picker      Picker
	publicFeeds bool
}

func withStrategy(strategy string) fixtureOption {
	return func(c *fixtureConfig) { c.assignment.Strategy = strategy }
}

func withPicker(p Picker) fixtureOption {
	return func(c *fixtureConfig) { c.picker = p }
}

func withPrivateFeeds() fixtureOption {
	return func(c *fixtureConfig) { c.publicFeeds = false }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		assignment:  config.AssignmentConfig{Strategy: config.AssignmentRandom, Seed: 42},
		publicFeeds: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	authCfg := config.AuthConfig{JWTSecret: "test-secret", SessionTTLMinutes: 60, BcryptCost: bcrypt.MinCost}
	f := &fixture{
		clock:      clock.Fake(testStart),
		sessions:   session.NewMemoryStore(clock.Real()),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	f.store = repository.NewMemoryStore(f.clock)
	f.users = NewUserService(authCfg, UserDependencies{
		Store:      f.store,
		Clock:      f.clock,
		Dispatcher: f.dispatcher,
	})
	f.auth = NewAuthService(authCfg, AuthDependencies{Users: f.users, Sessions: f.sessions})
	f.tickets = NewTicketService(TicketDependencies{
		Store:       f.store,
		Assignment:  NewAssignmentService(cfg.assignment, cfg.picker),
		Clock:       f.clock,
		Dispatcher:  f.dispatcher,
		PublicFeeds: cfg.publicFeeds,
	})
	f.reports = NewReportService(f.store, f.clock)
	return f
}

func (f *fixture) createUser(t *testing.T, name string, role domain.Role) *domain.User {
	t.Helper()
	user, err := f.users.CreateUser(context.Background(), NewUserInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return user
}

func (f *fixture) submit(t *testing.T, caller *domain.User, title string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Submit(context.Background(), caller, SubmitInput{Title: title})
	if err != nil {
		t.Fatalf("submit %q: %v", title, err)
	}
	return ticket
}

func (f *fixture) reload(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Tickets().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload ticket %s: %v", id, err)
	}
	return ticket
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("got nil error, want %s", code)
	}
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("got code %s (%v), want %s", got, err, code)
	}
}

func ptr[T any](v T) *T {
	return &v
}
