// ticketadm performs operator tasks against the helpdesk database:
// applying migrations and creating accounts of any role, which the
// public registration form cannot do.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk/internal/config"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/observability"
	"github.com/deskops/helpdesk/internal/persistence"
	"github.com/deskops/helpdesk/internal/repository"
	"github.com/deskops/helpdesk/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, cfg, logger, args[1:])
	case "create-user":
		return runCreateUser(ctx, cfg, logger, args[1:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	var dir string
	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVar(&dir, "dir", cfg.Postgres.MigrationsDir, "directory holding *.sql migrations")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	pg, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	return persistence.RunMigrations(ctx, pg.PoolHandle(), dir, logger)
}

func runCreateUser(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	var input service.NewUserInput
	var role string

	flagSet := pflag.NewFlagSet("create-user", pflag.ContinueOnError)
	flagSet.StringVar(&input.Name, "name", "", "display name")
	flagSet.StringVar(&input.Email, "email", "", "login email")
	flagSet.StringVar(&input.Password, "password", "", "initial password (at least 8 characters)")
	flagSet.StringVar(&role, "role", string(domain.RoleUser), "admin, user or technician")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if input.Password == "" {
		input.Password = os.Getenv("TICKETADM_PASSWORD")
	}
	input.Role = domain.Role(role)

	pg, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	users := service.NewUserService(cfg.Auth, service.UserDependencies{
		Store:  repository.NewPostgresStore(pg.PoolHandle()),
		Logger: logger,
	})
	user, err := users.CreateUser(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*persistence.Postgres, error) {
	if cfg.Postgres.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	return persistence.NewPostgres(ctx, cfg.Postgres, logger)
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: ticketadm <command> [flags]

Commands:
  migrate       apply SQL migrations (--dir)
  create-user   create an account (--name --email --password --role)

The database is read from POSTGRES_DSN. The password may also be given
through TICKETADM_PASSWORD to keep it out of shell history.
`)
}
