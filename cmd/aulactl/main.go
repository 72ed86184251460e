// Command aulactl performs operator tasks against an Aula deployment:
// issuing API tokens and assigning subscription tiers.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/DukeRupert/aula/internal"
	"github.com/DukeRupert/aula/internal/auth"
	"github.com/DukeRupert/aula/internal/domain"
	"github.com/DukeRupert/aula/internal/repository"
	"github.com/google/uuid"
)

const usage = `usage: aulactl <command> [flags]

commands:
  token  -user <uuid> [-ttl 24h]     issue a bearer token
  tier   -user <uuid> -tier <name>   set a user's subscription tier
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "aulactl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	switch args[0] {
	case "token":
		return issueToken(cfg, args[1:], out)
	case "tier":
		return setTier(ctx, cfg, args[1:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func issueToken(cfg *internal.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := parseUser(*user)
	if err != nil {
		return err
	}

	token, err := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTIssuer).Issue(userID, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func setTier(ctx context.Context, cfg *internal.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tier", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	name := fs.String("tier", "", "free, premium or enterprise")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := parseUser(*user)
	if err != nil {
		return err
	}
	tier := domain.Tier(*name)
	if !tier.Valid() {
		return fmt.Errorf("unknown tier %q", *name)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required to set a tier")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	quiet := internal.NewLogger(io.Discard, cfg.Env, "error")
	db, err := repository.Open(ctx, cfg.DatabaseURL, repository.DefaultOpenConfig(), quiet)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := internal.RunMigrations(ctx, db, quiet); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := repository.NewPostgresStore(db).SetTier(ctx, userID, tier); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s is now on the %s tier\n", userID, tier)
	return err
}

func parseUser(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("-user is required")
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}
