package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/nerrad567/scene-rotator/internal/auth"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/config"
)

// runToken implements the "token" subcommand: it signs a bearer token with
// the configured JWT secret and writes it to out.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("sub", "", "token subject (operator or dashboard name)")
	role := fs.String("role", string(auth.RoleOperator), "role: viewer or operator")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("-sub is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := auth.GenerateToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
