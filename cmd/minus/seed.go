package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/zachsents/minus-sub000/pkg/cmd"
	"github.com/zachsents/minus-sub000/pkg/log"
)

// NewSeedCommand loads organizations, users and workflows from a YAML file so a local
// store has the documents other services normally own.
func NewSeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Write organizations, users and workflows from a YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Seed file",
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("seed")

			p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				_ = p.Close(ctx)
			}()

			f, err := os.Open(command.String("file"))
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}

			defer func() {
				_ = f.Close()
			}()

			result, err := cmd.Seed(ctx, p, f)
			if err != nil {
				return err
			}

			fmt.Printf("Seeded %d organization(s), %d user(s), %d workflow(s)\n", result.Organizations, result.Users, result.Workflows)

			return nil
		},
	}
}
