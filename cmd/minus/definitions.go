package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"github.com/zachsents/minus-sub000/pkg/cmd"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/services"
)

func catalogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "definitions-base",
			Usage:   "Path to the base node definition catalog (embedded when empty)",
			Sources: cli.EnvVars("DEFINITIONS_BASE"),
		},
		&cli.StringFlag{
			Name:    "definitions-overlay",
			Usage:   "Path to the environment overlay catalog (embedded when empty)",
			Sources: cli.EnvVars("DEFINITIONS_OVERLAY"),
		},
	}
}

func loadDefinitions(command *cli.Command) (*services.Definitions, error) {
	logger := slog.With("module", "minus", "action", command.Name)

	reg, err := cmd.NewRegistry(logger, command.String("definitions-base"), command.String("definitions-overlay"))
	if err != nil {
		return nil, err
	}

	return services.NewDefinitions(reg), nil
}

func NewDefinitionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "definitions",
		Aliases: []string{"defs"},
		Usage:   "Inspect the node definition catalog",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List the merged node definitions",
				Flags:   catalogFlags(),
				Action: func(_ context.Context, command *cli.Command) error {
					definitions, err := loadDefinitions(command)
					if err != nil {
						return err
					}

					writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
					_, _ = fmt.Fprintln(writer, "ID\tNAME\tCATEGORY\tINPUTS")

					for _, definition := range definitions.List() {
						_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\t%d\n", definition.ID, definition.Name, definition.Category, len(definition.Inputs))
					}

					return writer.Flush()
				},
			},
			{
				Name:      "validate",
				Aliases:   []string{"v"},
				Usage:     "Check that the catalogs merge, and optionally validate node files",
				ArgsUsage: "[node.json...]",
				Flags:     catalogFlags(),
				Action: func(_ context.Context, command *cli.Command) error {
					definitions, err := loadDefinitions(command)
					if err != nil {
						return err
					}

					fmt.Printf("Catalog OK: %d definitions\n", len(definitions.List()))

					invalid := 0

					for _, path := range command.Args().Slice() {
						ok, err := validateNodeFile(definitions, path)
						if err != nil {
							return err
						}

						if !ok {
							invalid++
						}
					}

					if invalid > 0 {
						return cli.Exit(fmt.Sprintf("%d invalid node(s)", invalid), 1)
					}

					return nil
				},
			},
		},
	}
}

func validateNodeFile(definitions *services.Definitions, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read node file: %w", err)
	}

	var node models.Node

	err = json.Unmarshal(data, &node)
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	failures, err := definitions.Validate(node.Definition, &node)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	if len(failures) == 0 {
		fmt.Printf("%s: valid\n", path)

		return true, nil
	}

	fmt.Printf("%s: %d error(s)\n", path, len(failures))

	for _, failure := range failures {
		fmt.Printf("  - %s\n", failure.Error())
	}

	return false, nil
}
