package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  "minus",
		Usage:                 "Develop and inspect Minus workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewDevCommand(),
			NewDefinitionsCommand(),
			NewSeedCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
