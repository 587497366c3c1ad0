package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"github.com/zachsents/minus-sub000/pkg/cmd"
	"github.com/zachsents/minus-sub000/pkg/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  "minus-api",
		Usage:                 "Serve the node catalog, triggers, runs and URL triggers",
		EnableShellCompletion: true,
		Flags:                 append(cmd.CommonFlags(), cmd.APIFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))
			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Minus API")

			config, err := cmd.ConfigFromCommand(command, "minus-api")
			if err != nil {
				return err
			}

			stack, err := cmd.NewStack(ctx, logger, config)
			if err != nil {
				return err
			}

			defer func() {
				_ = stack.Close(ctx)
			}()

			api := cmd.NewAPI(logger, stack)

			err = stack.Subscribe(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

				return err
			}

			errs := make(chan error, 1)

			go func() {
				errs <- api.Start(config.Port)
			}()

			select {
			case err = <-errs:
				logger.ErrorContext(ctx, "API stopped", "error", err)

				return err
			case <-shutdown(ctx):
			}

			logger.InfoContext(ctx, "Shutting down API...")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			return api.Shutdown(shutdownCtx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func shutdown(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		cmd.WaitForShutdown(ctx)
		close(done)
	}()

	return done
}
