package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"github.com/zachsents/minus-sub000/pkg/cmd"
	"github.com/zachsents/minus-sub000/pkg/log"
	"github.com/zachsents/minus-sub000/pkg/tasks"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  "minus-worker",
		Usage:                 "Schedule, execute and reconcile workflow runs",
		EnableShellCompletion: true,
		Flags:                 append(cmd.CommonFlags(), cmd.WorkerFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))
			logger := log.WithModule("worker")

			logger.InfoContext(ctx, "Initializing Minus worker")

			config, err := cmd.ConfigFromCommand(command, "minus-worker")
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

			queue, err := cmd.NewTaskQueue(ctx, logger, config.TasksURL, tasks.Options{})
			if err != nil {
				return err
			}

			worker, err := cmd.NewWorker(ctx, logger, stack, queue)
			if err != nil {
				return err
			}

			err = stack.Subscribe(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

				return err
			}

			err = worker.Start(ctx)
			if err != nil {
				return err
			}

			cmd.WaitForShutdown(ctx)
			logger.InfoContext(ctx, "Shutting down worker...")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			return worker.Stop(shutdownCtx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
