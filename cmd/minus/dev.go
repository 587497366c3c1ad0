package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/zachsents/minus-sub000/pkg/cmd"
	"github.com/zachsents/minus-sub000/pkg/log"
	"github.com/zachsents/minus-sub000/pkg/tasks"
)

const shutdownTimeout = 10 * time.Second

// NewDevCommand runs the API and the worker in one process.
func NewDevCommand() *cli.Command {
	flags := append(cmd.CommonFlags(), cmd.APIFlags()...)
	flags = append(flags, cmd.WorkerFlags()...)

	return &cli.Command{
		Name:  "dev",
		Usage: "Run the API and the worker together",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))
			logger := log.WithModule("dev")

			config, err := cmd.ConfigFromCommand(command, "minus")
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

			api := cmd.NewAPI(logger, stack)

			worker, err := cmd.NewWorker(ctx, logger, stack, queue)
			if err != nil {
				return err
			}

			err = stack.Subscribe(ctx)
			if err != nil {
				return err
			}

			err = worker.Start(ctx)
			if err != nil {
				return err
			}

			errs := make(chan error, 1)

			go func() {
				errs <- api.Start(config.Port)
			}()

			shutdown := make(chan struct{})

			go func() {
				cmd.WaitForShutdown(ctx)
				close(shutdown)
			}()

			select {
			case err = <-errs:
				logger.ErrorContext(ctx, "API stopped", "error", err)
			case <-shutdown:
				logger.InfoContext(ctx, "Shutting down...")
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			_ = api.Shutdown(shutdownCtx)

			stopErr := worker.Stop(shutdownCtx)
			if err != nil {
				return err
			}

			return stopErr
		},
	}
}
