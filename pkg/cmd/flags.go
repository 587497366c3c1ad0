package cmd

import (
	"time"

	"github.com/urfave/cli/v3"
)

const (
	defaultAPIPort            = 9091
	defaultSyncTriggerTimeout = 30 * time.Second
	defaultRunnerTimeout      = 10 * time.Second
	defaultRunTimeout         = time.Hour
)

// CommonFlags configure the stores and transports every process shares.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (postgres://... or file://<dir>)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers used when the event bus is kafka",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
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
		&cli.StringFlag{
			Name:    "timezone",
			Usage:   "Time zone recurring schedule anchors are interpreted in",
			Value:   "UTC",
			Sources: cli.EnvVars("TIMEZONE"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export OpenTelemetry traces over OTLP HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

func APIFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultAPIPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.DurationFlag{
			Name:    "sync-trigger-timeout",
			Usage:   "Longest a sync URL trigger waits for its run to finish",
			Value:   defaultSyncTriggerTimeout,
			Sources: cli.EnvVars("SYNC_TRIGGER_TIMEOUT"),
		},
	}
}

func WorkerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "tasks-url",
			Usage:   "Task queue backend (memory or redis://host:port/db)",
			Value:   "memory",
			Sources: cli.EnvVars("TASKS_URL"),
		},
		&cli.StringFlag{
			Name:     "runner-url",
			Usage:    "Base URL of the workflow runner",
			Required: true,
			Sources:  cli.EnvVars("RUNNER_URL"),
		},
		&cli.DurationFlag{
			Name:    "runner-timeout",
			Usage:   "Timeout of one call to the workflow runner",
			Value:   defaultRunnerTimeout,
			Sources: cli.EnvVars("RUNNER_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    "run-timeout",
			Usage:   "Fail runs that stay RUNNING this long (0 disables)",
			Value:   defaultRunTimeout,
			Sources: cli.EnvVars("RUN_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "reconcile-schedule",
			Usage:   "Cron spec of the stuck run reconciler",
			Value:   "@every 1m",
			Sources: cli.EnvVars("RECONCILE_SCHEDULE"),
		},
		&cli.StringFlag{
			Name:    "email-sender",
			Usage:   "How failure emails leave the worker (bus, log)",
			Value:   "bus",
			Sources: cli.EnvVars("EMAIL_SENDER"),
		},
	}
}

// Config is every setting a process reads from its flags.
type Config struct {
	ServiceName string

	DatabaseURL        string
	EventBus           string
	KafkaBrokers       []string
	DefinitionsBase    string
	DefinitionsOverlay string
	Location           *time.Location
	Tracing            bool

	Port               int
	SyncTriggerTimeout time.Duration

	TasksURL          string
	RunnerURL         string
	RunnerTimeout     time.Duration
	RunTimeout        time.Duration
	ReconcileSchedule string
	EmailSender       string
}

// ConfigFromCommand reads the flags of command. Flags the command does not declare keep
// their zero value.
func ConfigFromCommand(command *cli.Command, serviceName string) (Config, error) {
	location, err := time.LoadLocation(command.String("timezone"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		ServiceName:        serviceName,
		DatabaseURL:        command.String("database-url"),
		EventBus:           command.String("event-bus"),
		KafkaBrokers:       command.StringSlice("kafka-brokers"),
		DefinitionsBase:    command.String("definitions-base"),
		DefinitionsOverlay: command.String("definitions-overlay"),
		Location:           location,
		Tracing:            command.Bool("tracing"),
		Port:               int(command.Int("port")),
		SyncTriggerTimeout: command.Duration("sync-trigger-timeout"),
		TasksURL:           command.String("tasks-url"),
		RunnerURL:          command.String("runner-url"),
		RunnerTimeout:      command.Duration("runner-timeout"),
		RunTimeout:         command.Duration("run-timeout"),
		ReconcileSchedule:  command.String("reconcile-schedule"),
		EmailSender:        command.String("email-sender"),
	}, nil
}
