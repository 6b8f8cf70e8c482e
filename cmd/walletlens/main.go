package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "walletlens",
		Usage: "Wallet performance analytics CLI",
		Description: `A command-line tool for the walletlens analytics service.

Use this CLI to analyze wallets through the HTTP API, run analyses as Temporal
workflows, follow published analyses on NATS, and manage imported history.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Analysis commands (HTTP API)
			analyzeCommand(),
			seriesCommand(),
			calendarCommand(),
			demoCommand(),
			// Imported history commands
			{
				Name:  "db",
				Usage: "Transaction history database commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					importCommand(),
					historyCommand(),
					pruneCommand(),
				},
			},
			// Temporal workflow commands
			{
				Name:  "temporal",
				Usage: "Run and inspect analysis workflows",
				Subcommands: []*cli.Command{
					workflowAnalyzeCommand(),
					workflowResultCommand(),
					workflowStatusCommand(),
				},
			},
			// NATS streaming commands
			{
				Name:  "nats",
				Usage: "NATS analysis streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: globalFlags(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "temporal-host",
			Usage:   "Temporal server address",
			EnvVars: []string{"TEMPORAL_HOST"},
			Value:   "localhost:7233",
		},
		&cli.StringFlag{
			Name:    "temporal-namespace",
			Usage:   "Temporal namespace",
			EnvVars: []string{"TEMPORAL_NAMESPACE"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "temporal-task-queue",
			Usage:   "Temporal task queue served by the worker",
			EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
			Value:   "walletlens-analysis",
		},
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "Analytics server URL",
			EnvVars: []string{"SERVER_URL"},
			Value:   "http://localhost:8080",
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS server URL",
			EnvVars: []string{"NATS_URL"},
			Value:   "nats://localhost:4222",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output in JSON format",
		},
		&cli.StringFlag{
			Name:  "jq",
			Usage: "Filter JSON output with a jq expression",
		},
	}
}
