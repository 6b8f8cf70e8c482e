package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/walletlens/service/temporal"
	"github.com/urfave/cli/v2"
)

// workflowClient is the part of temporal.Client the commands use.
type workflowClient interface {
	StartAnalysis(ctx context.Context, input temporal.AnalyzeWalletInput) (string, error)
	Result(ctx context.Context, workflowID string) (*temporal.AnalyzeWalletResult, error)
	Status(ctx context.Context, workflowID string) (*temporal.WorkflowStatus, error)
	Close()
}

// dialTemporal is swapped out in tests.
var dialTemporal = func(c *cli.Context) (workflowClient, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		nil,
		logger,
	)
}

func workflowAnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Run an analysis as a Temporal workflow",
		ArgsUsage: "ADDRESS",
		Description: `Start AnalyzeWalletWorkflow for a wallet. The worker fetches the wallet's data,
computes the report and publishes it to NATS.

Without --wait the workflow ID is printed and the command returns immediately.

Example:
  walletlens temporal analyze DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --wait`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of transactions to fetch (worker default if 0)",
			},
			&cli.StringFlag{
				Name:  "fallback",
				Usage: "Synthetic data to return if the analysis fails (demo, empty, random)",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Seed for the random fallback",
			},
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Wait for the workflow to finish and print the report",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the result",
				Value: 5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			address, err := addressArg(c)
			if err != nil {
				return err
			}

			tc, err := dialTemporal(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx, cancel := requestContext(c)
			defer cancel()

			id, err := tc.StartAnalysis(ctx, temporal.AnalyzeWalletInput{
				Wallet:   address,
				Limit:    c.Int("limit"),
				Fallback: c.String("fallback"),
				Seed:     c.Uint64("seed"),
			})
			if err != nil {
				return err
			}

			if !c.Bool("wait") {
				return render(c, map[string]string{"workflow_id": id}, func(w io.Writer) error {
					fmt.Fprintf(w, "✓ Workflow started: %s\n", id)
					fmt.Fprintf(w, "  Check it with: walletlens temporal status %s\n", id)
					return nil
				})
			}

			result, err := tc.Result(ctx, id)
			if err != nil {
				return err
			}
			return renderResult(c, result)
		},
	}
}

func workflowResultCommand() *cli.Command {
	return &cli.Command{
		Name:      "result",
		Usage:     "Wait for an analysis workflow and print its report",
		ArgsUsage: "WORKFLOW_ID",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the result",
				Value: 5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: workflow ID")
			}

			tc, err := dialTemporal(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx, cancel := requestContext(c)
			defer cancel()

			result, err := tc.Result(ctx, c.Args().Get(0))
			if err != nil {
				return err
			}
			return renderResult(c, result)
		},
	}
}

func workflowStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the status of an analysis workflow",
		ArgsUsage: "WORKFLOW_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: workflow ID")
			}

			tc, err := dialTemporal(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			status, err := tc.Status(c.Context, c.Args().Get(0))
			if err != nil {
				return err
			}

			return render(c, status, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Workflow:\t%s\n", status.ID)
				fmt.Fprintf(tw, "Status:\t%s\n", status.Status)
				if !status.StartTime.IsZero() {
					fmt.Fprintf(tw, "Started:\t%s\n", status.StartTime.Format(time.RFC3339))
				}
				if !status.CloseTime.IsZero() {
					fmt.Fprintf(tw, "Closed:\t%s\n", status.CloseTime.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func renderResult(c *cli.Context, result *temporal.AnalyzeWalletResult) error {
	return render(c, result, func(w io.Writer) error {
		fmt.Fprintf(w, "Workflow: %s (published: %t)\n\n", result.ID, result.Published)
		printReport(w, &result.Report)
		return nil
	})
}
