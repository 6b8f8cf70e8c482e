package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/walletlens/client"
	"github.com/brojonat/walletlens/service/analytics"
	"github.com/urfave/cli/v2"
)

func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Usage:   "Maximum number of transactions to fetch (server default if 0)",
		},
		&cli.StringFlag{
			Name:  "fallback",
			Usage: "Synthetic data to return if the analysis fails (demo, empty, random, none)",
		},
		&cli.Uint64Flag{
			Name:  "seed",
			Usage: "Seed for the random fallback",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: 90 * time.Second,
		},
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze a wallet's trading performance",
		ArgsUsage: "ADDRESS",
		Description: `Fetch a wallet's balance, holdings and recent history through the server
and print its P&L metrics.

Examples:
  walletlens analyze DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK
  walletlens analyze DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --fallback demo
  walletlens analyze DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --jq '.metrics.win_rate'`,
		Flags: analysisFlags(),
		Action: func(c *cli.Context) error {
			address, err := addressArg(c)
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(c)
			defer cancel()

			analysis, err := newClient(c).Analyze(ctx, address, analyzeOptions(c))
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			return render(c, analysis, func(w io.Writer) error {
				printReport(w, &analysis.Report)
				return nil
			})
		},
	}
}

func seriesCommand() *cli.Command {
	return &cli.Command{
		Name:      "series",
		Usage:     "Show a wallet's daily P&L for a timeframe",
		ArgsUsage: "ADDRESS",
		Flags: append(analysisFlags(),
			&cli.StringFlag{
				Name:    "timeframe",
				Aliases: []string{"t"},
				Usage:   "Window to show (7D, 30D, 90D, ALL)",
				Value:   string(analytics.DefaultTimeframe),
			},
		),
		Action: func(c *cli.Context) error {
			address, err := addressArg(c)
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(c)
			defer cancel()

			series, err := newClient(c).Series(ctx, address, strings.ToUpper(c.String("timeframe")), analyzeOptions(c))
			if err != nil {
				return fmt.Errorf("failed to get series: %w", err)
			}

			return render(c, series, func(w io.Writer) error {
				if series.Synthetic {
					fmt.Fprintf(w, "⚠ synthetic data (%s)\n", series.Label)
				}
				fmt.Fprintf(w, "%s %s  domain [%.2f, %.2f]\n\n", series.Wallet, series.Timeframe, series.Domain.Min, series.Domain.Max)

				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tNET")
				for _, p := range series.Points {
					fmt.Fprintf(tw, "%s\t%+.2f\n", p.Date, p.NetFiat)
				}
				return tw.Flush()
			})
		},
	}
}

func calendarCommand() *cli.Command {
	return &cli.Command{
		Name:      "calendar",
		Usage:     "Show a wallet's daily P&L as a calendar",
		ArgsUsage: "ADDRESS",
		Description: `Print a month-by-month calendar of daily P&L. By default the last 3 months
are shown; --year and --month select a single month.`,
		Flags: append(analysisFlags(),
			&cli.IntFlag{
				Name:    "months",
				Aliases: []string{"m"},
				Usage:   "Number of trailing months (1-12)",
			},
			&cli.IntFlag{
				Name:  "year",
				Usage: "Year of a single month to show (requires --month)",
			},
			&cli.IntFlag{
				Name:  "month",
				Usage: "Month (1-12) of a single month to show (requires --year)",
			},
		),
		Action: func(c *cli.Context) error {
			address, err := addressArg(c)
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(c)
			defer cancel()

			cal, err := newClient(c).Calendar(ctx, address, client.CalendarQuery{
				Year:   c.Int("year"),
				Month:  c.Int("month"),
				Months: c.Int("months"),
			}, analyzeOptions(c))
			if err != nil {
				return fmt.Errorf("failed to get calendar: %w", err)
			}

			return render(c, cal, func(w io.Writer) error {
				if cal.Synthetic {
					fmt.Fprintf(w, "⚠ synthetic data (%s)\n", cal.Label)
				}
				for _, month := range cal.Months {
					printMonth(w, month)
				}
				fmt.Fprintf(w, "Total: %+.2f  Profitable days: %d/%d (%.1f%%)\n",
					cal.Summary.TotalPnL,
					cal.Summary.ProfitableDays,
					cal.Summary.TotalDays,
					cal.Summary.ProfitablePercent,
				)
				return nil
			})
		},
	}
}

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Show a labeled synthetic report",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Synthetic dataset (demo, empty, random)",
				Value:   "demo",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Seed for the random dataset",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := requestContext(c)
			defer cancel()

			analysis, err := newClient(c).Demo(ctx, c.String("kind"), c.Uint64("seed"))
			if err != nil {
				return fmt.Errorf("failed to get demo report: %w", err)
			}

			return render(c, analysis, func(w io.Writer) error {
				printReport(w, &analysis.Report)
				return nil
			})
		},
	}
}

func addressArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("requires exactly one argument: wallet address")
	}
	return c.Args().Get(0), nil
}

func analyzeOptions(c *cli.Context) client.AnalyzeOptions {
	return client.AnalyzeOptions{
		Limit:    c.Int("limit"),
		Fallback: c.String("fallback"),
		Seed:     c.Uint64("seed"),
	}
}

func newClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func printReport(w io.Writer, r *analytics.Report) {
	m := r.Metrics
	if m.Synthetic {
		fmt.Fprintf(w, "⚠ synthetic data (%s)\n", m.Label)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Wallet:\t%s\n", r.Wallet)
	fmt.Fprintf(tw, "Total P&L:\t%+.2f (%.2f%%)\n", m.TotalPnL, m.TotalPnLPercentage)
	fmt.Fprintf(tw, "Win rate:\t%.1f%% (%d/%d)\n", m.WinRate, m.WinningTrades, m.TotalTrades)
	fmt.Fprintf(tw, "Avg trade:\t%+.2f\n", m.AvgTrade)
	fmt.Fprintf(tw, "Best / worst:\t%+.2f / %+.2f\n", m.BestTrade, m.WorstTrade)
	fmt.Fprintf(tw, "Balance:\t%.4f (value %.2f)\n", m.NativeBalance, m.CurrentValue)
	fmt.Fprintf(tw, "Holdings:\t%d token accounts, %d NFTs\n", m.TokenAccounts, m.NFTCount)
	if r.Rate != "" {
		fmt.Fprintf(tw, "Rate:\t%s\n", r.Rate)
	}
	fmt.Fprintf(tw, "Generated:\t%s\n", r.GeneratedAt.Format(time.RFC3339))
	tw.Flush()
}

// printMonth draws one month as a Sunday-first grid of daily values.
func printMonth(w io.Writer, month analytics.MonthView) {
	fmt.Fprintf(w, "%s %d\n", month.Name, month.Year)

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Sun\tMon\tTue\tWed\tThu\tFri\tSat\t")
	for i, cell := range month.Cells {
		if cell.Blank {
			fmt.Fprint(tw, "\t")
		} else {
			fmt.Fprintf(tw, "%+.0f\t", cell.Value)
		}
		if i%7 == 6 {
			fmt.Fprintln(tw)
		}
	}
	if len(month.Cells)%7 != 0 {
		fmt.Fprintln(tw)
	}
	tw.Flush()
	fmt.Fprintln(w)
}
