package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/urfave/cli/v2"
)

// subscribeCommand follows completed analyses on NATS.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to completed analyses",
		ArgsUsage: "[wallet_address]",
		Description: `Stream analysis events published by the server and the worker.

Events are published to the subject: analytics.{wallet_address}
Without an address, events for every wallet are shown.

Example:
  walletlens nats subscribe DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --json`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Exit after this many events (0 streams until interrupted)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Exit after this long (0 streams until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("accepts at most one argument: wallet address")
			}
			address := c.Args().Get(0)
			natsURL := c.String("nats-url")

			nc, err := natspkg.Connect(natsURL, "walletlens-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx, cancel := requestContext(c)
			defer cancel()
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := c.App.Writer
			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(w, "📡 Subscribing to: %s\n", natspkg.Subject(address))
				fmt.Fprintf(w, "   NATS: %s\n", natsURL)
				fmt.Fprintf(w, "\nWaiting for analyses... (Ctrl-C to exit)\n\n")
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			return streamAnalyses(ctx, w, address, c.Int("count"), jsonOutput, func(ctx context.Context, handler func(*natspkg.AnalysisEvent)) error {
				return natspkg.Subscribe(ctx, nc, address, logger, handler)
			})
		},
	}
}

type subscribeFunc func(ctx context.Context, handler func(*natspkg.AnalysisEvent)) error

// streamAnalyses prints events delivered by subscribe until ctx is done or
// count events have been printed.
func streamAnalyses(ctx context.Context, w io.Writer, wallet string, count int, jsonOutput bool, subscribe subscribeFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan *natspkg.AnalysisEvent, 10)
	subErr := make(chan error, 1)
	go func() {
		subErr <- subscribe(ctx, func(event *natspkg.AnalysisEvent) {
			select {
			case events <- event:
			case <-ctx.Done():
			}
		})
	}()

	received := 0
	for {
		select {
		case event := <-events:
			received++
			if jsonOutput {
				data, err := json.Marshal(event)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(data))
			} else {
				printEvent(w, received, event)
			}
			if count > 0 && received >= count {
				return nil
			}

		case err := <-subErr:
			if err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Fprintf(w, "Received %d analysis event(s) for %s\n", received, walletOrAll(wallet))
			}
			return nil
		}
	}
}

func printEvent(w io.Writer, n int, event *natspkg.AnalysisEvent) {
	fmt.Fprintf(w, "✅ Analysis received (#%d)\n", n)
	fmt.Fprintf(w, "   Wallet: %s\n", event.Wallet)
	fmt.Fprintf(w, "   ID: %s (from %s)\n", event.ID, event.Source)
	fmt.Fprintf(w, "   P&L: %+.2f  Win rate: %.1f%%  Trades: %d\n",
		event.Metrics.TotalPnL,
		event.Metrics.WinRate,
		event.Metrics.TotalTrades,
	)
	if event.Metrics.Synthetic {
		fmt.Fprintf(w, "   Synthetic: %s\n", event.Metrics.Label)
	}
	fmt.Fprintf(w, "   Published: %s\n\n", event.PublishedAt.Format(time.RFC3339))
}

func walletOrAll(wallet string) string {
	if wallet == "" {
		return "all wallets"
	}
	return wallet
}
