package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/brojonat/walletlens/service/db"
	"github.com/brojonat/walletlens/service/solana"
	"github.com/urfave/cli/v2"
)

var networkFlag = &cli.StringFlag{
	Name:    "network",
	Usage:   "Network the stored transactions belong to",
	EnvVars: []string{"SOLANA_NETWORK"},
	Value:   "mainnet",
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the transaction history tables",
		Flags: []cli.Flag{networkFlag},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.EnsureSchema(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ Schema is up to date")
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Fetch a wallet's recent history over RPC and store it",
		ArgsUsage: "ADDRESS",
		Description: `Import recent transactions so the service can run with HISTORY_SOURCE=db.
Transactions that are already stored are skipped.

Example:
  walletlens db import DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --limit 500`,
		Flags: []cli.Flag{
			networkFlag,
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL (a comma-separated list picks one at random)",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "https://api.mainnet-beta.solana.com",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Number of recent transactions to fetch",
				Value:   100,
			},
			&cli.Float64Flag{
				Name:  "rps",
				Usage: "RPC requests per second",
				Value: 5,
			},
		},
		Action: func(c *cli.Context) error {
			address, err := addressArg(c)
			if err != nil {
				return err
			}

			endpoint, err := solana.SelectRandomEndpoint(splitURLs(c.String("rpc-url")))
			if err != nil {
				return err
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			rpc := solana.NewClient(
				solana.NewRPCClient(endpoint),
				solana.EndpointLabel(endpoint),
				solana.NewLimiter(c.Float64("rps"), 1),
				nil,
				logger,
			)

			txs, err := rpc.History(c.Context, address, c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to fetch history: %w", err)
			}
			inserted, err := store.SaveTransactions(c.Context, txs)
			if err != nil {
				return err
			}

			result := map[string]interface{}{
				"wallet":   address,
				"fetched":  len(txs),
				"inserted": inserted,
			}
			return render(c, result, func(w io.Writer) error {
				fmt.Fprintf(w, "✓ Imported %d new transaction(s) of %d fetched for %s\n", inserted, len(txs), address)
				return nil
			})
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List a wallet's stored transactions",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			networkFlag,
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of transactions to show",
				Value:   20,
			},
		},
		Action: func(c *cli.Context) error {
			address, err := addressArg(c)
			if err != nil {
				return err
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			txs, err := store.History(c.Context, address, c.Int("limit"))
			if err != nil {
				return err
			}
			total, err := store.CountTransactions(c.Context, address)
			if err != nil {
				return err
			}

			return render(c, txs, func(w io.Writer) error {
				printHistory(w, address, txs)
				fmt.Fprintf(os.Stderr, "\nShowing %d of %d stored transactions\n", len(txs), total)
				return nil
			})
		},
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete stored transactions older than a given age",
		Flags: []cli.Flag{
			networkFlag,
			&cli.DurationFlag{
				Name:     "older-than",
				Usage:    "Age of the oldest transaction to keep (e.g. 2160h for 90 days)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			cutoff := time.Now().Add(-c.Duration("older-than"))
			deleted, err := store.DeleteTransactionsOlderThan(c.Context, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "✓ Deleted %d transaction(s) before %s\n", deleted, cutoff.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

// printHistory shows each transaction with the wallet's own change in it.
func printHistory(w io.Writer, wallet string, txs []analytics.RawTransaction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNATURE\tTIME\tDELTA\tACCOUNTS")
	for _, tx := range txs {
		var delta int64
		for _, ch := range tx.Changes {
			if ch.Account == wallet {
				delta += ch.Delta
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%+d\t%d\n",
			truncate(tx.Signature, 16),
			time.Unix(tx.Timestamp, 0).UTC().Format(time.RFC3339),
			delta,
			len(tx.Changes),
		)
	}
	tw.Flush()
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := db.Connect(c.Context, dbURL)
	if err != nil {
		return nil, nil, err
	}

	store := db.NewStore(pool, c.String("network"), nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}

func splitURLs(s string) []string {
	var urls []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			urls = append(urls, part)
		}
	}
	return urls
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
