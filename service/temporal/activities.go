package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/brojonat/walletlens/service/metrics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/temporal"
	"golang.org/x/sync/errgroup"
)

// Application error types carried across the activity boundary.
const (
	ErrTypeInvalidWallet     = "InvalidWallet"
	ErrTypePriceUnavailable  = "PriceUnavailable"
	ErrTypeSourceUnavailable = "SourceUnavailable"
)

// FetchSnapshotInput contains the input for the FetchSnapshot activity.
type FetchSnapshotInput struct {
	Wallet string `json:"wallet"`
}

// FetchHistoryInput contains the input for the FetchHistory activity.
type FetchHistoryInput struct {
	Wallet string `json:"wallet"`
	Limit  int    `json:"limit"`
}

// FetchPriceInput contains the input for the FetchPrice activity.
type FetchPriceInput struct {
	Symbol string `json:"symbol"`
}

// PublishAnalysisInput contains the input for the PublishAnalysis activity.
type PublishAnalysisInput struct {
	ID     string           `json:"id"`
	Report analytics.Report `json:"report"`
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	balance   analytics.BalanceSource
	holdings  analytics.HoldingsSource
	history   analytics.HistorySource
	price     analytics.PriceSource
	publisher natspkg.Publisher
	options   analytics.Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded. A nil publisher drops events.
// opts are the worker's pipeline settings, served by AnalysisOptions.
func NewActivities(
	balance analytics.BalanceSource,
	holdings analytics.HoldingsSource,
	history analytics.HistorySource,
	price analytics.PriceSource,
	publisher natspkg.Publisher,
	opts analytics.Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = natspkg.NoopPublisher{}
	}
	return &Activities{
		balance:   balance,
		holdings:  holdings,
		history:   history,
		price:     price,
		publisher: publisher,
		options:   opts,
		metrics:   m,
		logger:    logger,
	}
}

// AnalysisOptions returns the worker's pipeline settings.
func (a *Activities) AnalysisOptions(ctx context.Context) (analytics.Options, error) {
	return a.options, nil
}

// FetchSnapshot fetches the wallet's native balance and token holdings.
func (a *Activities) FetchSnapshot(ctx context.Context, input FetchSnapshotInput) (snap analytics.Snapshot, err error) {
	defer a.observe("FetchSnapshot", time.Now(), &err)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bal, err := a.balance.Balance(gctx, input.Wallet)
		if err != nil {
			return err
		}
		snap.NativeBalance = bal
		return nil
	})
	g.Go(func() error {
		h, err := a.holdings.Holdings(gctx, input.Wallet)
		if err != nil {
			return err
		}
		snap.TokenAccounts = h.TokenAccounts
		snap.NFTCount = h.NFTCount
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.ErrorContext(ctx, "failed to fetch snapshot", "wallet", input.Wallet, "error", err)
		return analytics.Snapshot{}, toApplicationError("snapshot", err)
	}

	a.logger.DebugContext(ctx, "fetched snapshot",
		"wallet", input.Wallet,
		"balance", snap.NativeBalance,
		"token_accounts", snap.TokenAccounts,
	)
	return snap, nil
}

// FetchHistory fetches up to input.Limit recent transactions for the wallet.
func (a *Activities) FetchHistory(ctx context.Context, input FetchHistoryInput) (txs []analytics.RawTransaction, err error) {
	defer a.observe("FetchHistory", time.Now(), &err)

	txs, err = a.history.History(ctx, input.Wallet, input.Limit)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to fetch history", "wallet", input.Wallet, "error", err)
		return nil, toApplicationError("history", err)
	}

	a.logger.DebugContext(ctx, "fetched history", "wallet", input.Wallet, "count", len(txs))
	return txs, nil
}

// FetchPrice fetches the fiat price of one whole unit of input.Symbol.
func (a *Activities) FetchPrice(ctx context.Context, input FetchPriceInput) (rate decimal.Decimal, err error) {
	defer a.observe("FetchPrice", time.Now(), &err)

	rate, err = a.price.Price(ctx, input.Symbol)
	if err == nil && !rate.IsPositive() {
		err = analytics.PriceError(input.Symbol, fmt.Errorf("non-positive rate %s", rate))
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to fetch price", "symbol", input.Symbol, "error", err)
		if !errors.Is(err, analytics.ErrPriceUnavailable) && ctx.Err() == nil {
			err = analytics.PriceError(input.Symbol, err)
		}
		return decimal.Zero, toApplicationError("price", err)
	}
	return rate, nil
}

// PublishAnalysis announces a completed analysis on NATS.
func (a *Activities) PublishAnalysis(ctx context.Context, input PublishAnalysisInput) (err error) {
	defer a.observe("PublishAnalysis", time.Now(), &err)

	report := input.Report
	event := natspkg.NewAnalysisEventWithID(input.ID, &report, "workflow")
	if err := a.publisher.PublishAnalysis(ctx, event); err != nil {
		return fmt.Errorf("failed to publish analysis: %w", err)
	}

	a.logger.InfoContext(ctx, "published analysis", "wallet", report.Wallet, "id", input.ID)
	return nil
}

func (a *Activities) observe(activity string, start time.Time, err *error) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, *err, time.Since(start).Seconds())
	}
}

// toApplicationError tags pipeline errors with a type the retry policy can
// match on. Invalid wallets and unusable prices are not retried.
func toApplicationError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, analytics.ErrInvalidWallet):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidWallet, err)
	case errors.Is(err, analytics.ErrPriceUnavailable):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypePriceUnavailable, err)
	default:
		if !errors.Is(err, analytics.ErrSourceUnavailable) {
			err = analytics.SourceError(op, err)
		}
		return temporal.NewApplicationErrorWithCause(err.Error(), ErrTypeSourceUnavailable, err)
	}
}
