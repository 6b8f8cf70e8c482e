package analytics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BalanceSource returns a wallet's native balance in the smallest unit.
type BalanceSource interface {
	Balance(ctx context.Context, wallet string) (uint64, error)
}

// Holdings is the auxiliary asset account summary for a wallet.
type Holdings struct {
	TokenAccounts int `json:"token_accounts"`
	NFTCount      int `json:"nft_count"`
}

// HoldingsSource returns a wallet's token account summary.
type HoldingsSource interface {
	Holdings(ctx context.Context, wallet string) (Holdings, error)
}

// HistorySource returns up to limit recent transactions touching a wallet.
type HistorySource interface {
	History(ctx context.Context, wallet string, limit int) ([]RawTransaction, error)
}

// PriceSource returns the fiat price of one whole unit of symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Options control the numerical pipeline.
type Options struct {
	Symbol        string
	Decimals      int32
	DustThreshold int64
	Window        int
	HistoryLimit  int
}

// DefaultOptions returns the settings for SOL.
func DefaultOptions() Options {
	return Options{
		Symbol:        "SOL",
		Decimals:      SolDecimals,
		DustThreshold: DefaultDustThreshold,
		Window:        DefaultSeriesWindow,
		HistoryLimit:  100,
	}
}

// Merge returns o with every non-zero field of override applied.
func (o Options) Merge(override Options) Options {
	if override.Symbol != "" {
		o.Symbol = override.Symbol
	}
	if override.Decimals != 0 {
		o.Decimals = override.Decimals
	}
	if override.DustThreshold != 0 {
		o.DustThreshold = override.DustThreshold
	}
	if override.Window > 0 {
		o.Window = override.Window
	}
	if override.HistoryLimit > 0 {
		o.HistoryLimit = override.HistoryLimit
	}
	return o
}

// Compute runs the pure part of the pipeline on inputs that have already been fetched.
// Identical inputs always produce identical reports.
func Compute(wallet string, snap Snapshot, txs []RawTransaction, conv Converter, opts Options, today time.Time) Report {
	report, _ := compute(wallet, snap, txs, conv, opts, today)
	return report
}

func compute(wallet string, snap Snapshot, txs []RawTransaction, conv Converter, opts Options, today time.Time) (Report, TradeStats) {
	norm := Normalize(txs, wallet)
	stats := Aggregate(norm.Deltas, opts.DustThreshold)

	return Report{
		Wallet:      wallet,
		Metrics:     BuildMetrics(snap, stats, conv),
		Series:      BuildDailySeries(norm.Daily, conv, opts.Window, today),
		Rate:        conv.Rate().String(),
		GeneratedAt: today.UTC(),
	}, stats
}

// Request is one analysis.
type Request struct {
	Wallet string
	// Limit overrides Options.HistoryLimit when positive.
	Limit int
	// Fallback, when set, is used in place of a failed fetch. The result is labeled synthetic.
	Fallback SyntheticProvider
}

// Analyzer fetches a wallet's inputs concurrently and runs the pipeline.
type Analyzer struct {
	balance  BalanceSource
	holdings HoldingsSource
	history  HistorySource
	price    PriceSource
	opts     Options
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer. If m is nil, no metrics are recorded.
func NewAnalyzer(
	balance BalanceSource,
	holdings HoldingsSource,
	history HistorySource,
	price PriceSource,
	opts Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		balance:  balance,
		holdings: holdings,
		history:  history,
		price:    price,
		opts:     opts,
		now:      time.Now,
		metrics:  m,
		logger:   logger,
	}
}

// WithClock overrides the clock used for "today". Intended for tests.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Options returns the analyzer's pipeline settings.
func (a *Analyzer) Options() Options {
	return a.opts
}

// Inputs are the fetched inputs of one analysis.
type Inputs struct {
	Snapshot     Snapshot
	Transactions []RawTransaction
	Rate         decimal.Decimal
}

// Fetch issues the balance, holdings, history and price queries in parallel
// and waits for all of them. A failed wallet query cancels the rest. A failed
// price lookup does not cancel the wallet queries, and an invalid wallet is
// reported ahead of any other failure.
func (a *Analyzer) Fetch(ctx context.Context, wallet string, limit int) (*Inputs, error) {
	if limit <= 0 {
		limit = a.opts.HistoryLimit
	}

	var (
		in         Inputs
		walletErrs [3]error
		priceErr   error
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bal, err := a.balance.Balance(gctx, wallet)
		if err != nil {
			walletErrs[0] = asSourceError("balance", err)
			return walletErrs[0]
		}
		in.Snapshot.NativeBalance = bal
		return nil
	})

	g.Go(func() error {
		h, err := a.holdings.Holdings(gctx, wallet)
		if err != nil {
			walletErrs[1] = asSourceError("holdings", err)
			return walletErrs[1]
		}
		in.Snapshot.TokenAccounts = h.TokenAccounts
		in.Snapshot.NFTCount = h.NFTCount
		return nil
	})

	g.Go(func() error {
		txs, err := a.history.History(gctx, wallet, limit)
		if err != nil {
			walletErrs[2] = asSourceError("history", err)
			return walletErrs[2]
		}
		in.Transactions = txs
		return nil
	})

	g.Go(func() error {
		rate, err := a.price.Price(gctx, a.opts.Symbol)
		if err != nil {
			if errors.Is(err, ErrPriceUnavailable) || gctx.Err() != nil {
				priceErr = err
			} else {
				priceErr = PriceError(a.opts.Symbol, err)
			}
			return nil
		}
		in.Rate = rate
		return nil
	})

	err := g.Wait()
	for _, werr := range walletErrs {
		if errors.Is(werr, ErrInvalidWallet) {
			return nil, werr
		}
	}
	if err != nil {
		return nil, err
	}
	if priceErr != nil {
		return nil, priceErr
	}
	return &in, nil
}

// Analyze returns either a complete report for the wallet or an error.
// When req.Fallback is set, a failure other than an invalid wallet or a
// cancelled context yields the fallback's labeled report instead.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	logger := a.logger.With("wallet", req.Wallet)

	report, err := a.analyze(ctx, req)
	if err != nil && req.Fallback != nil && canFallback(ctx, err) {
		logger.WarnContext(ctx, "analysis failed, using synthetic fallback",
			"label", req.Fallback.Label(),
			"error", err,
		)
		r := req.Fallback.Generate(req.Wallet, a.opts.Window, a.now())
		a.record("synthetic", "success", start)
		return &r, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "analysis failed", "error", err)
		a.record("genuine", "error", start)
		return nil, err
	}

	logger.InfoContext(ctx, "analysis complete",
		"trades", report.Metrics.TotalTrades,
		"total_pnl", report.Metrics.TotalPnL,
		"duration", time.Since(start),
	)
	a.record("genuine", "success", start)
	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, req Request) (*Report, error) {
	in, err := a.Fetch(ctx, req.Wallet, req.Limit)
	if err != nil {
		return nil, err
	}

	conv, err := NewConverter(in.Rate, a.opts.Decimals)
	if err != nil {
		return nil, err
	}

	report, stats := compute(req.Wallet, in.Snapshot, in.Transactions, conv, a.opts, a.now())
	if a.metrics != nil {
		a.metrics.RecordTradesClassified("trade", stats.TradeCount)
		a.metrics.RecordTradesClassified("noise", stats.NoiseCount)
	}
	return &report, nil
}

func (a *Analyzer) record(kind, status string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordAnalysis(kind, status, time.Since(start).Seconds())
	}
}

func canFallback(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrInvalidWallet)
}

// asSourceError leaves categorized errors and context errors alone and
// treats anything else as the source being unavailable.
func asSourceError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return SourceError(op, err)
}
