package temporal

import (
	"errors"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/shopspring/decimal"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// AnalyzeWalletInput contains the input parameters for analyzing a wallet.
type AnalyzeWalletInput struct {
	Wallet string `json:"wallet"`
	// Limit overrides Options.HistoryLimit when positive.
	Limit int `json:"limit,omitempty"`
	// Fallback names the synthetic provider used when a fetch fails. Empty disables it.
	Fallback string `json:"fallback,omitempty"`
	Seed     uint64 `json:"seed,omitempty"`
	// Options overrides the worker's pipeline settings field by field.
	// Zero fields keep the worker's value.
	Options analytics.Options `json:"options"`
}

// AnalyzeWalletResult contains the result of a wallet analysis.
type AnalyzeWalletResult struct {
	// ID is the workflow ID. It doubles as the published event ID.
	ID        string           `json:"id"`
	Report    analytics.Report `json:"report"`
	Published bool             `json:"published"`
}

// AnalyzeWalletWorkflow fetches a wallet's snapshot, history and price in
// parallel, computes the report deterministically inside the workflow and
// publishes it.
//
// The workflow performs these steps:
// 1. AnalysisOptions to read the worker's settings, merged with input.Options
// 2. FetchSnapshot, FetchHistory and FetchPrice concurrently
// 3. Compute the report with "today" taken from workflow time
// 4. PublishAnalysis (a failure here does not fail the workflow)
func AnalyzeWalletWorkflow(ctx workflow.Context, input AnalyzeWalletInput) (*AnalyzeWalletResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("AnalyzeWalletWorkflow started", "wallet", input.Wallet)

	ctx = workflow.WithActivityOptions(ctx, activityOptions())

	var base analytics.Options
	if err := workflow.ExecuteActivity(ctx, a.AnalysisOptions).Get(ctx, &base); err != nil {
		logger.Error("failed to read analysis options", "error", err)
		return nil, err
	}
	opts := base.Merge(input.Options)

	limit := input.Limit
	if limit <= 0 {
		limit = opts.HistoryLimit
	}

	result := &AnalyzeWalletResult{ID: workflow.GetInfo(ctx).WorkflowExecution.ID}

	report, err := computeReport(ctx, input.Wallet, limit, opts)
	if err != nil {
		if input.Fallback == "" || isApplicationErrorType(err, ErrTypeInvalidWallet) || ctx.Err() != nil {
			logger.Error("analysis failed", "wallet", input.Wallet, "error", err)
			return nil, err
		}

		provider, perr := analytics.NewSyntheticProvider(input.Fallback, input.Seed)
		if perr != nil {
			return nil, temporalsdk.NewNonRetryableApplicationError(perr.Error(), "InvalidFallback", perr)
		}
		logger.Warn("analysis failed, using synthetic fallback",
			"wallet", input.Wallet,
			"label", provider.Label(),
			"error", err,
		)
		r := provider.Generate(input.Wallet, opts.Window, workflow.Now(ctx))
		report = &r
	}
	result.Report = *report

	err = workflow.ExecuteActivity(ctx, a.PublishAnalysis, PublishAnalysisInput{
		ID:     result.ID,
		Report: result.Report,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("failed to publish analysis", "wallet", input.Wallet, "error", err)
	} else {
		result.Published = true
	}

	logger.Info("AnalyzeWalletWorkflow completed",
		"wallet", input.Wallet,
		"trades", result.Report.Metrics.TotalTrades,
		"synthetic", result.Report.Metrics.Synthetic,
		"published", result.Published,
	)
	return result, nil
}

func computeReport(ctx workflow.Context, wallet string, limit int, opts analytics.Options) (*analytics.Report, error) {
	snapF := workflow.ExecuteActivity(ctx, a.FetchSnapshot, FetchSnapshotInput{Wallet: wallet})
	histF := workflow.ExecuteActivity(ctx, a.FetchHistory, FetchHistoryInput{Wallet: wallet, Limit: limit})
	priceF := workflow.ExecuteActivity(ctx, a.FetchPrice, FetchPriceInput{Symbol: opts.Symbol})

	var (
		snap analytics.Snapshot
		txs  []analytics.RawTransaction
		rate decimal.Decimal
	)
	snapErr := snapF.Get(ctx, &snap)
	histErr := histF.Get(ctx, &txs)
	priceErr := priceF.Get(ctx, &rate)

	if err := firstError(snapErr, histErr, priceErr); err != nil {
		return nil, err
	}

	conv, err := analytics.NewConverter(rate, opts.Decimals)
	if err != nil {
		return nil, err
	}

	report := analytics.Compute(wallet, snap, txs, conv, opts, workflow.Now(ctx))
	return &report, nil
}

func activityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 120 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeInvalidWallet, ErrTypePriceUnavailable},
		},
	}
}

// firstError returns an invalid-wallet failure if there is one, so that it
// is never masked by a sibling failure, and otherwise the first non-nil error.
func firstError(errs ...error) error {
	var first error
	for _, err := range errs {
		if isApplicationErrorType(err, ErrTypeInvalidWallet) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func isApplicationErrorType(err error, errType string) bool {
	var appErr *temporalsdk.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == errType
}
