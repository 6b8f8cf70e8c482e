package solana

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/brojonat/walletlens/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"golang.org/x/time/rate"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetBalance(
		ctx context.Context,
		address solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetTokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		conf *rpc.GetTokenAccountsConfig,
		opts *rpc.GetTokenAccountsOpts,
	) (*rpc.GetTokenAccountsResult, error)

	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

const maxAttempts = 3

// Client answers balance, holdings and history queries for the analytics pipeline.
// Every RPC call first waits on a shared token bucket.
type Client struct {
	rpc        RPCClient
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	endpoint   string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
	commitment rpc.CommitmentType
	backoff    time.Duration
}

// NewLimiter returns a token bucket allowing rps calls per second.
// A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), max(burst, 1))
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If limiter is nil, calls are not rate limited. If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, limiter *rate.Limiter, m *metrics.Metrics, logger *slog.Logger) *Client {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	return &Client{
		rpc:        rpcClient,
		limiter:    limiter,
		logger:     logger,
		metrics:    m,
		endpoint:   endpoint,
		commitment: rpc.CommitmentFinalized,
		backoff:    time.Second,
	}
}

// Balance returns the wallet's native balance in lamports.
func (c *Client) Balance(ctx context.Context, wallet string) (uint64, error) {
	pk, err := parseWallet(wallet)
	if err != nil {
		return 0, err
	}
	if err := c.wait(ctx); err != nil {
		return 0, err
	}

	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, pk, c.commitment)
	c.observe("GetBalance", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get balance", "wallet", wallet, "error", err)
		return 0, classifyRPCError("balance", wallet, err)
	}
	if out == nil {
		return 0, nil
	}
	return out.Value, nil
}

// Holdings counts the wallet's token accounts across the token programs,
// and the NFTs among them.
func (c *Client) Holdings(ctx context.Context, wallet string) (analytics.Holdings, error) {
	pk, err := parseWallet(wallet)
	if err != nil {
		return analytics.Holdings{}, err
	}

	var total analytics.Holdings
	for _, program := range TokenPrograms {
		if err := c.wait(ctx); err != nil {
			return analytics.Holdings{}, err
		}

		start := time.Now()
		out, err := c.rpc.GetTokenAccountsByOwner(ctx, pk,
			&rpc.GetTokenAccountsConfig{ProgramId: program.ToPointer()},
			&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed, Commitment: c.commitment},
		)
		c.observe("GetTokenAccountsByOwner", start, err)
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to get token accounts",
				"wallet", wallet,
				"program", program.String(),
				"error", err,
			)
			return analytics.Holdings{}, classifyRPCError("holdings", wallet, err)
		}
		if out == nil {
			continue
		}

		h := summarizeTokenAccounts(out.Value)
		total.TokenAccounts += h.TokenAccounts
		total.NFTCount += h.NFTCount
	}

	c.logger.DebugContext(ctx, "fetched holdings",
		"wallet", wallet,
		"token_accounts", total.TokenAccounts,
		"nft_count", total.NFTCount,
	)
	return total, nil
}

// History returns up to limit of the wallet's most recent transactions, newest first.
// Signatures without a block time and transactions the node no longer has are skipped.
func (c *Client) History(ctx context.Context, wallet string, limit int) ([]analytics.RawTransaction, error) {
	pk, err := parseWallet(wallet)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	opts := &rpc.GetSignaturesForAddressOpts{Commitment: c.commitment}
	if limit > 0 {
		opts.Limit = &limit
	}

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, pk, opts)
	c.observe("GetSignaturesForAddress", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures", "wallet", wallet, "error", err)
		return nil, classifyRPCError("history", wallet, err)
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"wallet", wallet,
		"count", len(signatures),
	)

	transactions := make([]analytics.RawTransaction, 0, len(signatures))
	for _, sig := range signatures {
		if sig == nil {
			continue
		}
		if sig.BlockTime == nil {
			c.logger.DebugContext(ctx, "skipping signature without block time",
				"signature", sig.Signature.String(),
			)
			continue
		}

		result, err := c.getTransaction(ctx, sig.Signature)
		if errors.Is(err, rpc.ErrNotFound) {
			c.logger.WarnContext(ctx, "transaction not available, skipping",
				"signature", sig.Signature.String(),
			)
			continue
		}
		if err != nil {
			return nil, classifyRPCError("history", wallet, err)
		}

		txn, err := parseTransaction(sig, result)
		if err != nil {
			c.logger.WarnContext(ctx, "failed to parse transaction, skipping",
				"signature", sig.Signature.String(),
				"error", err,
			)
			c.recordParsed("error")
			continue
		}
		c.recordParsed("success")
		transactions = append(transactions, txn)
	}

	if c.metrics != nil {
		c.metrics.RecordTransactionsFetched("rpc", len(transactions))
	}
	c.logger.InfoContext(ctx, "fetched and parsed transactions",
		"wallet", wallet,
		"count", len(transactions),
	)
	return transactions, nil
}

// getTransaction fetches one transaction, retrying rate-limit and transient
// failures with exponential backoff.
func (c *Client) getTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	version := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &version,
	}

	var lastErr error
	for attempt := range maxAttempts {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := c.rpc.GetTransaction(ctx, sig, opts)
		c.observe("GetTransaction", start, err)
		if err == nil {
			if result == nil {
				return nil, rpc.ErrNotFound
			}
			return result, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt == maxAttempts-1 {
			break
		}
		backoff := c.backoff * time.Duration(math.Pow(2, float64(attempt)))
		c.logger.WarnContext(ctx, "failed to get transaction on attempt",
			"signature", sig.String(),
			"attempt", attempt+1,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) wait(ctx context.Context) error {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordRateLimitWait(c.endpoint, time.Since(start).Seconds())
	}
	return nil
}

func (c *Client) observe(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

func (c *Client) recordParsed(status string) {
	if c.metrics != nil {
		c.metrics.RecordTransactionParsed(status)
	}
}

func parseWallet(wallet string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return solana.PublicKey{}, analytics.WalletError(wallet, err)
	}
	return pk, nil
}

// retryable reports whether a failed call is worth repeating: rate limits,
// server errors and transport failures. JSON-RPC errors and not-found are final.
func retryable(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code == http.StatusTooManyRequests || httpErr.Code >= 500
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
