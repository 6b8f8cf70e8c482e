package solana

import (
	"context"
	"errors"
	"strings"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// JSON-RPC "invalid params", returned for malformed public keys.
const rpcInvalidParams = -32602

// classifyRPCError maps an RPC failure onto the analytics error taxonomy.
// Context errors pass through untouched so callers can tell cancellation apart.
func classifyRPCError(op, wallet string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == rpcInvalidParams || strings.Contains(strings.ToLower(rpcErr.Message), "invalid param") {
			return analytics.WalletError(wallet, err)
		}
	}
	return analytics.SourceError(op, err)
}
