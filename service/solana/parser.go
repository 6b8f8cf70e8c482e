package solana

import (
	"encoding/json"
	"fmt"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TokenPrograms are the programs whose accounts count as holdings.
var TokenPrograms = []solana.PublicKey{solana.TokenProgramID, solana.Token2022ProgramID}

// parsedTokenAccount is the jsonParsed shape of an SPL token account.
type parsedTokenAccount struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// isNFT reports whether a token account holds exactly one indivisible token.
func (a parsedTokenAccount) isNFT() bool {
	amt := a.Parsed.Info.TokenAmount
	return amt.Decimals == 0 && amt.Amount == "1"
}

// summarizeTokenAccounts counts token accounts and the NFTs among them.
// Accounts whose data is not jsonParsed still count toward the total.
func summarizeTokenAccounts(accounts []*rpc.TokenAccount) analytics.Holdings {
	var h analytics.Holdings
	for _, acct := range accounts {
		if acct == nil {
			continue
		}
		h.TokenAccounts++

		if acct.Account.Data == nil {
			continue
		}
		raw := acct.Account.Data.GetRawJSON()
		if len(raw) == 0 {
			continue
		}
		var parsed parsedTokenAccount
		if err := json.Unmarshal(raw, &parsed); err != nil {
			continue
		}
		if parsed.isNFT() {
			h.NFTCount++
		}
	}
	return h
}

// transactionKeys returns the full account key list in the order the
// pre/post balance arrays use: static keys, then loaded writable, then loaded read-only.
func transactionKeys(result *rpc.GetTransactionResult) ([]solana.PublicKey, error) {
	if result.Transaction == nil {
		return nil, fmt.Errorf("transaction body missing")
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction body missing")
	}

	keys := make([]solana.PublicKey, 0, len(tx.Message.AccountKeys))
	keys = append(keys, tx.Message.AccountKeys...)
	if result.Meta != nil {
		keys = append(keys, result.Meta.LoadedAddresses.Writable...)
		keys = append(keys, result.Meta.LoadedAddresses.ReadOnly...)
	}
	return keys, nil
}

// balanceChanges pairs account keys with post-pre native balances.
// Accounts whose balance did not change are omitted.
func balanceChanges(keys []solana.PublicKey, meta *rpc.TransactionMeta) ([]analytics.BalanceChange, error) {
	if meta == nil {
		return nil, fmt.Errorf("transaction meta missing")
	}
	if len(meta.PreBalances) != len(meta.PostBalances) {
		return nil, fmt.Errorf("balance arrays differ in length: pre=%d post=%d", len(meta.PreBalances), len(meta.PostBalances))
	}
	if len(meta.PreBalances) > len(keys) {
		return nil, fmt.Errorf("more balances (%d) than account keys (%d)", len(meta.PreBalances), len(keys))
	}

	changes := make([]analytics.BalanceChange, 0, len(meta.PreBalances))
	for i, pre := range meta.PreBalances {
		delta := int64(meta.PostBalances[i]) - int64(pre)
		if delta == 0 {
			continue
		}
		changes = append(changes, analytics.BalanceChange{
			Account: keys[i].String(),
			Delta:   delta,
		})
	}
	return changes, nil
}

// parseTransaction converts a fetched transaction into the pipeline's raw form.
func parseTransaction(sig *rpc.TransactionSignature, result *rpc.GetTransactionResult) (analytics.RawTransaction, error) {
	tx := analytics.RawTransaction{Signature: sig.Signature.String()}

	switch {
	case result.BlockTime != nil:
		tx.Timestamp = int64(*result.BlockTime)
	case sig.BlockTime != nil:
		tx.Timestamp = int64(*sig.BlockTime)
	default:
		return tx, fmt.Errorf("no block time")
	}

	keys, err := transactionKeys(result)
	if err != nil {
		return tx, err
	}
	changes, err := balanceChanges(keys, result.Meta)
	if err != nil {
		return tx, err
	}
	tx.Changes = changes
	return tx, nil
}
