package db

import (
	"context"
	"testing"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	walletB = "So11111111111111111111111111111111111111112"
)

func transfer(sig string, at time.Time, from, to string, amount int64) analytics.RawTransaction {
	return analytics.RawTransaction{
		Signature: sig,
		Timestamp: at.Unix(),
		Changes: []analytics.BalanceChange{
			{Account: from, Delta: -amount},
			{Account: to, Delta: amount},
		},
	}
}

func TestSaveTransactionsAndHistory(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t, "mainnet")
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	txs := []analytics.RawTransaction{
		transfer("sig-1", base, walletB, walletA, 50),
		transfer("sig-2", base.Add(time.Hour), walletA, walletB, 10),
		transfer("sig-3", base.Add(48*time.Hour), walletB, walletA, 5),
	}

	inserted, err := store.SaveTransactions(ctx, txs)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	t.Run("newest first with all changes", func(t *testing.T) {
		history, err := store.History(ctx, walletA, 10)
		require.NoError(t, err)
		require.Len(t, history, 3)

		assert.Equal(t, "sig-3", history[0].Signature)
		assert.Equal(t, base.Add(48*time.Hour).Unix(), history[0].Timestamp)
		assert.Len(t, history[0].Changes, 2)
		assert.Equal(t, "sig-1", history[2].Signature)
	})

	t.Run("limit keeps the most recent", func(t *testing.T) {
		history, err := store.History(ctx, walletA, 2)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "sig-3", history[0].Signature)
		assert.Equal(t, "sig-2", history[1].Signature)
	})

	t.Run("feeds the pipeline", func(t *testing.T) {
		history, err := store.History(ctx, walletA, 10)
		require.NoError(t, err)

		norm := analytics.Normalize(history, walletA)
		assert.Equal(t, analytics.DailyDelta{"2024-01-01": 40, "2024-01-03": 5}, norm.Daily)
	})

	t.Run("duplicates are ignored", func(t *testing.T) {
		inserted, err := store.SaveTransactions(ctx, txs[:1])
		require.NoError(t, err)
		assert.Equal(t, 0, inserted)

		n, err := store.CountTransactions(ctx, walletA)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestHistory_ScopedByNetwork(t *testing.T) {
	SkipIfNoTestDB(t)

	mainnet := NewTestStore(t, "mainnet")
	defer mainnet.Close()
	defer mainnet.Cleanup(t)
	devnet := NewTestStore(t, "devnet")
	defer devnet.Close()

	ctx := context.Background()
	_, err := mainnet.SaveTransactions(ctx, []analytics.RawTransaction{
		transfer("sig-main", time.Now(), walletB, walletA, 1),
	})
	require.NoError(t, err)

	history, err := devnet.History(ctx, walletA, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeleteTransactionsOlderThan(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t, "mainnet")
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	now := time.Now().UTC()
	_, err := store.SaveTransactions(ctx, []analytics.RawTransaction{
		transfer("old", now.AddDate(0, 0, -200), walletB, walletA, 1),
		transfer("new", now, walletB, walletA, 1),
	})
	require.NoError(t, err)

	deleted, err := store.DeleteTransactionsOlderThan(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	history, err := store.History(ctx, walletA, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "new", history[0].Signature)
}

func TestSaveTransactions_Empty(t *testing.T) {
	// No database needed: an empty batch returns before touching the pool.
	store := NewStore(nil, "mainnet", nil)

	n, err := store.SaveTransactions(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
