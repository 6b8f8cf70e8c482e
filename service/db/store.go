package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/brojonat/walletlens/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Store keeps indexed wallet transactions as per-account native balance changes.
// It doubles as an analytics.HistorySource for wallets that have been imported.
type Store struct {
	pool    *pgxpool.Pool
	network string
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// Rows are scoped to network. If m is nil, no metrics are recorded.
func NewStore(pool *pgxpool.Pool, network string, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		network: network,
		metrics: m,
	}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, schema)
	s.record("ensure_schema", "transactions", start, err)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveTransactions stores transactions and their balance changes. Already
// stored signatures are left untouched. Returns the number of new transactions.
func (s *Store) SaveTransactions(ctx context.Context, txs []analytics.RawTransaction) (int, error) {
	start := time.Now()
	inserted, err := s.saveTransactions(ctx, txs)
	s.record("save_transactions", "transactions", start, err)
	return inserted, err
}

func (s *Store) saveTransactions(ctx context.Context, txs []analytics.RawTransaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, t := range txs {
		tag, err := tx.Exec(ctx,
			`INSERT INTO transactions (signature, network, block_time)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (signature, network) DO NOTHING`,
			t.Signature, s.network, time.Unix(t.Timestamp, 0).UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", t.Signature, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		inserted++

		batch := &pgx.Batch{}
		for _, c := range t.Changes {
			batch.Queue(
				`INSERT INTO balance_changes (signature, network, account, delta)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (signature, network, account) DO UPDATE SET delta = balance_changes.delta + EXCLUDED.delta`,
				t.Signature, s.network, c.Account, c.Delta,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("failed to insert balance changes for %s: %w", t.Signature, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return inserted, nil
}

type changeRow struct {
	Signature string
	BlockTime time.Time
	Account   string
	Delta     int64
}

// History returns up to limit of the wallet's most recent stored transactions,
// newest first, each with all of its balance changes.
func (s *Store) History(ctx context.Context, wallet string, limit int) ([]analytics.RawTransaction, error) {
	start := time.Now()
	txs, err := s.history(ctx, wallet, limit)
	s.record("list_balance_changes", "balance_changes", start, err)
	if err != nil {
		return nil, analytics.SourceError("history", err)
	}
	if s.metrics != nil {
		s.metrics.RecordTransactionsFetched("db", len(txs))
	}
	return txs, nil
}

func (s *Store) history(ctx context.Context, wallet string, limit int) ([]analytics.RawTransaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		WITH recent AS (
			SELECT t.signature, t.block_time
			FROM transactions t
			JOIN balance_changes c ON c.signature = t.signature AND c.network = t.network
			WHERE c.account = $1 AND t.network = $2
			ORDER BY t.block_time DESC, t.signature
			LIMIT $3
		)
		SELECT r.signature, r.block_time, c.account, c.delta
		FROM recent r
		JOIN balance_changes c ON c.signature = r.signature AND c.network = $2
		ORDER BY r.block_time DESC, r.signature, c.account`,
		wallet, s.network, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance changes: %w", err)
	}

	changes, err := pgx.CollectRows(rows, pgx.RowToStructByPos[changeRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan balance changes: %w", err)
	}

	txs := make([]analytics.RawTransaction, 0)
	for _, c := range changes {
		if n := len(txs); n == 0 || txs[n-1].Signature != c.Signature {
			txs = append(txs, analytics.RawTransaction{
				Signature: c.Signature,
				Timestamp: c.BlockTime.Unix(),
			})
		}
		last := &txs[len(txs)-1]
		last.Changes = append(last.Changes, analytics.BalanceChange{Account: c.Account, Delta: c.Delta})
	}
	return txs, nil
}

// CountTransactions returns how many stored transactions touch wallet.
func (s *Store) CountTransactions(ctx context.Context, wallet string) (int64, error) {
	start := time.Now()
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(DISTINCT signature) FROM balance_changes WHERE account = $1 AND network = $2`,
		wallet, s.network,
	).Scan(&n)
	s.record("count_transactions", "balance_changes", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// DeleteTransactionsOlderThan prunes stored transactions with a block time before cutoff.
func (s *Store) DeleteTransactionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM transactions WHERE network = $1 AND block_time < $2`,
		s.network, cutoff,
	)
	s.record("delete_transactions", "transactions", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) record(op, table string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(op, table, time.Since(start).Seconds(), err)
	}
}
