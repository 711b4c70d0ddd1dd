package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"swapLedger/internal/model"
)

// Store provides Postgres persistence for the swap journal and pool
// snapshots. Swap records are upserted by ID so the quoted row is finalized
// in place when the settlement lands.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutSwap inserts or finalizes a swap journal row.
func (s *Store) PutSwap(rec model.SwapRecord) error {
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO swap_journal (
			id, initiator, token_in, token_out, amount_in, amount_out,
			status, quoted_at, settled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), now(), now())
		ON CONFLICT (id)
		DO UPDATE SET
			status = EXCLUDED.status,
			settled_at = EXCLUDED.settled_at,
			updated_at = now()
	`,
		rec.ID,
		rec.Initiator,
		rec.TokenIn,
		rec.TokenOut,
		rec.AmountIn,
		rec.AmountOut,
		rec.Status,
		rec.QuotedAt,
		rec.SettledAt,
	)
	return err
}

// PutPoolState upserts the single pool snapshot row.
func (s *Store) PutPoolState(state model.PoolState) error {
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO pool_state (
			owner, token0, token1, balance0, balance1, snapped_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (owner, token0, token1)
		DO UPDATE SET
			balance0 = EXCLUDED.balance0,
			balance1 = EXCLUDED.balance1,
			snapped_at = EXCLUDED.snapped_at,
			updated_at = now()
	`,
		state.Owner,
		state.Token0,
		state.Token1,
		state.Balance0,
		state.Balance1,
		state.SnappedAt,
	)
	return err
}
