package watch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapLedger/internal/amm"
	"swapLedger/internal/ledger"
)

// RunConfig holds runtime settings for the transfer watcher.
type RunConfig struct {
	FromBlock         uint64
	BatchSize         uint64
	PollInterval      time.Duration
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Watcher polls the ledger for token transfers addressed to the pool account
// and delivers each one to the dispatcher, sequentially and in log order.
// Rejected transfers and rolled-back swaps are refunded to the sender through
// the ledger, standing in for the refund guarantee a calling token ledger
// would otherwise provide.
type Watcher struct {
	cfg        RunConfig
	client     *ledger.Client
	tokens     ledger.TokenLedger
	pool       *amm.Pool
	account    common.Address
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewWatcher builds a Watcher. account is the pool's own ledger identity;
// transfers into it are the pool's deposits and swap requests.
func NewWatcher(cfg RunConfig, client *ledger.Client, tokens ledger.TokenLedger, pool *amm.Pool, account common.Address, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 500
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	var pair [2]common.Address
	if pool != nil {
		pair = pool.Tokens()
	}
	return &Watcher{
		cfg:        cfg,
		client:     client,
		tokens:     tokens,
		pool:       pool,
		account:    account,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled, account, pair),
	}
}

// Run executes the watch loop until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.client == nil {
		return fmt.Errorf("ledger client is nil")
	}
	if w.pool == nil {
		return fmt.Errorf("pool is nil")
	}

	from := w.cfg.FromBlock
	if w.checkpoint != nil {
		cp, ok, err := w.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			w.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		latest, err := w.latestBlockWithRetry(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}

		if from > latest {
			timer := time.NewTimer(w.cfg.PollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}

		to := from + w.cfg.BatchSize - 1
		if to > latest {
			to = latest
		}

		logs, err := w.filterTransfersWithRetry(ctx, from, to)
		if err != nil {
			return fmt.Errorf("filter transfers: %w", err)
		}

		for _, entry := range logs {
			if w.isDuplicate(entry) {
				continue
			}
			w.handleTransfer(ctx, entry)
		}

		if w.checkpoint != nil {
			if err := w.checkpoint.Save(to); err != nil {
				return err
			}
		}

		w.logger.Debug("batch complete", zap.Int("transfers", len(logs)), zap.Uint64("from", from), zap.Uint64("to", to))
		from = to + 1
	}
}

// handleTransfer maps one Transfer log onto the dispatcher's inbound entry
// point and arranges the refund when the pool does not consume the amount.
func (w *Watcher) handleTransfer(ctx context.Context, entry types.Log) {
	if len(entry.Topics) < 3 {
		w.logger.Warn("malformed transfer log", zap.String("tx", entry.TxHash.Hex()))
		return
	}

	caller := entry.Address
	sender := common.BytesToAddress(entry.Topics[1].Bytes())
	amount := new(uint256.Int).SetBytes(entry.Data)

	if sender == w.account {
		return
	}

	settlement, err := w.pool.OnTransfer(ctx, caller, sender, amount, "")
	if err != nil {
		// Nothing was accepted; the full amount goes back.
		w.logger.Info("inbound transfer rejected",
			zap.String("token", caller.Hex()),
			zap.String("sender", sender.Hex()),
			zap.String("amount", amount.Dec()),
			zap.String("reason", err.Error()),
		)
		w.refund(caller, sender, amount)
		return
	}

	if settlement.Settled() {
		return
	}

	go func() {
		refund, err := settlement.Wait(context.Background())
		if err != nil || refund == nil || refund.IsZero() {
			return
		}
		w.refund(caller, sender, refund)
	}()
}

func (w *Watcher) refund(token, recipient common.Address, amount *uint256.Int) {
	err := w.retryLedgerCall(context.Background(), "refund_transfer", func(ctx context.Context) error {
		return w.tokens.Transfer(ctx, token, recipient, amount)
	})
	if err != nil {
		// Funds stay with the pool account; needs operator intervention.
		w.logger.Error("refund failed",
			zap.String("token", token.Hex()),
			zap.String("recipient", recipient.Hex()),
			zap.String("amount", amount.Dec()),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("refund issued",
		zap.String("token", token.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", amount.Dec()),
	)
}

func (w *Watcher) latestBlockWithRetry(ctx context.Context) (uint64, error) {
	var latest uint64
	err := w.retryLedgerCall(ctx, "latest_block", func(ctx context.Context) error {
		var err error
		latest, err = w.client.LatestBlockNumber(ctx)
		return err
	})
	return latest, err
}

func (w *Watcher) filterTransfersWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := w.retryLedgerCall(ctx, "filter_transfers", func(ctx context.Context) error {
		var err error
		tokens := w.pool.Tokens()
		logs, err = w.client.FilterTransfers(ctx, fromBlock, toBlock, tokens[:], w.account)
		return err
	})
	return logs, err
}

// retryLedgerCall retries a failed ledger RPC with jittered exponential
// backoff, up to cfg.MaxRetries further attempts. Cancellation is terminal:
// a context error from the call is returned as-is, without retrying, so a
// shutting-down watcher does not sit out the backoff schedule.
func (w *Watcher) retryLedgerCall(ctx context.Context, op string, fn func(context.Context) error) error {
	retries := w.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delay := w.cfg.RetryBackoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt >= retries {
			return err
		}

		w.logger.Warn("ledger call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		// up to half a step of jitter so parallel refunds don't retry in
		// lockstep against a struggling endpoint
		sleep := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

func (w *Watcher) isDuplicate(entry types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", entry.BlockNumber, entry.TxHash.Hex(), entry.Index)
	if _, ok := w.seen[id]; ok {
		return true
	}
	w.seen[id] = struct{}{}
	return false
}
