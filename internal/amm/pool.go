package amm

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapLedger/internal/ledger"
	"swapLedger/internal/model"
	"swapLedger/internal/storage"
)

// slot is one liquidity position: the external token contract it mirrors,
// the pool's accounted holding, and the lazily resolved display metadata.
type slot struct {
	address common.Address
	balance *uint256.Int
	meta    *model.TokenMeta
}

// Config fixes the pool identity and the budgets for outbound ledger calls.
type Config struct {
	Owner  common.Address
	TokenA common.Address
	TokenB common.Address

	TransferTimeout time.Duration
	MetadataTimeout time.Duration
}

// Pool holds exactly two token slots and prices swaps between them. Balances
// are mutated on exactly two paths: the owner-deposit commit and the swap
// callback commit; every other surface is a read-only projection.
type Pool struct {
	owner  common.Address
	ledger ledger.TokenLedger
	// journal is optional; a nil journal disables persistence.
	journal storage.Journal
	logger  *zap.Logger

	transferTimeout time.Duration
	metadataTimeout time.Duration

	mu    sync.Mutex
	slots [2]slot
}

// NewPool builds the pool and immediately schedules metadata resolution for
// both slots. Resolution is asynchronous: accessors that need metadata fail
// with ErrMetadataUnavailable until the queries come back.
func NewPool(cfg Config, tokenLedger ledger.TokenLedger, journal storage.Journal, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = 30 * time.Second
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = 10 * time.Second
	}

	p := &Pool{
		owner:           cfg.Owner,
		ledger:          tokenLedger,
		journal:         journal,
		logger:          logger,
		transferTimeout: cfg.TransferTimeout,
		metadataTimeout: cfg.MetadataTimeout,
		slots: [2]slot{
			{address: cfg.TokenA, balance: new(uint256.Int)},
			{address: cfg.TokenB, balance: new(uint256.Int)},
		},
	}

	p.RequestMetadata(context.Background(), cfg.TokenA)
	p.RequestMetadata(context.Background(), cfg.TokenB)

	return p
}

// Owner returns the liquidity owner identity.
func (p *Pool) Owner() common.Address {
	return p.owner
}

// Tokens returns the two configured token addresses in slot order.
func (p *Pool) Tokens() [2]common.Address {
	return [2]common.Address{p.slots[0].address, p.slots[1].address}
}

// Balance returns the pool's accounted holding of the given token.
func (p *Pool) Balance(token common.Address) (*uint256.Int, error) {
	index, ok := p.slotIndex(token)
	if !ok {
		return nil, ErrUnknownToken
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[index].balance.Clone(), nil
}

// Metadata returns the resolved metadata for the given token.
func (p *Pool) Metadata(token common.Address) (model.TokenMeta, error) {
	index, ok := p.slotIndex(token)
	if !ok {
		return model.TokenMeta{}, ErrUnknownToken
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots[index].meta == nil {
		return model.TokenMeta{}, ErrMetadataUnavailable
	}
	return *p.slots[index].meta, nil
}

// Ratio exposes the decimals-normalized constant-product metric. It requires
// both slots' metadata and fails with ErrMetadataUnavailable before they have
// resolved rather than returning a degenerate value.
func (p *Pool) Ratio() (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots[0].meta == nil || p.slots[1].meta == nil {
		return nil, ErrMetadataUnavailable
	}
	return Ratio(
		p.slots[0].balance,
		p.slots[1].balance,
		p.slots[0].meta.Decimals,
		p.slots[1].meta.Decimals,
	)
}

func (p *Pool) slotIndex(token common.Address) (int, bool) {
	if token == p.slots[0].address {
		return 0, true
	}
	if token == p.slots[1].address {
		return 1, true
	}
	return 0, false
}

// snapshotLocked builds a PoolState record; p.mu must be held.
func (p *Pool) snapshotLocked() model.PoolState {
	return model.PoolState{
		Owner:     p.owner.Hex(),
		Token0:    p.slots[0].address.Hex(),
		Token1:    p.slots[1].address.Hex(),
		Balance0:  p.slots[0].balance.Dec(),
		Balance1:  p.slots[1].balance.Dec(),
		SnappedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func (p *Pool) journalSwap(rec model.SwapRecord) {
	if p.journal == nil {
		return
	}
	if err := p.journal.PutSwap(rec); err != nil {
		p.logger.Warn("journal swap write failed", zap.String("swap_id", rec.ID), zap.Error(err))
	}
}

func (p *Pool) journalState(state model.PoolState) {
	if p.journal == nil {
		return
	}
	if err := p.journal.PutPoolState(state); err != nil {
		p.logger.Warn("journal state write failed", zap.Error(err))
	}
}
