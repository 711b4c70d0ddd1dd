package amm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapLedger/internal/model"
)

// initiateSwap validates and prices the swap, then issues the external
// transfer of the output token. It is a two-phase commit: nothing here
// mutates the slots; the new balances travel to the callback and are only
// written once the external ledger reports success. In-flight swaps do not
// reserve the reserves they quoted against, so concurrent attempts are priced
// off the same snapshot and the first committed callback wins.
func (p *Pool) initiateSwap(ctx context.Context, initiator common.Address, indexIn int, amount *uint256.Int) (*Settlement, error) {
	indexOut := 1 - indexIn

	p.mu.Lock()
	reserveIn := p.slots[indexIn].balance.Clone()
	reserveOut := p.slots[indexOut].balance.Clone()
	p.mu.Unlock()

	newBalanceIn := new(uint256.Int).Add(reserveIn, amount)
	if newBalanceIn.BitLen() > maxBalanceBits {
		return nil, ErrAmountOverflow
	}

	amountOut := Quote(reserveIn, reserveOut, amount)

	// Both bounds gate issuing the external call at all: no speculative
	// transfer goes out on an invalid quote.
	if amountOut.IsZero() {
		return nil, ErrZeroOutput
	}
	if amountOut.Gt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}
	newBalanceOut := new(uint256.Int).Sub(reserveOut, amountOut)

	rec := model.SwapRecord{
		ID:        swapID(initiator),
		Initiator: initiator.Hex(),
		TokenIn:   p.slots[indexIn].address.Hex(),
		TokenOut:  p.slots[indexOut].address.Hex(),
		AmountIn:  amount.Dec(),
		AmountOut: amountOut.Dec(),
		Status:    model.StatusQuoted,
		QuotedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	p.journalSwap(rec)

	p.logger.Info("swap quoted",
		zap.String("swap_id", rec.ID),
		zap.String("initiator", rec.Initiator),
		zap.String("amount_in", rec.AmountIn),
		zap.String("amount_out", rec.AmountOut),
	)

	done := make(chan *uint256.Int, 1)
	go p.settleSwap(rec, initiator, indexIn, indexOut, amount, amountOut, newBalanceIn, newBalanceOut, done)

	return pendingSettlement(done), nil
}

// settleSwap is the continuation registered at initiation time. It carries
// the precomputed balances and the original amount, and performs the one
// authoritative mutation gated on the external outcome.
func (p *Pool) settleSwap(
	rec model.SwapRecord,
	initiator common.Address,
	indexIn, indexOut int,
	amount, amountOut, newBalanceIn, newBalanceOut *uint256.Int,
	done chan<- *uint256.Int,
) {
	ctx, cancel := context.WithTimeout(context.Background(), p.transferTimeout)
	defer cancel()

	err := p.ledger.Transfer(ctx, p.slots[indexOut].address, initiator, amountOut)
	rec.SettledAt = time.Now().UTC().Format(time.RFC3339Nano)

	if err != nil {
		// Rollback branch: the slots stay exactly as they were and the
		// deposited amount is reported back as refundable.
		p.logger.Warn("transferring the swapped tokens failed",
			zap.String("swap_id", rec.ID),
			zap.String("initiator", rec.Initiator),
			zap.Error(err),
		)
		rec.Status = model.StatusRolledBack
		p.journalSwap(rec)
		done <- amount.Clone()
		return
	}

	p.mu.Lock()
	p.slots[indexIn].balance = newBalanceIn
	p.slots[indexOut].balance = newBalanceOut
	state := p.snapshotLocked()
	p.mu.Unlock()

	rec.Status = model.StatusCommitted
	p.journalSwap(rec)
	p.journalState(state)

	p.logger.Info("swap committed",
		zap.String("swap_id", rec.ID),
		zap.String("balance_in", newBalanceIn.Dec()),
		zap.String("balance_out", newBalanceOut.Dec()),
	)
	done <- new(uint256.Int)
}

// swapSeq disambiguates swaps quoted within the same clock tick; the journal
// upserts by ID, so two attempts must never share one.
var swapSeq atomic.Uint64

func swapID(initiator common.Address) string {
	return fmt.Sprintf("%s-%d-%d", initiator.Hex(), time.Now().UnixNano(), swapSeq.Add(1))
}
