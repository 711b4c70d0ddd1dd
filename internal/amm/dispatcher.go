package amm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// OnTransfer is the single inbound entry point: the token contract at caller
// has delivered amount units to the pool on behalf of sender. Owner transfers
// are liquidity deposits and commit synchronously; anything else is a swap
// request whose outcome depends on the external transfer of the counter
// token. An error return means nothing was accepted and the full amount must
// be returned to the sender.
func (p *Pool) OnTransfer(ctx context.Context, caller, sender common.Address, amount *uint256.Int, memo string) (*Settlement, error) {
	_ = memo

	index, ok := p.slotIndex(caller)
	if !ok {
		return nil, ErrUnsupportedToken
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if amount.BitLen() > maxBalanceBits {
		return nil, ErrAmountOverflow
	}

	if sender == p.owner {
		if err := p.deposit(index, amount); err != nil {
			return nil, err
		}
		return settledNow(new(uint256.Int)), nil
	}

	return p.initiateSwap(ctx, sender, index, amount)
}

func (p *Pool) deposit(index int, amount *uint256.Int) error {
	p.mu.Lock()
	next := new(uint256.Int).Add(p.slots[index].balance, amount)
	if next.BitLen() > maxBalanceBits {
		p.mu.Unlock()
		return ErrAmountOverflow
	}
	p.slots[index].balance = next
	state := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Info("owner deposit",
		zap.String("token", p.slots[index].address.Hex()),
		zap.String("amount", amount.Dec()),
		zap.String("balance", next.Dec()),
	)
	p.journalState(state)
	return nil
}
