package amm

import (
	"context"

	"github.com/holiman/uint256"
)

// Settlement resolves to the refundable portion of an inbound transfer: zero
// when the pool consumed it, the full deposited amount when a swap rolled
// back. Deposits settle immediately; swaps settle when the external transfer
// completes. Wait is single-consumer.
type Settlement struct {
	refund  *uint256.Int
	pending <-chan *uint256.Int
}

func settledNow(refund *uint256.Int) *Settlement {
	return &Settlement{refund: refund}
}

func pendingSettlement(ch <-chan *uint256.Int) *Settlement {
	return &Settlement{pending: ch}
}

// Settled reports whether the outcome is already known.
func (s *Settlement) Settled() bool {
	return s.pending == nil
}

// Wait blocks until the refundable amount is known or ctx expires.
func (s *Settlement) Wait(ctx context.Context) (*uint256.Int, error) {
	if s.pending == nil {
		return s.refund, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case refund := <-s.pending:
		s.refund = refund
		s.pending = nil
		return refund, nil
	}
}
