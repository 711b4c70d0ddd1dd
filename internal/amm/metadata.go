package amm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// RequestMetadata issues the asynchronous metadata query for one of the pool
// tokens and commits the result into the slot when the call resolves. The
// returned channel reports the outcome of that one resolution; on failure the
// slot simply stays unresolved and downstream calls keep failing with
// ErrMetadataUnavailable until a later refresh succeeds.
func (p *Pool) RequestMetadata(ctx context.Context, token common.Address) (<-chan error, error) {
	index, ok := p.slotIndex(token)
	if !ok {
		return nil, ErrUnknownToken
	}

	done := make(chan error, 1)
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, p.metadataTimeout)
		defer cancel()

		meta, err := p.ledger.Metadata(callCtx, token)
		if err != nil {
			p.logger.Warn("metadata query failed",
				zap.String("token", token.Hex()),
				zap.Error(err),
			)
			done <- err
			return
		}

		p.mu.Lock()
		p.slots[index].meta = &meta
		p.mu.Unlock()

		p.logger.Info("metadata resolved",
			zap.String("token", token.Hex()),
			zap.String("symbol", meta.Symbol),
			zap.Uint8("decimals", meta.Decimals),
		)
		done <- nil
	}()

	return done, nil
}
