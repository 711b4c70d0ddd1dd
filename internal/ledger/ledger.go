package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swapLedger/internal/model"
)

// TokenLedger is the external fungible-token collaborator. Both calls cross a
// network boundary, run under a bounded resource budget, and may fail or time
// out; the caller reconciles the outcome when the call returns.
type TokenLedger interface {
	// Metadata queries the token contract for its display metadata.
	Metadata(ctx context.Context, token common.Address) (model.TokenMeta, error)

	// Transfer moves amount units of token to recipient and reports whether
	// the transfer completed on the ledger.
	Transfer(ctx context.Context, token, recipient common.Address, amount *uint256.Int) error
}
