package amm

import "errors"

var (
	// ErrUnknownToken is returned by read accessors when the address matches
	// neither pool slot.
	ErrUnknownToken = errors.New("token is not part of the pool pair")

	// ErrUnsupportedToken rejects an inbound transfer whose caller contract
	// is neither of the configured token addresses.
	ErrUnsupportedToken = errors.New("token not supported")

	// ErrZeroAmount rejects a non-positive inbound transfer.
	ErrZeroAmount = errors.New("amount must be positive")

	// ErrZeroOutput rejects a swap whose quote rounds down to zero.
	ErrZeroOutput = errors.New("cannot swap for zero tokens")

	// ErrInsufficientLiquidity rejects a swap quoted above the output reserve.
	ErrInsufficientLiquidity = errors.New("not enough funds to complete the trade")

	// ErrMetadataUnavailable is returned when a slot's metadata has not
	// resolved yet.
	ErrMetadataUnavailable = errors.New("token metadata is not resolved")

	// ErrAmountOverflow rejects values that leave the 128-bit balance range.
	ErrAmountOverflow = errors.New("value exceeds the 128-bit balance range")
)
